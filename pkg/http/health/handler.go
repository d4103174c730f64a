package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	corehealth "github.com/simdev/taskhub/pkg/core/health"
)

type healthHandler struct {
	readiness corehealth.ReadinessChecker
	traffic   corehealth.TrafficController
}

func newHealthHandler(r corehealth.ReadinessChecker, t corehealth.TrafficController) *healthHandler {
	return &healthHandler{readiness: r, traffic: t}
}

// IsReady answers the readiness probe. The first 200 marks the service ready
// for traffic, which releases workers waiting on it.
func (h *healthHandler) IsReady(c *gin.Context) {
	ready := h.readiness.IsReady()
	if ready {
		h.traffic.MarkTrafficReady()
	}

	if c.Query("format") == "json" || c.GetHeader("Accept") == "application/json" {
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h.readiness.GetStatus())
		return
	}

	if ready {
		c.String(http.StatusOK, "ready")
		return
	}
	c.String(http.StatusServiceUnavailable, "not ready")
}

func (h *healthHandler) IsLive(c *gin.Context) {
	c.String(http.StatusOK, "alive")
}
