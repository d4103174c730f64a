package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	corehealth "github.com/simdev/taskhub/pkg/core/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReadiness struct {
	ready bool
}

func (s *stubReadiness) IsReady() bool { return s.ready }

func (s *stubReadiness) GetStatus() corehealth.ReadinessStatus {
	return corehealth.ReadinessStatus{
		Ready:      s.ready,
		Components: []corehealth.ComponentStatus{{Name: "postgres", Ready: s.ready}},
	}
}

type stubTraffic struct {
	marked int
}

func (s *stubTraffic) MarkTrafficReady() { s.marked++ }

func newRouter(ready bool) (*gin.Engine, *stubTraffic) {
	gin.SetMode(gin.TestMode)
	traffic := &stubTraffic{}
	r := gin.New()
	registerHealthRoutes(r, newHealthHandler(&stubReadiness{ready: ready}, traffic))
	return r, traffic
}

func TestIsReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		wantStatus int
		wantBody   string
		wantMarked int
	}{
		{name: "ready", ready: true, wantStatus: http.StatusOK, wantBody: "ready", wantMarked: 1},
		{name: "not ready", ready: false, wantStatus: http.StatusServiceUnavailable, wantBody: "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, traffic := newRouter(tt.ready)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, tt.wantMarked, traffic.marked)
		})
	}
}

func TestIsReady_JSON(t *testing.T) {
	r, _ := newRouter(false)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready?format=json", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var status corehealth.ReadinessStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Ready)
	require.Len(t, status.Components, 1)
	assert.Equal(t, "postgres", status.Components[0].Name)
}

func TestIsLive(t *testing.T) {
	r, _ := newRouter(false)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", w.Body.String())
}
