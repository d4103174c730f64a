package tasks

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/http/problems"
	"github.com/simdev/taskhub/pkg/persistence"
)

type handler struct {
	service *Service
}

func newHandler(s *Service) *handler {
	return &handler{service: s}
}

func registerRoutes(r *gin.Engine, h *handler) {
	g := r.Group("/tasks")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *handler) create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problems.Abort(c, problems.Validation(err))
		return
	}
	t, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *handler) list(c *gin.Context) {
	var userID int64
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			problems.Abort(c, problems.BadRequest(fmt.Sprintf("invalid userId %q", raw)))
			return
		}
		userID = id
	}
	tasks, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *handler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problems.Abort(c, problems.Validation(err))
		return
	}
	t, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, persistence.ErrEntityNotFound):
		problems.Abort(c, problems.NotFound(fmt.Sprintf("task %s not found", c.Param("id"))))
	case errors.Is(err, ErrUserNotFound):
		problems.Abort(c, problems.NotFound(err.Error()))
	case errors.Is(err, ErrUnknownStatus):
		problems.Abort(c, problems.BadRequest(err.Error()))
	case errors.Is(err, ErrUserCheckUnavailable):
		problems.Abort(c, problems.ServiceUnavailable("the users service is unavailable, retry later"))
	default:
		_ = c.Error(err)
		c.Abort()
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		problems.Abort(c, problems.BadRequest(fmt.Sprintf("invalid id %q", c.Param("id"))))
		return 0, false
	}
	return id, true
}
