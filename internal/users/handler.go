package users

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
	g := r.Group("/users")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/exists", h.exists)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *handler) create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problems.Abort(c, problems.Validation(err))
		return
	}
	u, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *handler) list(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *handler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// exists is public: the tasks service calls it before creating a task.
func (h *handler) exists(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	exists, err := h.service.Exists(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ExistsResponse{Exists: exists, UserID: id})
}

func (h *handler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problems.Abort(c, problems.Validation(err))
		return
	}
	u, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
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
		problems.Abort(c, problems.NotFound(fmt.Sprintf("user %s not found", c.Param("id"))))
	case errors.Is(err, ErrEmailTaken):
		problems.Abort(c, problems.Conflict(err.Error()))
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
