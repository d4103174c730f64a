package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/http/problems"
	"github.com/simdev/taskhub/pkg/http/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testEngine(log *zap.Logger, timeout time.Duration) *gin.Engine {
	enabled := timeout > 0
	return newEngine([]Middleware{
		{Priority: 80, Handler: Problem()},
		{Priority: 10, Handler: func() gin.HandlerFunc {
			if !enabled {
				return nil
			}
			return timeoutMiddleware(server.TimeoutConfig{Enabled: &enabled, RequestTimeout: timeout}, log)
		}()},
		{Priority: 40, Handler: recoveryMiddleware()},
		{Priority: 50, Handler: requestLoggerMiddleware(log)()},
		{Priority: 70, Handler: errorLoggerMiddleware()},
	})
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problems.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p problems.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestRecovery_PanicBecomesProblem(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := testEngine(zap.New(core), 0)
	e.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	p := decodeProblem(t, w)
	assert.Equal(t, "/boom", p.Instance)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestProblem_FromHandlerProblem(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := testEngine(zap.New(core), 0)
	e.GET("/users/:id", func(c *gin.Context) {
		problems.Abort(c, problems.NotFound("user not found"))
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/9", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	p := decodeProblem(t, w)
	assert.Equal(t, "Not Found", p.Title)
	assert.Equal(t, "user not found", p.Detail)
	assert.Equal(t, "/users/9", p.Instance)
	assert.Equal(t, 1, logs.FilterMessage("request rejected").Len())
}

func TestProblem_FromPlainErrorWithFields(t *testing.T) {
	e := testEngine(zap.NewNop(), 0)
	e.POST("/users", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
		_ = c.Error(errors.New("validation failed")).SetMeta(map[string]string{"email": "required"})
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	p := decodeProblem(t, w)
	assert.Equal(t, "validation failed", p.Detail)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "email", p.Errors[0].Field)
}

func TestProblem_PlainErrorDefaultsTo500(t *testing.T) {
	e := testEngine(zap.NewNop(), 0)
	e.GET("/fail", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestLogger_SetsRequestIDAndContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := testEngine(zap.New(core), 0)
	var fromCtx *zap.Logger
	e.GET("/tasks", func(c *gin.Context) {
		fromCtx = logger.Get(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	e.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	require.NotNil(t, fromCtx)
	entries := logs.FilterMessage("request handled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	e := testEngine(zap.NewNop(), 0)
	e.GET("/tasks", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestTimeout_ExpiredRequestGets504(t *testing.T) {
	e := testEngine(zap.NewNop(), 20*time.Millisecond)
	e.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, ErrRequestTimeout.Error(), decodeProblem(t, w).Detail)
}

func TestTimeout_HealthIsExempt(t *testing.T) {
	e := testEngine(zap.NewNop(), time.Millisecond)
	var deadline bool
	e.GET("/health/live", func(c *gin.Context) {
		_, deadline = c.Request.Context().Deadline()
		c.String(http.StatusOK, "alive")
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, deadline)
}
