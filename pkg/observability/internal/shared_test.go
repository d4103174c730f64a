package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFilterPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := map[string]bool{
		"/health/ready": false,
		"/health/live":  false,
		"/openapi.yaml": false,
		"/healthcheck":  true,
		"/tasks":        true,
		"/users/42":     true,
	}
	for path, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, FilterPaths(c), path)
	}
}
