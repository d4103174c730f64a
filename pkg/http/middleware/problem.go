package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/http/problems"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// Problem renders the first gin error as application/problem+json
// unless the handler already wrote a response.
func Problem() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		first := c.Errors[0]
		var problem problems.Problem
		if p, ok := first.Meta.(*problems.Problem); ok {
			problem = *p
			if problem.Status == 0 {
				problem.Status = http.StatusInternalServerError
			}
		} else {
			status := c.Writer.Status()
			if status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
			problem = *problems.New(status, first.Error())
			if fields, ok := first.Meta.(map[string]string); ok {
				for field, msg := range fields {
					problem.Errors = append(problem.Errors, problems.FieldError{Field: field, Message: msg})
				}
			}
		}
		if problem.Instance == "" {
			problem.Instance = c.Request.URL.Path
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() && problem.TraceID == "" {
			problem.TraceID = sc.TraceID().String()
		}

		c.Header("Content-Type", "application/problem+json")
		c.AbortWithStatusJSON(problem.Status, problem)
	}
}

func ProblemModule(priority int) fx.Option {
	return provide(priority, Problem)
}
