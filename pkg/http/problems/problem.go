package problems

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type     string       `json:"type,omitempty"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (p *Problem) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

func New(status int, detail string) *Problem {
	return &Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func BadRequest(detail string) *Problem     { return New(http.StatusBadRequest, detail) }
func NotFound(detail string) *Problem       { return New(http.StatusNotFound, detail) }
func Conflict(detail string) *Problem       { return New(http.StatusConflict, detail) }
func GatewayTimeout(detail string) *Problem { return New(http.StatusGatewayTimeout, detail) }
func ServiceUnavailable(detail string) *Problem {
	return New(http.StatusServiceUnavailable, detail)
}

// Abort records p on the gin context for the problem middleware to render.
func Abort(c *gin.Context, p *Problem) {
	if p.Instance == "" {
		p.Instance = c.Request.URL.Path
	}
	_ = c.Error(p).SetMeta(p)
	c.Abort()
}

// Validation turns a binding error into a 400 listing the offending fields.
func Validation(err error) *Problem {
	p := BadRequest("request validation failed")

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		p.Detail = err.Error()
		return p
	}
	for _, fe := range verrs {
		p.Errors = append(p.Errors, FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return p
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}
