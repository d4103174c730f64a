package problems

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email string `validate:"required,email"`
	Name  string `validate:"min=2"`
}

func TestValidation_ListsFields(t *testing.T) {
	err := validator.New().Struct(signup{Email: "nope", Name: "x"})
	require.Error(t, err)

	p := Validation(err)

	assert.Equal(t, http.StatusBadRequest, p.Status)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, FieldError{Field: "Email", Message: "must be a valid email address"}, p.Errors[0])
	assert.Equal(t, FieldError{Field: "Name", Message: "must be at least 2 characters"}, p.Errors[1])
}

func TestValidation_PlainError(t *testing.T) {
	p := Validation(errors.New("unexpected EOF"))

	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "unexpected EOF", p.Detail)
	assert.Empty(t, p.Errors)
}

func TestAbort_RecordsProblem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/tasks/9", nil)

	Abort(c, NotFound("task 9 not found"))

	assert.True(t, c.IsAborted())
	require.Len(t, c.Errors, 1)
	p, ok := c.Errors[0].Meta.(*Problem)
	require.True(t, ok)
	assert.Equal(t, "/tasks/9", p.Instance)
	assert.Equal(t, "task 9 not found", p.Error())
}
