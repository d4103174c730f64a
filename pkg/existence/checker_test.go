package existence

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/42/exists":
			_, _ = w.Write([]byte(`{"exists":true,"userId":42}`))
		case "/users/7/exists":
			_, _ = w.Write([]byte(`{"exists":false,"userId":7}`))
		case "/users/500/exists":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/users/400/exists":
			http.Error(w, "bad id", http.StatusBadRequest)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPChecker(srv.Client(), srv.URL+"/")

	t.Run("exists", func(t *testing.T) {
		ok, err := c.Check(context.Background(), 42)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("does not exist", func(t *testing.T) {
		ok, err := c.Check(context.Background(), 7)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("404 means absent", func(t *testing.T) {
		ok, err := c.Check(context.Background(), 9)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("server error is temporary", func(t *testing.T) {
		_, err := c.Check(context.Background(), 500)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.True(t, se.Temporary())
	})

	t.Run("client error is not temporary", func(t *testing.T) {
		_, err := c.Check(context.Background(), 400)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.False(t, se.Temporary())
	})
}
