// Package openapi validates incoming requests against a service's OpenAPI
// document and serves the document itself.
package openapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	oapimiddleware "github.com/oapi-codegen/gin-middleware"
	"github.com/simdev/taskhub/pkg/http/problems"
)

// DocumentRoute serves the raw document.
const DocumentRoute = "/openapi.yaml"

// Load parses and validates an OpenAPI 3 document.
func Load(ctx context.Context, data []byte) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	// Routes are matched on the path alone.
	doc.Servers = nil
	return doc, nil
}

// Validator rejects requests that do not match doc with a 400 problem.
// Only paths under the document's top-level segments are checked, so
// health and document routes pass through.
func Validator(doc *openapi3.T) gin.HandlerFunc {
	validate := oapimiddleware.OapiRequestValidatorWithOptions(doc, &oapimiddleware.Options{
		ErrorHandler: func(c *gin.Context, message string, statusCode int) {
			problems.Abort(c, problems.New(statusCode, message))
		},
		SilenceServersWarning: true,
	})
	prefixes := pathPrefixes(doc)

	return func(c *gin.Context) {
		if !hasPrefix(c.Request.URL.Path, prefixes) {
			c.Next()
			return
		}
		validate(c)
	}
}

// pathPrefixes returns the first segment of every documented path, e.g. "/tasks".
func pathPrefixes(doc *openapi3.T) []string {
	seen := map[string]bool{}
	var prefixes []string
	for path := range doc.Paths.Map() {
		segment := "/" + strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
		if !seen[segment] {
			seen[segment] = true
			prefixes = append(prefixes, segment)
		}
	}
	return prefixes
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func registerDocs(r *gin.Engine, data []byte) {
	r.GET(DocumentRoute, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", data)
	})
}
