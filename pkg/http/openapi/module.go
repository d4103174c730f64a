package openapi

import (
	"context"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/http/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ValidatorPriority places request validation after the problem renderer.
const ValidatorPriority = 90

// NewOpenAPIModule loads data as the service's API description, validates
// requests against it and serves it at /openapi.yaml.
//
//	//go:embed openapi.yaml
//	var apiSpec []byte
//
//	openapi.NewOpenAPIModule(apiSpec)
func NewOpenAPIModule(data []byte) fx.Option {
	return fx.Module("openapi",
		fx.Provide(
			func() (*openapi3.T, error) {
				return Load(context.Background(), data)
			},
			fx.Annotate(
				func(doc *openapi3.T) middleware.Middleware {
					return middleware.Middleware{Priority: ValidatorPriority, Handler: Validator(doc)}
				},
				fx.ResultTags(`group:"gin_mw"`),
			),
		),
		fx.Invoke(func(r *gin.Engine, doc *openapi3.T, log *zap.Logger) {
			registerDocs(r, data)
			log.Info("openapi document loaded",
				zap.String("title", doc.Info.Title),
				zap.String("version", doc.Info.Version),
				zap.Int("paths", doc.Paths.Len()))
		}),
	)
}
