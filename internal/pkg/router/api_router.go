package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/clubops/supporter360/app/controllers"
	"github.com/clubops/supporter360/internal/pkg/middleware"
)

type ApiRouter struct {
	deps *Dependencies
}

func NewApiRouter(deps *Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

// InstallRouter registers the rate-limited, API-key-protected read API.
func (ar ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())

	sc := controllers.NewSupporterController(ar.deps.Repos)
	v1.Get("/supporters", sc.HandleSearch)
	v1.Get("/supporters/:id", sc.HandleProfile)
	v1.Get("/supporters/:id/timeline", sc.HandleTimeline)

	qc := controllers.NewQueueController(ar.deps.Queue)
	v1.Get("/queue/stats", qc.HandleStats)
}
