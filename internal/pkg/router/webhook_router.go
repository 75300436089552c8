package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clubops/supporter360/app/controllers"
	"github.com/clubops/supporter360/app/repository"
	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/rawstore"
)

// Dependencies carries the shared collaborators the route groups need.
type Dependencies struct {
	Repos    *repository.Repositories
	RawStore rawstore.Store
	Queue    *eventqueue.Queue
}

type WebhookRouter struct {
	deps *Dependencies
}

func NewWebhookRouter(deps *Dependencies) *WebhookRouter {
	return &WebhookRouter{deps: deps}
}

// InstallRouter registers one receiver per provider plus the liveness probe.
// Receivers are unauthenticated by design; webhook authenticity comes from
// per-provider signature verification inside the controller.
func (wr WebhookRouter) InstallRouter(app *fiber.App) {
	wc := controllers.NewWebhookController(wr.deps.RawStore, wr.deps.Queue)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/shopify", wc.HandleShopify)
	webhooks.Post("/stripe", wc.HandleStripe)
	webhooks.Post("/gocardless", wc.HandleGoCardless)
	webhooks.Post("/mailchimp", wc.HandleMailchimp)

	app.Get("/healthz", controllers.HandleHealthz)
}
