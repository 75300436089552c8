package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all route groups: webhook receivers first, then the
// API-key-protected read API.
func InstallRouter(app *fiber.App, deps *Dependencies) {
	setup(app, NewWebhookRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, routers ...Router) {
	for _, r := range routers {
		r.InstallRouter(app)
	}
}
