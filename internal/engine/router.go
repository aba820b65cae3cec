package engine

import "github.com/gofiber/fiber/v2"

// RegisterModelRoutes mounts the model API under /api. Middleware is
// attached per route rather than on the group so handlers reading the
// :model route param (access checks) see it bound.
func RegisterModelRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api")

	route := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, middleware...), handler)
	}

	// Meta routes before /:model/:id so the literal segments win
	api.Get("/:model/filterable-fields", route(h.FilterableFields)...)
	api.Get("/:model/filter-params", route(h.FilterParams)...)

	api.Get("/:model", route(h.List)...)
	api.Get("/:model/:id", route(h.GetByID)...)
	api.Post("/:model", route(h.Create)...)
	api.Delete("/:model/:id", route(h.Delete)...)
}
