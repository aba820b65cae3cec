package admin

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"dynfilter/internal/metadata"
	"dynfilter/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	migrator *store.Migrator
}

func NewHandler(s *store.Store, reg *metadata.Registry, mig *store.Migrator) *Handler {
	return &Handler{store: s, registry: reg, migrator: mig}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/models", h.ListModels)
	admin.Get("/models/:name", h.GetModel)
	admin.Post("/models", h.CreateModel)
	admin.Put("/models/:name", h.UpdateModel)
	admin.Delete("/models/:name", h.DeleteModel)
}

func (h *Handler) ListModels(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.Context(), h.store.Pool,
		"SELECT name, table_name, definition, created_at, updated_at FROM _models ORDER BY name")
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handler) GetModel(c *fiber.Ctx) error {
	name := c.Params("name")
	row, err := store.QueryRow(c.Context(), h.store.Pool,
		"SELECT name, table_name, definition, created_at, updated_at FROM _models WHERE name = $1", name)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": "Model not found: " + name}})
	}
	return c.JSON(fiber.Map{"data": row})
}

func (h *Handler) CreateModel(c *fiber.Ctx) error {
	var model metadata.Model
	if err := c.BodyParser(&model); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fiber.Map{"code": "INVALID_PAYLOAD", "message": "Invalid JSON body"}})
	}

	if err := validateModel(&model); err != nil {
		return c.Status(422).JSON(fiber.Map{"error": fiber.Map{"code": "VALIDATION_FAILED", "message": err.Error()}})
	}

	if existing := h.registry.GetModel(model.Name); existing != nil {
		return c.Status(409).JSON(fiber.Map{"error": fiber.Map{"code": "CONFLICT", "message": "Model already exists: " + model.Name}})
	}

	defJSON, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	_, err = store.Exec(c.Context(), h.store.Pool,
		"INSERT INTO _models (name, table_name, definition) VALUES ($1, $2, $3)",
		model.Name, model.Table, defJSON)
	if err != nil {
		return fmt.Errorf("insert model: %w", err)
	}

	if err := h.migrator.Migrate(c.Context(), &model); err != nil {
		return fmt.Errorf("migrate model %s: %w", model.Name, err)
	}

	if err := metadata.Reload(c.Context(), h.store.Pool, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}

	return c.Status(201).JSON(fiber.Map{"data": model})
}

func (h *Handler) UpdateModel(c *fiber.Ctx) error {
	name := c.Params("name")
	existing := h.registry.GetModel(name)
	if existing == nil {
		return c.Status(404).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": "Model not found: " + name}})
	}

	var model metadata.Model
	if err := c.BodyParser(&model); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fiber.Map{"code": "INVALID_PAYLOAD", "message": "Invalid JSON body"}})
	}
	model.Name = name // ensure name matches URL

	if err := validateModel(&model); err != nil {
		return c.Status(422).JSON(fiber.Map{"error": fiber.Map{"code": "VALIDATION_FAILED", "message": err.Error()}})
	}

	defJSON, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	_, err = store.Exec(c.Context(), h.store.Pool,
		"UPDATE _models SET table_name = $1, definition = $2, updated_at = NOW() WHERE name = $3",
		model.Table, defJSON, name)
	if err != nil {
		return fmt.Errorf("update model: %w", err)
	}

	if err := h.migrator.Migrate(c.Context(), &model); err != nil {
		return fmt.Errorf("migrate model %s: %w", model.Name, err)
	}

	if err := metadata.Reload(c.Context(), h.store.Pool, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}

	return c.JSON(fiber.Map{"data": model})
}

func (h *Handler) DeleteModel(c *fiber.Ctx) error {
	name := c.Params("name")
	existing := h.registry.GetModel(name)
	if existing == nil {
		return c.Status(404).JSON(fiber.Map{"error": fiber.Map{"code": "NOT_FOUND", "message": "Model not found: " + name}})
	}

	_, err := store.Exec(c.Context(), h.store.Pool,
		"DELETE FROM _models WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("delete model %s: %w", name, err)
	}

	if err := metadata.Reload(c.Context(), h.store.Pool, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"name": name, "deleted": true}})
}

func validateModel(m *metadata.Model) error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Table == "" {
		return fmt.Errorf("table name is required")
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("model must have at least one field")
	}
	if m.PrimaryKey.Field == "" {
		return fmt.Errorf("primary key field is required")
	}
	if !m.HasField(m.PrimaryKey.Field) {
		return fmt.Errorf("primary key field %s not found in fields", m.PrimaryKey.Field)
	}
	for _, f := range m.Fields {
		if f.Type == "relation" && f.Relation == "" {
			return fmt.Errorf("field %s: relation target is required", f.Name)
		}
	}
	for _, name := range m.FilterFields {
		if !m.HasField(name) {
			return fmt.Errorf("filter field %s not found in fields", name)
		}
	}
	for _, name := range m.SearchFields {
		if !m.HasField(name) {
			return fmt.Errorf("search field %s not found in fields", name)
		}
	}
	return nil
}
