package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"dynfilter/internal/filter"
	"dynfilter/internal/metadata"
	"dynfilter/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
}

func NewHandler(s *store.Store, reg *metadata.Registry) *Handler {
	return &Handler{store: s, registry: reg}
}

// List handles GET /api/:model — the filtered, ordered listing.
func (h *Handler) List(c *fiber.Ctx) error {
	model, err := h.resolveModel(c)
	if err != nil {
		return err
	}

	mf := h.newFilter(c, model)
	coll, ok := mf.Result().(*SQLCollection)
	if !ok {
		return fmt.Errorf("list %s: unexpected collection type", model.Name)
	}

	rows, err := coll.Fetch(c.Context(), h.store.Pool)
	if err != nil {
		return fmt.Errorf("list %s: %w", model.Name, err)
	}

	total, err := coll.Count(c.Context(), h.store.Pool)
	if err != nil {
		return fmt.Errorf("count %s: %w", model.Name, err)
	}

	// Ensure non-nil slice for JSON
	if rows == nil {
		rows = []map[string]any{}
	}

	return c.JSON(fiber.Map{
		"data": rows,
		"meta": fiber.Map{"total": total},
	})
}

// FilterableFields handles GET /api/:model/filterable-fields — field
// metadata for documentation or frontend filter builders.
func (h *Handler) FilterableFields(c *fiber.Ctx) error {
	model, err := h.resolveModel(c)
	if err != nil {
		return err
	}

	mf := h.newFilter(c, model)
	return c.JSON(fiber.Map{"data": mf.FilterableFields()})
}

// FilterParams handles GET /api/:model/filter-params — the normalized echo
// of the accepted filter parameters.
func (h *Handler) FilterParams(c *fiber.Ctx) error {
	model, err := h.resolveModel(c)
	if err != nil {
		return err
	}

	mf := h.newFilter(c, model)
	return c.JSON(fiber.Map{"data": mf.FilterParams()})
}

// GetByID handles GET /api/:model/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	model, err := h.resolveModel(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(model.FieldNames(), ", "), model.Table, model.PrimaryKey.Field)
	row, err := store.QueryRow(c.Context(), h.store.Pool, sql, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, NotFoundError(model.Name, id))
		}
		return fmt.Errorf("get %s/%s: %w", model.Name, id, err)
	}

	return c.JSON(fiber.Map{"data": row})
}

// Create handles POST /api/:model — a plain insert of writable fields.
func (h *Handler) Create(c *fiber.Ctx) error {
	model, err := h.resolveModel(c)
	if err != nil {
		return err
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	columns := []string{}
	placeholders := []string{}
	pb := &paramBuilder{}

	if model.PrimaryKey.Generated && model.PrimaryKey.Type == "uuid" {
		columns = append(columns, model.PrimaryKey.Field)
		placeholders = append(placeholders, pb.Add(uuid.New().String()))
	}

	for _, f := range model.WritableFields() {
		value, supplied := body[f.Name]
		if !supplied {
			continue
		}
		columns = append(columns, f.Name)
		placeholders = append(placeholders, pb.Add(value))
	}
	if len(columns) == 0 {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "No writable fields supplied"))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		model.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), model.PrimaryKey.Field)

	var id any
	if err := h.store.Pool.QueryRow(c.Context(), sql, pb.params...).Scan(&id); err != nil {
		return handleWriteError(c, fmt.Errorf("create %s: %w", model.Name, err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"id": fmt.Sprint(id)}})
}

// Delete handles DELETE /api/:model/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	model, err := h.resolveModel(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", model.Table, model.PrimaryKey.Field)
	affected, err := store.Exec(c.Context(), h.store.Pool, sql, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", model.Name, id, err)
	}
	if affected == 0 {
		return respondError(c, NotFoundError(model.Name, id))
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// newFilter builds the per-request ModelFilter over a SQL collection.
func (h *Handler) newFilter(c *fiber.Ctx, model *metadata.Model) *filter.ModelFilter {
	params := paramsFromCtx(c)
	coll := NewSQLCollection(model, h.registry)
	cfg := filter.Config{
		FilterFields: model.FilterFields,
		SearchFields: model.SearchFields,
	}
	return filter.New(model, h.registry, params, coll, cfg)
}

// paramsFromCtx collects query parameters preserving repeated keys.
func paramsFromCtx(c *fiber.Ctx) filter.Params {
	params := filter.Params{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		params[key] = append(params[key], string(v))
	})
	return params
}

func (h *Handler) resolveModel(c *fiber.Ctx) (*metadata.Model, error) {
	name := c.Params("model")
	model := h.registry.GetModel(name)
	if model == nil {
		return nil, UnknownModelError(name)
	}
	return model, nil
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

func handleWriteError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		msg := "A record with this value already exists"
		if pgErr.Detail != "" {
			msg = pgErr.Detail
		}
		return respondError(c, ConflictError(msg))
	}

	return err
}
