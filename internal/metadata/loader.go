package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadAll reads all model definitions from the database and populates the registry.
func LoadAll(ctx context.Context, pool *pgxpool.Pool, reg *Registry) error {
	models, err := loadModels(ctx, pool)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	reg.Load(models)

	log.Printf("Loaded %d models into registry", len(models))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, pool *pgxpool.Pool, reg *Registry) error {
	return LoadAll(ctx, pool, reg)
}

func loadModels(ctx context.Context, pool *pgxpool.Pool) ([]*Model, error) {
	rows, err := pool.Query(ctx, "SELECT name, definition FROM _models ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		var name string
		var defJSON []byte
		if err := rows.Scan(&name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan model row: %w", err)
		}

		var model Model
		if err := json.Unmarshal(defJSON, &model); err != nil {
			log.Printf("WARN: skipping model %s (invalid JSON): %v", name, err)
			continue
		}
		models = append(models, &model)
	}
	return models, rows.Err()
}
