package store

import (
	"context"
	"fmt"
	"strings"

	"dynfilter/internal/metadata"
)

type Migrator struct {
	store  *Store
	models *metadata.Registry
}

func NewMigrator(store *Store, models *metadata.Registry) *Migrator {
	return &Migrator{store: store, models: models}
}

// Migrate ensures the Postgres table matches the model metadata. Creates
// the table if it doesn't exist, or adds missing columns.
func (m *Migrator) Migrate(ctx context.Context, model *metadata.Model) error {
	exists, err := m.tableExists(ctx, model.Table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		return m.createTable(ctx, model)
	}

	return m.alterTable(ctx, model)
}

func (m *Migrator) tableExists(ctx context.Context, tableName string) (bool, error) {
	var exists bool
	err := m.store.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1 AND table_schema = 'public')`,
		tableName,
	).Scan(&exists)
	return exists, err
}

func (m *Migrator) createTable(ctx context.Context, model *metadata.Model) error {
	var cols []string
	for i := range model.Fields {
		f := &model.Fields[i]
		if f.Reverse {
			continue
		}
		cols = append(cols, m.buildColumnDef(model, f))
	}

	sql := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", model.Table, strings.Join(cols, ",\n  "))

	if _, err := m.store.Pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create table %s: %w", model.Table, err)
	}
	return nil
}

func (m *Migrator) alterTable(ctx context.Context, model *metadata.Model) error {
	existing, err := m.getColumns(ctx, model.Table)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", model.Table, err)
	}

	for i := range model.Fields {
		f := &model.Fields[i]
		if f.Reverse {
			continue
		}
		if _, ok := existing[f.Name]; ok {
			continue
		}
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", model.Table, f.Name, m.columnType(f))
		if _, err := m.store.Pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("add column %s.%s: %w", model.Table, f.Name, err)
		}
	}
	return nil
}

func (m *Migrator) getColumns(ctx context.Context, tableName string) (map[string]bool, error) {
	rows, err := m.store.Pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_name = $1 AND table_schema = 'public'`,
		tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (m *Migrator) buildColumnDef(model *metadata.Model, f *metadata.Field) string {
	col := f.Name + " " + m.columnType(f)

	if f.Name == model.PrimaryKey.Field {
		col += " PRIMARY KEY"
		if model.PrimaryKey.Generated && model.PrimaryKey.Type == "uuid" {
			col += " DEFAULT gen_random_uuid()"
		}
		return col
	}

	if f.Required && !f.Nullable {
		col += " NOT NULL"
	}
	if f.Unique {
		col += " UNIQUE"
	}
	return col
}

// columnType resolves the DDL type; relation fields take their target's
// primary key type.
func (m *Migrator) columnType(f *metadata.Field) string {
	if f.IsRelation() && m.models != nil {
		if target := m.models.GetModel(f.Relation); target != nil {
			if pk := target.GetField(target.PrimaryKey.Field); pk != nil {
				return pk.PostgresType()
			}
		}
	}
	return f.PostgresType()
}
