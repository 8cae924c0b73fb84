package store

import (
	"context"
	"fmt"
	"strings"
)

// migration is one named, idempotent schema step. DDL is written once with
// {{...}} markers that expand per dialect.
type migration struct {
	Name       string
	Statements []string
}

var migrations = []migration{
	{"001_inventions", []string{`
		CREATE TABLE IF NOT EXISTS inventions (
			id {{pk}},
			name TEXT NOT NULL UNIQUE,
			year INTEGER,
			summary TEXT NOT NULL,
			narrative TEXT NOT NULL,
			key_lesson TEXT NOT NULL,
			serendipity_moments {{json}} NOT NULL,
			critical_prerequisites {{json}} NOT NULL,
			objective_blindness_examples {{json}} NOT NULL,
			pattern_explanations {{json}} NOT NULL,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,
	}},
	{"002_discoveries", []string{`
		CREATE TABLE IF NOT EXISTS discoveries (
			id {{pk}},
			invention_id {{fk}} NOT NULL REFERENCES inventions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			year INTEGER,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			discovery_type TEXT NOT NULL,
			original_goal TEXT,
			actual_outcome TEXT NOT NULL,
			significance TEXT NOT NULL,
			location TEXT,
			discoverers {{json}} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_discoveries_invention ON discoveries(invention_id, position)`,
	}},
	{"003_connections", []string{`
		CREATE TABLE IF NOT EXISTS connections (
			id {{pk}},
			from_discovery_id {{fk}} NOT NULL REFERENCES discoveries(id) ON DELETE CASCADE,
			to_discovery_id {{fk}} NOT NULL REFERENCES discoveries(id) ON DELETE CASCADE,
			relationship_type TEXT NOT NULL,
			description TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(from_discovery_id)`,
	}},
	{"004_patterns", []string{`
		CREATE TABLE IF NOT EXISTS patterns (
			id {{pk}},
			pattern_type TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL,
			insights TEXT NOT NULL,
			examples {{json}} NOT NULL,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`, `
		CREATE TABLE IF NOT EXISTS invention_patterns (
			id {{pk}},
			invention_id {{fk}} NOT NULL REFERENCES inventions(id) ON DELETE CASCADE,
			pattern_id {{fk}} NOT NULL REFERENCES patterns(id) ON DELETE CASCADE,
			UNIQUE (invention_id, pattern_id)
		)`,
	}},
}

func (s *SQLStore) ddl(stmt string) string {
	r := strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{fk}}", "INTEGER",
		"{{json}}", "TEXT",
		"{{ts}}", "TIMESTAMP",
	)
	if s.dialect == dialectPostgres {
		r = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{fk}}", "BIGINT",
			"{{json}}", "JSONB",
			"{{ts}}", "TIMESTAMPTZ",
		)
	}
	return r.Replace(stmt)
}

// migrate applies every migration not yet recorded in schema_migrations.
func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.ddl(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at {{ts}} NOT NULL
		)`)); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scanning schema_migrations: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Name] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		s.logger.Debug("applied migration", "name", m.Name)
	}
	return nil
}

func (s *SQLStore) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, s.ddl(stmt)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`),
		m.Name, now()); err != nil {
		return err
	}
	return tx.Commit()
}
