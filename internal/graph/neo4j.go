// Package graph mirrors stored inventions into Neo4j as a discovery graph:
// (:Invention)-[:HAS_DISCOVERY]->(:Discovery)-[:LEADS_TO]->(:Discovery) and
// (:Invention)-[:EXHIBITS]->(:Pattern).
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

// Projector mirrors inventions into a graph store.
type Projector interface {
	Project(ctx context.Context, rec *models.InventionRecord) error
	Remove(ctx context.Context, inventionID int64) error
	Close(ctx context.Context) error
}

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// Neo4jProjector implements Projector on the official Neo4j driver.
type Neo4jProjector struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Compile-time interface check.
var _ Projector = (*Neo4jProjector)(nil)

var schemaStatements = []string{
	`CREATE CONSTRAINT invention_id_unique IF NOT EXISTS FOR (i:Invention) REQUIRE i.id IS UNIQUE`,
	`CREATE CONSTRAINT discovery_id_unique IF NOT EXISTS FOR (d:Discovery) REQUIRE d.id IS UNIQUE`,
	`CREATE CONSTRAINT pattern_type_unique IF NOT EXISTS FOR (p:Pattern) REQUIRE p.type IS UNIQUE`,
}

// NewNeo4jProjector connects to Neo4j, verifies connectivity and creates
// the uniqueness constraints. Constraint failures are logged, not fatal.
func NewNeo4jProjector(ctx context.Context, cfg Config, logger *slog.Logger) (*Neo4jProjector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, fmt.Errorf("neo4j: uri required")
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	p := &Neo4jProjector{driver: driver, database: cfg.Database, logger: logger}
	p.ensureSchema(ctx)
	return p, nil
}

func (p *Neo4jProjector) ensureSchema(ctx context.Context) {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: p.database})
	defer func() { _ = session.Close(ctx) }()
	for _, q := range schemaStatements {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			p.logger.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

// Project writes the invention, its discoveries, connections and patterns.
// Every write is a MERGE, so projecting the same record twice is harmless.
func (p *Neo4jProjector) Project(ctx context.Context, rec *models.InventionRecord) error {
	if rec == nil {
		return nil
	}
	params := BuildParams(rec, time.Now().UTC())

	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: p.database})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []struct {
			query string
			skip  bool
		}{
			{query: `
MERGE (i:Invention {id: $invention.id})
SET i += $invention`},
			{skip: len(params.Discoveries) == 0, query: `
MATCH (i:Invention {id: $invention.id})
UNWIND $discoveries AS d
MERGE (n:Discovery {id: d.id})
SET n += d
MERGE (i)-[r:HAS_DISCOVERY]->(n)
SET r.position = d.position`},
			{skip: len(params.Connections) == 0, query: `
UNWIND $connections AS c
MATCH (a:Discovery {id: c.from})
MATCH (b:Discovery {id: c.to})
MERGE (a)-[r:LEADS_TO]->(b)
SET r.relationship_type = c.relationship_type,
    r.description = c.description`},
			{skip: len(params.Patterns) == 0, query: `
MATCH (i:Invention {id: $invention.id})
UNWIND $patterns AS pt
MERGE (p:Pattern {type: pt.type})
MERGE (i)-[r:EXHIBITS]->(p)
SET r.explanation = pt.explanation`},
		}
		for _, step := range steps {
			if step.skip {
				continue
			}
			res, err := tx.Run(ctx, step.query, params.Map())
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: project invention %d: %w", rec.ID, err)
	}
	p.logger.Debug("projected invention to graph", "id", rec.ID,
		"discoveries", len(params.Discoveries), "connections", len(params.Connections), "patterns", len(params.Patterns))
	return nil
}

// Remove deletes an invention node and the discoveries it owns. Pattern
// nodes are shared and stay.
func (p *Neo4jProjector) Remove(ctx context.Context, inventionID int64) error {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: p.database})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (i:Invention {id: $id})
OPTIONAL MATCH (i)-[:HAS_DISCOVERY]->(d:Discovery)
DETACH DELETE d, i`, map[string]any{"id": inventionID})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: remove invention %d: %w", inventionID, err)
	}
	return nil
}

// Close releases the driver.
func (p *Neo4jProjector) Close(ctx context.Context) error {
	if p == nil || p.driver == nil {
		return nil
	}
	return p.driver.Close(ctx)
}
