package store

import (
	"context"
	"errors"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

// ErrNotFound is returned by Get, GetByName and Delete when the requested
// invention does not exist.
var ErrNotFound = errors.New("invention not found")

// ErrUnavailable wraps failures to reach the database.
var ErrUnavailable = errors.New("store unavailable")

// Store defines the interface for invention and pattern persistence.
type Store interface {
	// Save stores a validated analysis together with its pattern membership
	// and explanations. When an invention with the same name already exists
	// nothing is written and the existing record is returned with
	// created == false.
	Save(ctx context.Context, analysis *models.InventionAnalysis) (*models.InventionRecord, bool, error)

	// Get reconstructs a stored invention by ID.
	Get(ctx context.Context, id int64) (*models.InventionRecord, error)

	// GetByName reconstructs a stored invention by its exact name.
	GetByName(ctx context.Context, name string) (*models.InventionRecord, error)

	// List returns one summary row per stored invention, oldest first.
	List(ctx context.Context) ([]models.InventionSummary, error)

	// ListRecords reconstructs every stored invention, oldest first.
	ListRecords(ctx context.Context) ([]models.InventionRecord, error)

	// ListPatterns returns every pattern aggregate in canonical order.
	ListPatterns(ctx context.Context) ([]models.PatternAggregate, error)

	// UpdatePatternAggregate writes the result of a cross-invention pass.
	UpdatePatternAggregate(ctx context.Context, update models.PatternUpdate) (*models.PatternAggregate, error)

	// Delete removes an invention together with its discoveries, connections
	// and pattern memberships.
	Delete(ctx context.Context, id int64) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
