package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/metrics"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

func now() time.Time { return time.Now().UTC() }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Save stores the analysis with its discoveries, connections and pattern
// membership in one transaction. Connections whose endpoints do not both
// name a discovery of this analysis are dropped.
func (s *SQLStore) Save(ctx context.Context, a *models.InventionAnalysis) (*models.InventionRecord, bool, error) {
	if a == nil {
		return nil, false, &models.ValidationError{Problems: []string{"analysis is required"}}
	}
	if err := a.Validate(); err != nil {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, s.wrap("begin save", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	id, err := s.insertInvention(ctx, tx, a)
	if errors.Is(err, sql.ErrNoRows) {
		// Name already taken: release the transaction before reading so the
		// single SQLite connection is free.
		_ = tx.Rollback()
		committed = true
		rec, err := s.GetByName(ctx, a.InventionName)
		if err != nil {
			return nil, false, err
		}
		return rec, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("insert invention", err)
	}

	rowIDs := make(map[string]int64, len(a.Discoveries))
	for i := range a.Discoveries {
		d := &a.Discoveries[i]
		rowID, err := s.insertDiscovery(ctx, tx, id, i, d)
		if err != nil {
			return nil, false, s.wrap("insert discovery", err)
		}
		key := d.ID
		if key == "" {
			key = uuid.NewString()
		}
		rowIDs[key] = rowID
	}

	dropped := 0
	for _, c := range a.Connections {
		from, okFrom := rowIDs[c.FromDiscoveryID]
		to, okTo := rowIDs[c.ToDiscoveryID]
		if !okFrom || !okTo {
			dropped++
			continue
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO connections (from_discovery_id, to_discovery_id, relationship_type, description)
			VALUES (?, ?, ?, ?)`),
			from, to, c.RelationshipType, c.Description); err != nil {
			return nil, false, s.wrap("insert connection", err)
		}
	}

	if err := s.recordPatterns(ctx, tx, id, a); err != nil {
		return nil, false, s.wrap("record patterns", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, s.wrap("commit save", err)
	}
	committed = true

	if dropped > 0 {
		metrics.DroppedConnections.Add(int64(dropped))
		s.logger.Debug("dropped dangling connections", "invention", a.InventionName, "count", dropped)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// insertInvention is an atomic find-or-insert on the unique name. It
// returns sql.ErrNoRows when the name already exists.
func (s *SQLStore) insertInvention(ctx context.Context, q querier, a *models.InventionAnalysis) (int64, error) {
	moments, err := encodeJSON(a.SerendipityMoments, "[]")
	if err != nil {
		return 0, err
	}
	prereqs, err := encodeJSON(a.CriticalPrerequisites, "[]")
	if err != nil {
		return 0, err
	}
	blindness, err := encodeJSON(a.ObjectiveBlindnessExamples, "[]")
	if err != nil {
		return 0, err
	}
	explanations, err := encodeJSON(a.PatternExplanations, "{}")
	if err != nil {
		return 0, err
	}

	ts := now()
	var id int64
	err = q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO inventions (name, year, summary, narrative, key_lesson,
			serendipity_moments, critical_prerequisites, objective_blindness_examples,
			pattern_explanations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`),
		a.InventionName, nullInt(a.InventionYear), a.Summary, a.Narrative, a.KeyLesson,
		moments, prereqs, blindness, explanations, ts, ts,
	).Scan(&id)
	return id, err
}

func (s *SQLStore) insertDiscovery(ctx context.Context, q querier, inventionID int64, position int, d *models.Discovery) (int64, error) {
	discoverers, err := encodeJSON(d.Discoverers, "[]")
	if err != nil {
		return 0, err
	}
	var id int64
	err = q.QueryRowContext(ctx, s.rebind(`
		INSERT INTO discoveries (invention_id, position, year, title, description, discovery_type,
			original_goal, actual_outcome, significance, location, discoverers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		inventionID, position, nullInt(d.Year), d.Title, d.Description, string(d.DiscoveryType),
		nullString(d.OriginalGoal), d.ActualOutcome, d.Significance, nullString(d.Location), discoverers,
	).Scan(&id)
	return id, err
}

// Get reconstructs a stored invention by ID.
func (s *SQLStore) Get(ctx context.Context, id int64) (*models.InventionRecord, error) {
	return s.load(ctx, `WHERE id = ?`, id)
}

// GetByName reconstructs a stored invention by its exact name.
func (s *SQLStore) GetByName(ctx context.Context, name string) (*models.InventionRecord, error) {
	return s.load(ctx, `WHERE name = ?`, name)
}

const inventionColumns = `id, name, year, summary, narrative, key_lesson,
	serendipity_moments, critical_prerequisites, objective_blindness_examples,
	pattern_explanations, created_at`

// load reads the invention row and then its children. Every result set is
// closed before the next query so a single-connection pool cannot deadlock.
func (s *SQLStore) load(ctx context.Context, where string, arg any) (*models.InventionRecord, error) {
	var (
		rec                                       models.InventionRecord
		year                                      sql.NullInt64
		moments, prereqs, blindness, explanations []byte
	)
	a := &rec.Analysis
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+inventionColumns+` FROM inventions `+where), arg).Scan(
		&rec.ID, &a.InventionName, &year, &a.Summary, &a.Narrative, &a.KeyLesson,
		&moments, &prereqs, &blindness, &explanations, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.wrap("get invention", err)
	}
	a.InventionYear = intPtr(year)
	if err := decodeJSON(moments, &a.SerendipityMoments); err != nil {
		return nil, fmt.Errorf("invention %d serendipity_moments: %w", rec.ID, err)
	}
	if err := decodeJSON(prereqs, &a.CriticalPrerequisites); err != nil {
		return nil, fmt.Errorf("invention %d critical_prerequisites: %w", rec.ID, err)
	}
	if err := decodeJSON(blindness, &a.ObjectiveBlindnessExamples); err != nil {
		return nil, fmt.Errorf("invention %d objective_blindness_examples: %w", rec.ID, err)
	}
	if err := decodeJSON(explanations, &a.PatternExplanations); err != nil {
		return nil, fmt.Errorf("invention %d pattern_explanations: %w", rec.ID, err)
	}

	if a.Discoveries, err = s.loadDiscoveries(ctx, rec.ID); err != nil {
		return nil, err
	}
	if a.Connections, err = s.loadConnections(ctx, rec.ID); err != nil {
		return nil, err
	}
	if a.PatternsIdentified, err = s.loadPatternTypes(ctx, rec.ID); err != nil {
		return nil, err
	}
	a.Normalize()
	return &rec, nil
}

func (s *SQLStore) loadDiscoveries(ctx context.Context, inventionID int64) ([]models.Discovery, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, year, title, description, discovery_type, original_goal,
			actual_outcome, significance, location, discoverers
		FROM discoveries WHERE invention_id = ? ORDER BY position, id`), inventionID)
	if err != nil {
		return nil, s.wrap("list discoveries", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Discovery{}
	for rows.Next() {
		var (
			d              models.Discovery
			rowID          int64
			year           sql.NullInt64
			goal, location sql.NullString
			dtype          string
			discoverers    []byte
		)
		if err := rows.Scan(&rowID, &year, &d.Title, &d.Description, &dtype, &goal,
			&d.ActualOutcome, &d.Significance, &location, &discoverers); err != nil {
			return nil, s.wrap("scan discovery", err)
		}
		d.ID = strconv.FormatInt(rowID, 10)
		d.Year = intPtr(year)
		d.DiscoveryType = models.DiscoveryType(dtype)
		d.OriginalGoal = stringPtr(goal)
		d.Location = stringPtr(location)
		if err := decodeJSON(discoverers, &d.Discoverers); err != nil {
			return nil, fmt.Errorf("discovery %d discoverers: %w", rowID, err)
		}
		out = append(out, d)
	}
	return out, s.wrap("list discoveries", rows.Err())
}

// loadConnections walks each discovery's outgoing edges in discovery order.
func (s *SQLStore) loadConnections(ctx context.Context, inventionID int64) ([]models.Connection, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT c.from_discovery_id, c.to_discovery_id, c.relationship_type, c.description
		FROM connections c
		JOIN discoveries d ON d.id = c.from_discovery_id
		WHERE d.invention_id = ?
		ORDER BY d.position, d.id, c.id`), inventionID)
	if err != nil {
		return nil, s.wrap("list connections", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Connection{}
	for rows.Next() {
		var (
			c        models.Connection
			from, to int64
		)
		if err := rows.Scan(&from, &to, &c.RelationshipType, &c.Description); err != nil {
			return nil, s.wrap("scan connection", err)
		}
		c.FromDiscoveryID = strconv.FormatInt(from, 10)
		c.ToDiscoveryID = strconv.FormatInt(to, 10)
		out = append(out, c)
	}
	return out, s.wrap("list connections", rows.Err())
}

func (s *SQLStore) loadPatternTypes(ctx context.Context, inventionID int64) ([]models.PatternType, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.pattern_type
		FROM invention_patterns ip
		JOIN patterns p ON p.id = ip.pattern_id
		WHERE ip.invention_id = ?
		ORDER BY ip.id`), inventionID)
	if err != nil {
		return nil, s.wrap("list invention patterns", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.PatternType{}
	for rows.Next() {
		var pt string
		if err := rows.Scan(&pt); err != nil {
			return nil, s.wrap("scan invention pattern", err)
		}
		out = append(out, models.PatternType(pt))
	}
	return out, s.wrap("list invention patterns", rows.Err())
}

// List returns one summary row per stored invention, oldest first.
func (s *SQLStore) List(ctx context.Context) ([]models.InventionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, year, summary, created_at FROM inventions ORDER BY id`)
	if err != nil {
		return nil, s.wrap("list inventions", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.InventionSummary{}
	for rows.Next() {
		var (
			sum  models.InventionSummary
			year sql.NullInt64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &year, &sum.Summary, &sum.CreatedAt); err != nil {
			return nil, s.wrap("scan invention", err)
		}
		sum.Year = intPtr(year)
		out = append(out, sum)
	}
	return out, s.wrap("list inventions", rows.Err())
}

// ListRecords reconstructs every stored invention, oldest first.
func (s *SQLStore) ListRecords(ctx context.Context) ([]models.InventionRecord, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.InventionRecord, 0, len(summaries))
	for _, sum := range summaries {
		rec, err := s.Get(ctx, sum.ID)
		if errors.Is(err, ErrNotFound) {
			continue // deleted since the listing
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Delete removes an invention. Discoveries, connections and pattern
// memberships go with it through ON DELETE CASCADE.
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM inventions WHERE id = ?`), id)
	if err != nil {
		return s.wrap("delete invention", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap("delete invention", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding json column: %w", err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func decodeJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
