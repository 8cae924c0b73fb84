package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

// recordPatterns creates missing pattern rows, adds the invention to each
// identified pattern, and appends its explanation to the pattern examples.
// Membership has set semantics; examples are append-only.
func (s *SQLStore) recordPatterns(ctx context.Context, q querier, inventionID int64, a *models.InventionAnalysis) error {
	seen := make(map[models.PatternType]bool, len(a.PatternsIdentified))
	for _, pt := range a.PatternsIdentified {
		if seen[pt] || !pt.IsValid() {
			continue
		}
		seen[pt] = true

		patternID, err := s.ensurePattern(ctx, q, pt)
		if err != nil {
			return err
		}
		if err := s.addMember(ctx, q, patternID, inventionID); err != nil {
			return err
		}

		explanation, ok := a.PatternExplanations[pt]
		if !ok {
			continue
		}
		examples, err := s.lockedExamples(ctx, q, patternID)
		if err != nil {
			return err
		}
		examples = append(examples, models.PatternExample{Invention: a.InventionName, Explanation: explanation})
		if err := s.writeExamples(ctx, q, patternID, examples); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePatternAggregate writes the result of a cross-invention comparison.
// Description and insights are overwritten unless KeepText is set; examples
// are replaced only by a non-empty list; membership only grows.
func (s *SQLStore) UpdatePatternAggregate(ctx context.Context, u models.PatternUpdate) (*models.PatternAggregate, error) {
	if !u.PatternType.IsValid() {
		return nil, &models.ValidationError{Problems: []string{fmt.Sprintf("pattern type %q is not a known pattern type", u.PatternType)}}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.wrap("begin update pattern", err)
	}
	defer func() { _ = tx.Rollback() }()

	patternID, err := s.ensurePattern(ctx, tx, u.PatternType)
	if err != nil {
		return nil, err
	}

	if !u.KeepText {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE patterns SET description = ?, insights = ?, updated_at = ? WHERE id = ?`),
			u.Description, u.Insights, now(), patternID); err != nil {
			return nil, s.wrap("update pattern text", err)
		}
	}
	if len(u.Examples) > 0 {
		if err := s.writeExamples(ctx, tx, patternID, u.Examples); err != nil {
			return nil, err
		}
	}
	for _, inventionID := range u.InventionIDs {
		if err := s.addMember(ctx, tx, patternID, inventionID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, s.wrap("commit update pattern", err)
	}

	aggs, err := s.listPatterns(ctx, `WHERE p.pattern_type = ?`, string(u.PatternType))
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("pattern %s vanished after update", u.PatternType)
	}
	return &aggs[0], nil
}

// ListPatterns returns every pattern aggregate in canonical order.
func (s *SQLStore) ListPatterns(ctx context.Context) ([]models.PatternAggregate, error) {
	return s.listPatterns(ctx, "", nil)
}

func (s *SQLStore) listPatterns(ctx context.Context, where string, arg any) ([]models.PatternAggregate, error) {
	args := []any{}
	if arg != nil {
		args = append(args, arg)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.id, p.pattern_type, p.description, p.insights, p.examples
		FROM patterns p `+where), args...)
	if err != nil {
		return nil, s.wrap("list patterns", err)
	}

	type row struct {
		id  int64
		agg models.PatternAggregate
	}
	var found []row
	for rows.Next() {
		var (
			r        row
			pt       string
			examples []byte
		)
		if err := rows.Scan(&r.id, &pt, &r.agg.Description, &r.agg.Insights, &examples); err != nil {
			_ = rows.Close()
			return nil, s.wrap("scan pattern", err)
		}
		r.agg.PatternType = models.PatternType(pt)
		r.agg.Inventions = []string{}
		r.agg.Examples = []models.PatternExample{}
		if err := decodeJSON(examples, &r.agg.Examples); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("pattern %s examples: %w", pt, err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, s.wrap("list patterns", err)
	}
	_ = rows.Close()

	for i := range found {
		members, err := s.memberNames(ctx, found[i].id)
		if err != nil {
			return nil, err
		}
		found[i].agg.Inventions = members
	}

	sort.SliceStable(found, func(i, j int) bool {
		return canonicalIndex(found[i].agg.PatternType) < canonicalIndex(found[j].agg.PatternType)
	})
	out := make([]models.PatternAggregate, len(found))
	for i := range found {
		out[i] = found[i].agg
	}
	return out, nil
}

func (s *SQLStore) memberNames(ctx context.Context, patternID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT i.name FROM invention_patterns ip
		JOIN inventions i ON i.id = ip.invention_id
		WHERE ip.pattern_id = ?
		ORDER BY ip.id`), patternID)
	if err != nil {
		return nil, s.wrap("list pattern members", err)
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, s.wrap("scan pattern member", err)
		}
		out = append(out, name)
	}
	return out, s.wrap("list pattern members", rows.Err())
}

// ensurePattern is a find-or-create on the unique pattern_type.
func (s *SQLStore) ensurePattern(ctx context.Context, q querier, pt models.PatternType) (int64, error) {
	ts := now()
	if _, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO patterns (pattern_type, description, insights, examples, created_at, updated_at)
		VALUES (?, ?, '', '[]', ?, ?)
		ON CONFLICT (pattern_type) DO NOTHING`),
		string(pt), "Pattern: "+string(pt), ts, ts); err != nil {
		return 0, s.wrap("create pattern", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, s.rebind(`SELECT id FROM patterns WHERE pattern_type = ?`), string(pt)).Scan(&id); err != nil {
		return 0, s.wrap("find pattern", err)
	}
	return id, nil
}

// addMember links an invention to a pattern. Missing inventions are skipped.
func (s *SQLStore) addMember(ctx context.Context, q querier, patternID, inventionID int64) error {
	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO invention_patterns (invention_id, pattern_id)
		SELECT id, CAST(? AS BIGINT) FROM inventions WHERE id = ?
		ON CONFLICT (invention_id, pattern_id) DO NOTHING`),
		patternID, inventionID)
	return s.wrap("add pattern member", err)
}

func (s *SQLStore) lockedExamples(ctx context.Context, q querier, patternID int64) ([]models.PatternExample, error) {
	var raw []byte
	if err := q.QueryRowContext(ctx, s.rebind(`SELECT examples FROM patterns WHERE id = ?`+s.forUpdate()), patternID).Scan(&raw); err != nil {
		return nil, s.wrap("read pattern examples", err)
	}
	examples := []models.PatternExample{}
	if err := decodeJSON(raw, &examples); err != nil {
		return nil, fmt.Errorf("pattern %d examples: %w", patternID, err)
	}
	return examples, nil
}

func (s *SQLStore) writeExamples(ctx context.Context, q querier, patternID int64, examples []models.PatternExample) error {
	encoded, err := encodeJSON(examples, "[]")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, s.rebind(`UPDATE patterns SET examples = ?, updated_at = ? WHERE id = ?`),
		encoded, now(), patternID)
	return s.wrap("write pattern examples", err)
}

func canonicalIndex(pt models.PatternType) int {
	for i, v := range models.ValidPatternTypes {
		if v == pt {
			return i
		}
	}
	return len(models.ValidPatternTypes)
}
