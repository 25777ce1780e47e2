package store

import (
	"context"
	"fmt"

	"github.com/roach88/maat/internal/querysql"
	"github.com/roach88/maat/internal/ranking"
)

// Slot is one ranked position of the Active buffer.
type Slot struct {
	Position int64
	EntityID int64
}

// ScanRequest selects a window of one Active ranking.
type ScanRequest struct {
	EntityType string
	Typology   string
	Direction  ranking.Direction

	// After continues a previous scan: only positions strictly after it in
	// scan order are returned. Zero starts at the beginning.
	After int64

	// Offset skips rows before returning any. Prefer After for sequential
	// reads; Offset is for one-off pages.
	Offset int

	// Limit bounds the number of slots returned and must be positive.
	Limit int
}

// Scan returns Active slots of one ranking in position order.
//
// The query filters on the full prefix of the maat_rankings_order index and
// orders by its last column, so it compiles to an ordered index range scan.
// Returns an empty slice (not nil) when the ranking has no rows.
func (s *Store) Scan(ctx context.Context, req ScanRequest) ([]Slot, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("scan: limit must be positive, got %d", req.Limit)
	}

	where := groupFilter(req.EntityType, req.Typology, ranking.Active)
	desc := req.Direction == ranking.Descending
	if req.After > 0 {
		op := ">"
		if desc {
			op = "<"
		}
		where = append(where, querysql.Cmp{Field: "position", Op: op, Value: req.After})
	}

	query, args, err := s.compiler.Compile(querysql.Select{
		Columns: []string{"position", "entity_id"},
		From:    rankingsTable,
		Where:   where,
		OrderBy: []querysql.Order{{Field: "position", Desc: desc}},
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	slots := make([]Slot, 0, req.Limit)
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.Position, &sl.EntityID); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}

// CountRows returns the number of rows in one buffer of one ranking.
func (s *Store) CountRows(ctx context.Context, entityType, typology string, buf ranking.Buffer) (int64, error) {
	query, args, err := s.compiler.Compile(querysql.Count{
		From:  rankingsTable,
		Where: groupFilter(entityType, typology, buf),
	})
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// ReadEntries returns every row of one buffer of one ranking, ordered by
// position. Intended for verification and tooling, not the read path.
func (s *Store) ReadEntries(ctx context.Context, entityType, typology string, buf ranking.Buffer) ([]ranking.Entry, error) {
	query, args, err := s.compiler.Compile(querysql.Select{
		Columns: rankingColumns,
		From:    rankingsTable,
		Where:   groupFilter(entityType, typology, buf),
		OrderBy: []querysql.Order{{Field: "position"}},
	})
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	entries := []ranking.Entry{}
	for rows.Next() {
		var e ranking.Entry
		var b int
		if err := rows.Scan(&e.Type, &e.ID, &e.Typology, &b, &e.Position); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Buffer = ranking.Buffer(b)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// GroupStat summarizes one buffer of one ranking.
type GroupStat struct {
	EntityType string
	Typology   string
	Buffer     ranking.Buffer
	Rows       int64
}

// Stats returns row counts for every (entity type, typology, buffer) group,
// ordered by entity type, typology, buffer.
func (s *Store) Stats(ctx context.Context) ([]GroupStat, error) {
	query, args, err := s.compiler.Compile(querysql.Count{
		From:    rankingsTable,
		GroupBy: []string{"entity_type", "typology", "buffer"},
	})
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := []GroupStat{}
	for rows.Next() {
		var st GroupStat
		var b int
		if err := rows.Scan(&st.EntityType, &st.Typology, &b, &st.Rows); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		st.Buffer = ranking.Buffer(b)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	return stats, nil
}
