package store

import (
	"context"
	"fmt"

	"github.com/roach88/maat/internal/querysql"
	"github.com/roach88/maat/internal/ranking"
)

// Promotion reports what Promote changed.
type Promotion struct {
	// Retired is the number of previously active rows deleted.
	Retired int64

	// Promoted is the number of staging rows now active.
	Promoted int64
}

// InsertStaging writes ids into the Staging buffer of (entityType, typology)
// at consecutive positions starting at first, in one statement.
//
// The Active buffer cannot be written through this method; Promote is the
// only way rows become visible to readers.
func (s *Store) InsertStaging(ctx context.Context, entityType, typology string, first int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > s.MaxBatchRows() {
		return fmt.Errorf("insert staging: %d rows exceeds the %d row statement limit", len(ids), s.MaxBatchRows())
	}

	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{entityType, id, typology, int(ranking.Staging), first + int64(i)}
	}

	query, args, err := s.compiler.Compile(querysql.Insert{
		Table:   rankingsTable,
		Columns: rankingColumns,
		Rows:    rows,
	})
	if err != nil {
		return fmt.Errorf("insert staging: %w", err)
	}

	if err := s.observe(OpInsert, len(ids)); err != nil {
		return fmt.Errorf("insert staging: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert staging: %w", err)
	}
	return nil
}

// ClearStaging deletes every Staging row of (entityType, typology), at most
// chunk rows per statement, and returns the number of rows deleted.
//
// Leftover staging rows only exist after an aborted flush.
func (s *Store) ClearStaging(ctx context.Context, entityType, typology string, chunk int) (int64, error) {
	if chunk <= 0 {
		return 0, fmt.Errorf("clear staging: chunk must be positive, got %d", chunk)
	}

	query, args, err := s.compiler.Compile(querysql.Delete{
		From:  rankingsTable,
		Where: groupFilter(entityType, typology, ranking.Staging),
		Limit: chunk,
	})
	if err != nil {
		return 0, fmt.Errorf("clear staging: %w", err)
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("clear staging: %w", err)
		}
		if err := s.observe(OpClear, chunk); err != nil {
			return total, fmt.Errorf("clear staging: %w", err)
		}

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("clear staging: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("clear staging: rows affected: %w", err)
		}
		total += n
		if n < int64(chunk) {
			return total, nil
		}
	}
}

// Promote atomically retires the Active rows of (entityType, typology) and
// makes its Staging rows Active.
//
// The transaction holds only the delete and the flip. A failure at any point
// rolls back, leaving the previous Active rows in place.
func (s *Store) Promote(ctx context.Context, entityType, typology string) (Promotion, error) {
	deleteSQL, deleteArgs, err := s.compiler.Compile(querysql.Delete{
		From:  rankingsTable,
		Where: groupFilter(entityType, typology, ranking.Active),
	})
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: %w", err)
	}
	flipSQL, flipArgs, err := s.compiler.Compile(querysql.Update{
		Table: rankingsTable,
		Set:   []querysql.Assign{{Field: "buffer", Value: int(ranking.Active)}},
		Where: groupFilter(entityType, typology, ranking.Staging),
	})
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var p Promotion

	result, err := tx.ExecContext(ctx, deleteSQL, deleteArgs...)
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: retire active: %w", err)
	}
	if p.Retired, err = result.RowsAffected(); err != nil {
		return Promotion{}, fmt.Errorf("promote: rows affected: %w", err)
	}

	if err := s.observe(OpPromote, 0); err != nil {
		return Promotion{}, fmt.Errorf("promote: %w", err)
	}

	result, err = tx.ExecContext(ctx, flipSQL, flipArgs...)
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: flip staging: %w", err)
	}
	if p.Promoted, err = result.RowsAffected(); err != nil {
		return Promotion{}, fmt.Errorf("promote: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Promotion{}, fmt.Errorf("promote: commit: %w", err)
	}

	return p, nil
}

// DeleteRankings removes every row (both buffers) of entityType, restricted
// to one typology when typology is non-empty. Used to drop rankings of
// typologies a handler no longer declares.
func (s *Store) DeleteRankings(ctx context.Context, entityType, typology string) (int64, error) {
	where := querysql.And{querysql.Eq{Field: "entity_type", Value: entityType}}
	if typology != "" {
		where = append(where, querysql.Eq{Field: "typology", Value: typology})
	}

	query, args, err := s.compiler.Compile(querysql.Delete{From: rankingsTable, Where: where})
	if err != nil {
		return 0, fmt.Errorf("delete rankings: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete rankings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rankings: rows affected: %w", err)
	}
	return n, nil
}

// groupFilter selects one buffer of one ranking. Its column order matches
// the maat_rankings_order index prefix.
func groupFilter(entityType, typology string, buf ranking.Buffer) querysql.And {
	return querysql.And{
		querysql.Eq{Field: "entity_type", Value: entityType},
		querysql.Eq{Field: "typology", Value: typology},
		querysql.Eq{Field: "buffer", Value: int(buf)},
	}
}
