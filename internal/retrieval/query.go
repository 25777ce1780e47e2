// Package retrieval reads computed rankings back as ordered entities.
//
// Reads touch only the Active buffer through an ordered index scan of
// maat_rankings and resolve each page of ids with one accessor call. No
// sorting happens at read time.
package retrieval

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/maat/internal/ranking"
	"github.com/roach88/maat/internal/store"
)

// DefaultPageSize is the number of positions read per index scan and
// resolved per accessor call.
const DefaultPageSize = 100

// Sequence is a lazy, restartable sequence of entities in rank order. Every
// range over it starts a new scan.
type Sequence = iter.Seq2[any, error]

// Query is the ordered-access capability of one registered entity type.
type Query struct {
	store      *store.Store
	entityType *ranking.EntityType
	handler    ranking.Handler
	pageSize   int
}

// Option configures a Query.
type Option func(*Query)

// WithPageSize sets the page size. Values < 1 are ignored.
func WithPageSize(n int) Option {
	return func(q *Query) {
		if n > 0 {
			q.pageSize = n
		}
	}
}

// For returns the Query of t. Fails with ErrNotRegistered when t has no
// handler in reg.
func For(reg *ranking.Registry, st *store.Store, t *ranking.EntityType, opts ...Option) (*Query, error) {
	if t == nil {
		return nil, &ranking.Error{Code: ranking.CodeNotRegistered, Message: "entity type is nil"}
	}
	r, err := reg.Lookup(t.Tag())
	if err != nil {
		return nil, err
	}

	q := &Query{
		store:      st,
		entityType: r.EntityType,
		handler:    r.Handler,
		pageSize:   DefaultPageSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// EntityType returns the entity type the query reads.
func (q *Query) EntityType() *ranking.EntityType {
	return q.entityType
}

// OrderedBy returns the entities of typology in rank order (or its reverse).
//
// Fails with ErrTypologyNotImplemented for an undeclared typology and with
// ErrManagerDoesNotExist when the handler names a missing accessor. A typology
// that was never flushed yields an empty sequence. Ranked ids the accessor no
// longer returns (deleted entities) are skipped.
func (q *Query) OrderedBy(ctx context.Context, typology string, dir ranking.Direction) (Sequence, error) {
	typology = ranking.NormalizeName(typology)
	if err := ranking.ValidateTypology(q.entityType, q.handler, typology); err != nil {
		return nil, err
	}
	accessor, err := ranking.ResolveAccessor(q.entityType, q.handler)
	if err != nil {
		return nil, err
	}

	return func(yield func(any, error) bool) {
		for page, err := range q.pages(ctx, typology, dir) {
			if err != nil {
				yield(nil, err)
				return
			}
			entities, err := q.resolve(ctx, accessor, page)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range entities {
				if !yield(e, nil) {
					return
				}
			}
		}
	}, nil
}

// Ordered is OrderedBy with the "-typology" shorthand for descending order.
func (q *Query) Ordered(ctx context.Context, ordering string) (Sequence, error) {
	typology, dir := ranking.ParseOrdering(ordering)
	return q.OrderedBy(ctx, typology, dir)
}

// IDs returns the ranked entity ids of typology without resolving them.
func (q *Query) IDs(ctx context.Context, typology string, dir ranking.Direction) (iter.Seq2[int64, error], error) {
	typology = ranking.NormalizeName(typology)
	if err := ranking.ValidateTypology(q.entityType, q.handler, typology); err != nil {
		return nil, err
	}

	return func(yield func(int64, error) bool) {
		for page, err := range q.pages(ctx, typology, dir) {
			if err != nil {
				yield(0, err)
				return
			}
			for _, id := range page {
				if !yield(id, nil) {
					return
				}
			}
		}
	}, nil
}

// Page returns up to limit entities starting offset positions into the
// ranking. Intended for one-off listings; sequential reads should use
// OrderedBy.
func (q *Query) Page(ctx context.Context, typology string, dir ranking.Direction, offset, limit int) ([]any, error) {
	typology = ranking.NormalizeName(typology)
	if err := ranking.ValidateTypology(q.entityType, q.handler, typology); err != nil {
		return nil, err
	}
	accessor, err := ranking.ResolveAccessor(q.entityType, q.handler)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []any{}, nil
	}

	slots, err := q.store.Scan(ctx, store.ScanRequest{
		EntityType: q.entityType.Tag(),
		Typology:   typology,
		Direction:  dir,
		Offset:     max(offset, 0),
		Limit:      limit,
	})
	if err != nil {
		return nil, ranking.StorageError("page", err)
	}
	ids := make([]int64, len(slots))
	for i, sl := range slots {
		ids[i] = sl.EntityID
	}
	return q.resolve(ctx, accessor, ids)
}

// pages yields the ranked ids one index scan page at a time. Each page is
// read completely before it is yielded, so no cursor stays open while the
// consumer runs.
func (q *Query) pages(ctx context.Context, typology string, dir ranking.Direction) iter.Seq2[[]int64, error] {
	return func(yield func([]int64, error) bool) {
		req := store.ScanRequest{
			EntityType: q.entityType.Tag(),
			Typology:   typology,
			Direction:  dir,
			Limit:      q.pageSize,
		}
		for {
			slots, err := q.store.Scan(ctx, req)
			if err != nil {
				yield(nil, ranking.StorageError("scan ranking", err))
				return
			}
			if len(slots) == 0 {
				return
			}

			ids := make([]int64, len(slots))
			for i, sl := range slots {
				ids[i] = sl.EntityID
			}
			if !yield(ids, nil) {
				return
			}
			if len(slots) < req.Limit {
				return
			}
			req.After = slots[len(slots)-1].Position
		}
	}
}

// resolve fetches ids through accessor, keeping rank order and dropping ids
// the accessor did not return.
func (q *Query) resolve(ctx context.Context, accessor ranking.Accessor, ids []int64) ([]any, error) {
	if len(ids) == 0 {
		return []any{}, nil
	}
	found, err := accessor.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch %s entities: %w", q.entityType.Tag(), err)
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if e, ok := found[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Collect drains seq into a slice.
func Collect(seq Sequence) ([]any, error) {
	out := []any{}
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CollectIDs drains an id sequence into a slice.
func CollectIDs(seq iter.Seq2[int64, error]) ([]int64, error) {
	out := []int64{}
	for id, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, id)
	}
	return out, nil
}
