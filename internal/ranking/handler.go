package ranking

import (
	"context"
	"iter"
	"slices"
)

// Handler produces ordered id sequences for one entity type.
//
// IDs returns a lazy, finite sequence in rank order (rank 1 first). The
// returned sequence is single-use; call IDs again for a fresh one. A non-nil
// error yielded by the sequence aborts the flush of that typology.
type Handler interface {
	// Typologies returns the declared typology names in declaration order.
	Typologies() []string

	IDs(ctx context.Context, typology string) iter.Seq2[int64, error]

	// AccessorName names the entity type accessor used to resolve ids.
	// Empty means DefaultAccessor.
	AccessorName() string
}

// Declares reports whether h declares typology.
func Declares(h Handler, typology string) bool {
	return slices.Contains(h.Typologies(), NormalizeName(typology))
}

// ValidateTypology fails with ErrTypologyNotImplemented when h does not
// declare typology.
func ValidateTypology(t *EntityType, h Handler, typology string) error {
	if !Declares(h, typology) {
		return NewTypologyError(t.Tag(), typology)
	}
	return nil
}

// ResolveAccessor returns the accessor h uses on t, failing with
// ErrManagerDoesNotExist when t has no accessor of that name.
func ResolveAccessor(t *EntityType, h Handler) (Accessor, error) {
	name := h.AccessorName()
	if name == "" {
		name = DefaultAccessor
	}
	a, ok := t.Accessor(name)
	if !ok {
		return nil, NewAccessorError(t.Tag(), name)
	}
	return a, nil
}

// SequenceFunc produces the ordered ids of one typology.
type SequenceFunc func(ctx context.Context) iter.Seq2[int64, error]

// FuncHandler is a Handler assembled from one SequenceFunc per typology.
//
//	h := ranking.NewFuncHandler("").
//		Typology("newest", newestIDs).
//		Typology("popular", popularIDs)
type FuncHandler struct {
	accessor string
	names    []string
	funcs    map[string]SequenceFunc
}

// NewFuncHandler returns an empty handler resolving entities through the
// named accessor ("" for DefaultAccessor).
func NewFuncHandler(accessor string) *FuncHandler {
	return &FuncHandler{
		accessor: accessor,
		funcs:    make(map[string]SequenceFunc),
	}
}

// Typology declares name, replacing any earlier function for it.
func (h *FuncHandler) Typology(name string, fn SequenceFunc) *FuncHandler {
	name = NormalizeName(name)
	if _, ok := h.funcs[name]; !ok {
		h.names = append(h.names, name)
	}
	h.funcs[name] = fn
	return h
}

// SetAccessor changes the accessor name.
func (h *FuncHandler) SetAccessor(name string) {
	h.accessor = name
}

func (h *FuncHandler) Typologies() []string {
	return slices.Clone(h.names)
}

func (h *FuncHandler) IDs(ctx context.Context, typology string) iter.Seq2[int64, error] {
	fn, ok := h.funcs[NormalizeName(typology)]
	if !ok {
		return Fail(NewTypologyError("", typology))
	}
	return fn(ctx)
}

func (h *FuncHandler) AccessorName() string {
	return h.accessor
}

// Slice returns a sequence over ids.
func Slice(ids ...int64) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}
}

// Fail returns a sequence that yields err once.
func Fail(err error) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		yield(0, err)
	}
}
