package ranking

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type iterSeq = iter.Seq2[int64, error]

func collectIDs(t *testing.T, seq iterSeq) ([]int64, error) {
	t.Helper()
	var ids []int64
	for id, err := range seq {
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func TestValidateTypology(t *testing.T) {
	et := NewEntityType("blog.article")
	h := testHandler()

	assert.NoError(t, ValidateTypology(et, h, "typology1"))
	assert.NoError(t, ValidateTypology(et, h, "typology2"))

	err := ValidateTypology(et, h, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypologyNotImplemented)
	assert.True(t, IsTypologyError(err))
	assert.Contains(t, err.Error(), "typology=x")
}

func TestResolveAccessor_Default(t *testing.T) {
	objects := AccessorFunc(func(context.Context, []int64) (map[int64]any, error) { return nil, nil })
	et := NewEntityType("blog.article").WithAccessor(DefaultAccessor, objects)

	a, err := ResolveAccessor(et, testHandler())
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestResolveAccessor_Custom(t *testing.T) {
	var called bool
	published := AccessorFunc(func(context.Context, []int64) (map[int64]any, error) {
		called = true
		return nil, nil
	})
	et := NewEntityType("blog.article").
		WithAccessor(DefaultAccessor, AccessorFunc(func(context.Context, []int64) (map[int64]any, error) { return nil, nil })).
		WithAccessor("published", published)

	h := testHandler()
	h.SetAccessor("published")

	a, err := ResolveAccessor(et, h)
	require.NoError(t, err)
	_, _ = a.Fetch(context.Background(), nil)
	assert.True(t, called)
}

func TestResolveAccessor_Missing(t *testing.T) {
	et := NewEntityType("blog.article")
	h := testHandler()
	h.SetAccessor("TestManager")

	_, err := ResolveAccessor(et, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManagerDoesNotExist)
	assert.Contains(t, err.Error(), "TestManager")
}

func TestFuncHandler_TypologiesInDeclarationOrder(t *testing.T) {
	noop := func(context.Context) iterSeq { return Slice() }
	h := NewFuncHandler("").Typology("b", noop).Typology("a", noop).Typology("b", noop)
	assert.Equal(t, []string{"b", "a"}, h.Typologies())
}

func TestFuncHandler_IDs(t *testing.T) {
	ids, err := collectIDs(t, testHandler().IDs(context.Background(), "typology1"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids, err = collectIDs(t, testHandler().IDs(context.Background(), "typology2"))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFuncHandler_UndeclaredTypologyYieldsError(t *testing.T) {
	_, err := collectIDs(t, testHandler().IDs(context.Background(), "nope"))
	assert.ErrorIs(t, err, ErrTypologyNotImplemented)
}

func TestSlice_StopsEarly(t *testing.T) {
	var seen []int64
	for id := range Slice(1, 2, 3, 4) {
		seen = append(seen, id)
		if id == 2 {
			break
		}
	}
	assert.Equal(t, []int64{1, 2}, seen)
}

func TestFail(t *testing.T) {
	boom := errors.New("boom")
	_, err := collectIDs(t, Fail(boom))
	assert.ErrorIs(t, err, boom)
}
