package retrieval

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maat/internal/ranking"
	"github.com/roach88/maat/internal/store"
	"github.com/roach88/maat/internal/testutil"
)

type fixture struct {
	store    *store.Store
	registry *ranking.Registry
	articles *testutil.Articles
	article  *ranking.EntityType
}

// newFixture registers an article type declaring "popular" and "newest" and
// stores ranked as the Active "popular" ranking.
func newFixture(t *testing.T, ranked ...int64) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.OpenStore(t),
		registry: ranking.NewRegistry(),
		articles: testutil.NewArticles(ranked...),
	}
	f.article = ranking.NewEntityType("blog.article").WithAccessor(ranking.DefaultAccessor, f.articles)
	h := ranking.NewFuncHandler("").
		Typology("popular", func(context.Context) iterSeq { return ranking.Slice(ranked...) }).
		Typology("newest", func(context.Context) iterSeq { return ranking.Slice() })
	require.NoError(t, f.registry.Register(f.article, h))

	ctx := context.Background()
	for i := 0; i < len(ranked); i += 500 {
		end := min(i+500, len(ranked))
		require.NoError(t, f.store.InsertStaging(ctx, "blog.article", "popular", int64(i+1), ranked[i:end]))
	}
	_, err := f.store.Promote(ctx, "blog.article", "popular")
	require.NoError(t, err)
	return f
}

type iterSeq = iter.Seq2[int64, error]

func (f *fixture) query(t *testing.T, opts ...Option) *Query {
	t.Helper()
	q, err := For(f.registry, f.store, f.article, opts...)
	require.NoError(t, err)
	return q
}

func collectIDs(t *testing.T, seq Sequence) []int64 {
	t.Helper()
	entities, err := Collect(seq)
	require.NoError(t, err)
	return testutil.ArticleIDs(entities)
}

func TestOrderedBy_BothDirections(t *testing.T) {
	f := newFixture(t, 30, 10, 20)
	q := f.query(t)
	ctx := context.Background()

	asc, err := q.OrderedBy(ctx, "popular", ranking.Ascending)
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 10, 20}, collectIDs(t, asc))

	desc, err := q.OrderedBy(ctx, "popular", ranking.Descending)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 10, 30}, collectIDs(t, desc))
}

func TestOrderedBy_Restartable(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	seq, err := f.query(t).OrderedBy(context.Background(), "popular", ranking.Ascending)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, collectIDs(t, seq))
	assert.Equal(t, []int64{1, 2, 3}, collectIDs(t, seq))
}

func TestOrderedBy_PagesThroughLargeRanking(t *testing.T) {
	ranked := testutil.Reversed(testutil.Sequential(1050))
	f := newFixture(t, ranked...)
	seq, err := f.query(t).OrderedBy(context.Background(), "popular", ranking.Ascending)
	require.NoError(t, err)

	assert.Equal(t, ranked, collectIDs(t, seq))

	fetches := f.articles.Fetches()
	require.Len(t, fetches, 11)
	for _, batch := range fetches[:10] {
		assert.Len(t, batch, DefaultPageSize)
	}
	assert.Len(t, fetches[10], 50)
}

func TestOrderedBy_CustomPageSize(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4, 5)
	seq, err := f.query(t, WithPageSize(2)).OrderedBy(context.Background(), "popular", ranking.Descending)
	require.NoError(t, err)

	assert.Equal(t, []int64{5, 4, 3, 2, 1}, collectIDs(t, seq))
	assert.Equal(t, [][]int64{{5, 4}, {3, 2}, {1}}, f.articles.Fetches())
}

func TestOrderedBy_EarlyBreakStopsScanning(t *testing.T) {
	f := newFixture(t, testutil.Sequential(500)...)
	seq, err := f.query(t).OrderedBy(context.Background(), "popular", ranking.Ascending)
	require.NoError(t, err)

	n := 0
	for _, err := range seq {
		require.NoError(t, err)
		n++
		if n == 5 {
			break
		}
	}
	assert.Len(t, f.articles.Fetches(), 1)
}

func TestOrderedBy_NeverFlushedIsEmpty(t *testing.T) {
	f := newFixture(t, 1, 2)
	seq, err := f.query(t).OrderedBy(context.Background(), "newest", ranking.Ascending)
	require.NoError(t, err)
	assert.Empty(t, collectIDs(t, seq))
	assert.Empty(t, f.articles.Fetches())
}

func TestOrderedBy_SkipsDeletedEntities(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4)
	f.articles.Delete(2, 4)

	seq, err := f.query(t).OrderedBy(context.Background(), "popular", ranking.Ascending)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, collectIDs(t, seq))
}

func TestOrderedBy_IgnoresStagingRows(t *testing.T) {
	f := newFixture(t, 1, 2)
	require.NoError(t, f.store.InsertStaging(context.Background(), "blog.article", "popular", 1, []int64{9, 8, 7}))

	seq, err := f.query(t).OrderedBy(context.Background(), "popular", ranking.Ascending)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, collectIDs(t, seq))
}

func TestOrderedBy_UndeclaredTypology(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.query(t).OrderedBy(context.Background(), "oldest", ranking.Ascending)
	assert.ErrorIs(t, err, ranking.ErrTypologyNotImplemented)
}

func TestOrderedBy_MissingAccessor(t *testing.T) {
	s := testutil.OpenStore(t)
	reg := ranking.NewRegistry()
	et := ranking.NewEntityType("blog.article")
	h := ranking.NewFuncHandler("archive").
		Typology("popular", func(context.Context) iterSeq { return ranking.Slice() })
	require.NoError(t, reg.Register(et, h))

	q, err := For(reg, s, et)
	require.NoError(t, err)
	_, err = q.OrderedBy(context.Background(), "popular", ranking.Ascending)
	assert.ErrorIs(t, err, ranking.ErrManagerDoesNotExist)
	assert.Contains(t, err.Error(), `"archive"`)
}

func TestOrderedBy_AccessorError(t *testing.T) {
	f := newFixture(t, 1, 2)
	boom := errors.New("entity table unavailable")
	f.articles.FailWith(boom)

	seq, err := f.query(t).OrderedBy(context.Background(), "popular", ranking.Ascending)
	require.NoError(t, err)
	_, err = Collect(seq)
	assert.ErrorIs(t, err, boom)
}

func TestOrdered_DescendingShorthand(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	q := f.query(t)

	seq, err := q.Ordered(context.Background(), "-popular")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, collectIDs(t, seq))

	seq, err = q.Ordered(context.Background(), "popular")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, collectIDs(t, seq))
}

func TestIDs(t *testing.T) {
	f := newFixture(t, 4, 5, 6)
	f.articles.Delete(5)

	seq, err := f.query(t).IDs(context.Background(), "popular", ranking.Descending)
	require.NoError(t, err)
	ids, err := CollectIDs(seq)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 5, 4}, ids, "ids are not resolved")
	assert.Empty(t, f.articles.Fetches())
}

func TestPage(t *testing.T) {
	f := newFixture(t, 1, 2, 3, 4, 5)
	q := f.query(t)
	ctx := context.Background()

	page, err := q.Page(ctx, "popular", ranking.Ascending, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, testutil.ArticleIDs(page))

	page, err = q.Page(ctx, "popular", ranking.Descending, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4}, testutil.ArticleIDs(page))

	page, err = q.Page(ctx, "popular", ranking.Ascending, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = q.Page(ctx, "nope", ranking.Ascending, 0, 2)
	assert.ErrorIs(t, err, ranking.ErrTypologyNotImplemented)
}

func TestFor_NotRegistered(t *testing.T) {
	_, err := For(ranking.NewRegistry(), testutil.OpenStore(t), ranking.NewEntityType("x.y"))
	assert.ErrorIs(t, err, ranking.ErrNotRegistered)
}
