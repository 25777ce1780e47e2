package flush

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/maat/internal/ranking"
	"github.com/roach88/maat/internal/retrieval"
	"github.com/roach88/maat/internal/store"
	"github.com/roach88/maat/internal/testutil"
)

const articleTag = "blog.article"

type fixture struct {
	store    *store.Store
	registry *ranking.Registry
	writes   *testutil.Writes
	articles *testutil.Articles
	article  *ranking.EntityType
	handler  *ranking.FuncHandler
}

// newFixture opens a store with a write recorder and registers an article
// entity type whose typologies are added by the caller through f.handler.
func newFixture(t *testing.T, articles ...int64) *fixture {
	t.Helper()
	writes := &testutil.Writes{}
	f := &fixture{
		store:    testutil.OpenStore(t, store.WithObserver(writes.Observe)),
		registry: ranking.NewRegistry(),
		writes:   writes,
		articles: testutil.NewArticles(articles...),
		handler:  ranking.NewFuncHandler(""),
	}
	f.article = ranking.NewEntityType(articleTag).WithAccessor(ranking.DefaultAccessor, f.articles)
	t.Cleanup(f.registry.Reset)
	return f
}

func (f *fixture) register(t *testing.T) {
	t.Helper()
	require.NoError(t, f.registry.Register(f.article, f.handler))
}

func (f *fixture) reconciler(opts ...ReconcilerOption) *Reconciler {
	opts = append([]ReconcilerOption{
		WithDefaultLogger(quietLogger()),
		WithRunID(NewFixedGenerator("run-1")),
	}, opts...)
	return New(f.store, f.registry, opts...)
}

// ordered reads a ranking back through the retrieval layer as ids.
func (f *fixture) ordered(t *testing.T, typology string, dir ranking.Direction) []int64 {
	t.Helper()
	q, err := retrieval.For(f.registry, f.store, f.article)
	require.NoError(t, err)
	seq, err := q.OrderedBy(context.Background(), typology, dir)
	require.NoError(t, err)
	entities, err := retrieval.Collect(seq)
	require.NoError(t, err)
	return testutil.ArticleIDs(entities)
}

// positions returns the Active positions of a ranking in order.
func (f *fixture) positions(t *testing.T, typology string) []int64 {
	t.Helper()
	entries, err := f.store.ReadEntries(context.Background(), articleTag, typology, ranking.Active)
	require.NoError(t, err)
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Position
	}
	return out
}

func slice(ids ...int64) ranking.SequenceFunc {
	return func(context.Context) iter.Seq2[int64, error] {
		return ranking.Slice(ids...)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
