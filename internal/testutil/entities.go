package testutil

import (
	"context"
	"fmt"
	"sync"
)

// Article is the fixture entity.
type Article struct {
	ID    int64
	Title string
}

// Articles is an in-memory entity table implementing ranking.Accessor.
type Articles struct {
	mu      sync.Mutex
	rows    map[int64]Article
	fetches [][]int64
	err     error
}

// NewArticles returns a table holding one article per id.
func NewArticles(ids ...int64) *Articles {
	a := &Articles{rows: make(map[int64]Article, len(ids))}
	for _, id := range ids {
		a.rows[id] = Article{ID: id, Title: fmt.Sprintf("article %d", id)}
	}
	return a
}

// Fetch returns the stored articles among ids.
func (a *Articles) Fetch(_ context.Context, ids []int64) (map[int64]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.fetches = append(a.fetches, append([]int64(nil), ids...))
	if a.err != nil {
		return nil, a.err
	}
	out := make(map[int64]any, len(ids))
	for _, id := range ids {
		if row, ok := a.rows[id]; ok {
			out[id] = row
		}
	}
	return out, nil
}

// Delete removes articles from the table.
func (a *Articles) Delete(ids ...int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		delete(a.rows, id)
	}
}

// FailWith makes every later Fetch fail with err (nil restores).
func (a *Articles) FailWith(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
}

// Fetches returns the id batches passed to Fetch so far.
func (a *Articles) Fetches() [][]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]int64(nil), a.fetches...)
}

// ArticleIDs extracts the ids of a slice of fetched articles.
func ArticleIDs(entities []any) []int64 {
	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.(Article).ID)
	}
	return ids
}
