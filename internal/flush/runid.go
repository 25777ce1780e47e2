package flush

import (
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator produces the id that correlates the log lines, metrics and
// report of one flush run.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so runs sort by
// start time in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run ids, for deterministic tests and
// golden output.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator returns a generator yielding ids in order. Once they are
// exhausted it keeps returning the last one.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.ids) == 0 {
		return ""
	}
	id := g.ids[min(g.idx, len(g.ids)-1)]
	g.idx++
	return id
}
