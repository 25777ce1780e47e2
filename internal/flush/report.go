package flush

import "time"

// Report describes one flush of one entity type.
type Report struct {
	RunID      string
	EntityType string
	Simulated  bool

	// Typologies holds one entry per typology that completed, in flush order.
	Typologies []TypologyReport
}

// Rows returns the total number of rows written (or counted, when simulated).
func (r Report) Rows() int64 {
	var n int64
	for _, t := range r.Typologies {
		n += t.Rows
	}
	return n
}

// TypologyReport describes the rebuild of one ranking.
type TypologyReport struct {
	Typology string

	// Rows is the length of the new ranking.
	Rows    int64
	Batches int

	// PreviousRows is the length of the Active ranking before the flush.
	PreviousRows int64

	// Retired is the number of Active rows replaced at promotion. Zero when
	// simulated.
	Retired int64

	// Cleared counts leftover Staging rows of an aborted earlier run.
	Cleared int64

	Attempts int
	Duration time.Duration
}
