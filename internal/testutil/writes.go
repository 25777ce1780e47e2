package testutil

import (
	"sync"

	"github.com/roach88/maat/internal/store"
)

// Writes records the ranking writes a Store performs and injects failures.
// Install it with store.WithObserver(w.Observe).
type Writes struct {
	mu       sync.Mutex
	inserts  []int
	promotes int

	failInsert  int
	insertErr   error
	promoteErr  error
	promoteFail int
}

// Observe implements store.Observer.
func (w *Writes) Observe(op store.Op, rows int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch op {
	case store.OpInsert:
		if w.insertErr != nil && len(w.inserts) == w.failInsert {
			err := w.insertErr
			w.insertErr = nil
			return err
		}
		w.inserts = append(w.inserts, rows)
	case store.OpPromote:
		if w.promoteErr != nil && w.promoteFail > 0 {
			w.promoteFail--
			return w.promoteErr
		}
		w.promotes++
	}
	return nil
}

// FailInsert makes the insert statement with zero-based index n fail once
// with err.
func (w *Writes) FailInsert(n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failInsert = n
	w.insertErr = err
}

// FailPromote makes the next times promotions fail with err.
func (w *Writes) FailPromote(times int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.promoteFail = times
	w.promoteErr = err
}

// Inserts returns the row count of every successful insert statement.
func (w *Writes) Inserts() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int(nil), w.inserts...)
}

// Promotes returns the number of promotions that reached the flip.
func (w *Writes) Promotes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.promotes
}

// Reset forgets recorded writes and pending failures.
func (w *Writes) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inserts = nil
	w.promotes = 0
	w.insertErr = nil
	w.promoteErr = nil
	w.promoteFail = 0
}
