package testutil

import (
	"iter"
	"sync/atomic"
)

// Sequential returns ids 1..n in ascending order.
func Sequential(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

// Reversed returns a reversed copy of ids.
func Reversed(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// Range lazily yields ids from..to inclusive without materializing them.
func Range(from, to int64) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		for id := from; id <= to; id++ {
			if !yield(id, nil) {
				return
			}
		}
	}
}

// FailAfter yields the first n ids of ids and then err.
func FailAfter(ids []int64, n int, err error) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		for i, id := range ids {
			if i == n {
				yield(0, err)
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if n >= len(ids) {
			yield(0, err)
		}
	}
}

// Pulls counts the ids consumed from a sequence.
type Pulls struct {
	n atomic.Int64
}

// Wrap returns seq with every yielded id counted.
func (p *Pulls) Wrap(seq iter.Seq2[int64, error]) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		for id, err := range seq {
			if err == nil {
				p.n.Add(1)
			}
			if !yield(id, err) {
				return
			}
		}
	}
}

// Count returns the number of ids pulled so far.
func (p *Pulls) Count() int64 {
	return p.n.Load()
}
