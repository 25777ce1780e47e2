// Package testutil provides fixtures shared by the flush, retrieval, catalog
// and cli tests: temp-dir stores, id sequences, an in-memory entity table and
// a write recorder that can inject storage failures.
package testutil
