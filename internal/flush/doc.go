// Package flush rebuilds rankings.
//
// A Reconciler pulls the ordered id sequence of each requested typology from
// the registered handler, writes it into the Staging buffer in bounded
// batches, and promotes Staging to Active in one transaction. Readers never
// observe a partially written ranking: until promotion they keep reading the
// previous Active rows.
//
// Flushes of the same (entity type, typology) pair must be serialized by the
// caller. Different pairs may be flushed concurrently; FlushAll does so with a
// bounded worker pool.
package flush
