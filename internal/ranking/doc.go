// Package ranking defines the domain types shared by every other maat package.
//
// A ranking is a precomputed, dense position index over the entities of one
// entity type for one named ordering (a typology). Rankings are stored as
// Entry rows and double-buffered: a flush writes the Staging buffer and then
// promotes it to Active in a single transaction, so readers only ever see one
// complete generation.
//
// This package imports nothing internal. It contains:
//   - EntityType, Ref, Accessor: generic entity references and how to resolve them
//   - Buffer, Direction, Entry: the persisted ranking model
//   - Handler, FuncHandler: producers of ordered id sequences
//   - Registry: entity type → handler mapping
//   - Error, FlushError: the error taxonomy
//
// Names (entity type tags and typologies) are NFC-normalized on the way in so
// that byte-wise comparisons in the store are stable.
package ranking
