// Package store provides the relational ranking store.
//
// One table, maat_rankings, holds every ranking row:
//
//	(entity_type, entity_id, typology, buffer, position)
//
// # Critical Patterns
//
// Index-only ordered reads
//   - UNIQUE(entity_type, typology, buffer, position)
//   - Reads fix the first three columns and walk position, so neither
//     SQLite nor PostgreSQL ever sorts at query time
//
// Double buffering
//   - Writers can only insert into the Staging buffer (InsertStaging)
//   - Promote is the only path to Active: one transaction deletes the old
//     Active rows and flips Staging to Active
//   - Readers filter on buffer = Active and never observe a half-written
//     generation
//
// Bounded statements
//   - Every multi-row statement is bounded by the dialect's parameter
//     ceiling (see querysql.Dialect.MaxParams)
//
// # Database Configuration (SQLite)
//
//   - WAL mode: readers keep reading while a flush writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - _txlock=immediate: transactions take the write lock up front
//
// PostgreSQL is reached through the pgx database/sql driver.
package store
