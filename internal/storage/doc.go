// Package storage provides the key-value backends that hold menu render
// metadata and navigation history.
//
// Drivers:
//   - memory:   process-local map
//   - file:     JSON Lines journal compacted into a snapshot
//   - sqlite:   SQLite database file (modernc.org/sqlite)
//   - bolt:     bbolt database file
//   - postgres: PostgreSQL via sqlx, schema managed by golang-migrate
//
// Every backend remembers when a key was last written so old records can be
// pruned.
package storage
