// Package store provides a SQLite-backed audit log of compile and search
// cycles.
//
// Each row records one request against a layer: the compiled query and
// post filter, their fingerprint, whether the filter was fully supported,
// the approximated nodes, and the number of hits reported.
//
// Rows are append-only and ordered by seq, a per-database counter assigned
// at insert. Reads order by seq ASC, id ASC COLLATE BINARY and so return
// the same order on every run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
