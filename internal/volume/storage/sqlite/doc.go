// Package sqlite contains the SQLite repository for occupancy grid
// snapshots.
//
// All database read/write operations for persisted grid state belong
// here rather than in the grid layer (L2), which only sees the
// l2grid.SnapshotStore interface. The schema is versioned with embedded
// golang-migrate migrations.
package sqlite
