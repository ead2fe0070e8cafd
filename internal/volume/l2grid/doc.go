// Package l2grid owns Layer 2 (Occupancy) of the volume rendering model.
//
// Responsibilities: the spatio-temporal density grid, its packed
// occupancy bitfield, untrained-region marking from camera frusta, the
// periodic EMA refresh driven by a density field, sample-count
// statistics, and snapshot encoding for persistence.
// Key types: Grid, GridConfig, SliceView, CounterLane, Snapshot.
//
// Dependency rule: L2 may depend on L1 and on the field contract, but
// never on L3+. No SQL/database code is allowed in this package.
package l2grid
