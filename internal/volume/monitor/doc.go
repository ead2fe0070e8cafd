// Package monitor renders offline diagnostics for the occupancy grid:
// PNG plots of occupancy over updates and density cross sections, and an
// HTML dashboard of per-block occupancy.
package monitor
