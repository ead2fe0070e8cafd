package l2grid

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// EncodeSnapshot compresses a snapshot using gob encoding and gzip compression.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(s); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot decompresses and decodes a snapshot from a gob+gzip blob.
func DecodeSnapshot(blob []byte) (*Snapshot, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty grid blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var s Snapshot
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode grid snapshot: %w", err)
	}
	return &s, nil
}

// SnapshotStore persists encoded grid snapshots. Implemented by
// storage/sqlite.GridSnapshotStore.
type SnapshotStore interface {
	InsertGridSnapshot(rec *SnapshotRecord) (string, error)
}

// Snapshot copies the grid state under the read lock.
func (g *Grid) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d := make([]float32, len(g.density))
	copy(d, g.density)
	return &Snapshot{
		TimeSize:    g.cfg.TimeSize,
		Cascades:    g.cascades,
		GridSize:    g.cfg.GridSize,
		Bound:       g.cfg.Bound,
		MeanDensity: g.meanDensity,
		Updates:     g.updates,
		MeanCount:   g.meanCount,
		Density:     d,
	}
}

// Restore replaces the grid state with s and repacks the bitfield. The
// snapshot must have the grid's dimensions.
func (g *Grid) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if s.TimeSize != g.cfg.TimeSize || s.Cascades != g.cascades || s.GridSize != g.cfg.GridSize ||
		s.Bound != g.cfg.Bound || len(s.Density) != len(g.density) {
		return fmt.Errorf("%w: snapshot %dx%dx%d^3 bound %.3f (%d values), grid %dx%dx%d^3 bound %.3f",
			ErrSnapshotMismatch, s.TimeSize, s.Cascades, s.GridSize, s.Bound, len(s.Density),
			g.cfg.TimeSize, g.cascades, g.cfg.GridSize, g.cfg.Bound)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	copy(g.density, s.Density)
	g.meanDensity = s.MeanDensity
	g.updates = s.Updates
	g.meanCount = s.MeanCount
	g.counter.reset()
	return g.pack(context.Background(), float32(g.threshold()))
}

// Persist encodes the grid and writes it via store. It returns the
// stored snapshot ID.
func (g *Grid) Persist(store SnapshotStore, sessionID, reason string) (string, error) {
	if store == nil {
		return "", fmt.Errorf("snapshot store is nil")
	}
	snap := g.Snapshot()
	blob, err := EncodeSnapshot(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode grid snapshot: %w", err)
	}
	rec := &SnapshotRecord{
		SessionID:      sessionID,
		TakenUnixNanos: g.clock.Now().UnixNano(),
		TimeSize:       snap.TimeSize,
		Cascades:       snap.Cascades,
		GridSize:       snap.GridSize,
		Bound:          snap.Bound,
		MeanDensity:    snap.MeanDensity,
		Updates:        snap.Updates,
		MeanCount:      snap.MeanCount,
		Reason:         reason,
		GridBlob:       blob,
	}
	id, err := store.InsertGridSnapshot(rec)
	if err != nil {
		opsf("persist snapshot failed: %v", err)
		return "", fmt.Errorf("failed to insert grid snapshot: %w", err)
	}
	diagf("persisted snapshot %s: updates=%d mean_density=%.4f blob=%d bytes reason=%s",
		id, snap.Updates, snap.MeanDensity, len(blob), reason)
	return id, nil
}

// RestoreRecord decodes rec and restores it into the grid.
func (g *Grid) RestoreRecord(rec *SnapshotRecord) error {
	if rec == nil {
		return fmt.Errorf("snapshot record is nil")
	}
	s, err := DecodeSnapshot(rec.GridBlob)
	if err != nil {
		return err
	}
	return g.Restore(s)
}
