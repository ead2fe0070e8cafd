package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/dnerf.render/internal/volume/l2grid"
)

// GridSnapshotStore persists encoded occupancy grid snapshots.
type GridSnapshotStore struct {
	db *sql.DB
}

// NewGridSnapshotStore creates a new GridSnapshotStore. The schema must
// already be migrated (see Open and Migrate).
func NewGridSnapshotStore(db *sql.DB) *GridSnapshotStore {
	return &GridSnapshotStore{db: db}
}

const snapshotColumns = `snapshot_id, session_id, taken_unix_nanos, time_size, cascades,
		grid_size, bound, mean_density, updates, mean_count, snapshot_reason, grid_blob`

// InsertGridSnapshot stores rec and returns its snapshot ID. If
// SnapshotID is empty, a UUID is generated.
func (s *GridSnapshotStore) InsertGridSnapshot(rec *l2grid.SnapshotRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("snapshot record is nil")
	}
	if len(rec.GridBlob) == 0 {
		return "", fmt.Errorf("snapshot record has no grid blob")
	}
	if rec.SnapshotID == "" {
		rec.SnapshotID = uuid.New().String()
	}
	if rec.TakenUnixNanos == 0 {
		rec.TakenUnixNanos = time.Now().UnixNano()
	}

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO grid_snapshots (`+snapshotColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.SnapshotID, rec.SessionID, rec.TakenUnixNanos, rec.TimeSize, rec.Cascades,
			rec.GridSize, rec.Bound, rec.MeanDensity, rec.Updates, rec.MeanCount,
			nullString(rec.Reason), rec.GridBlob,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert grid snapshot: %w", err)
	}
	return rec.SnapshotID, nil
}

// Latest returns the most recent snapshot of a session, or nil if the
// session has none.
func (s *GridSnapshotStore) Latest(sessionID string) (*l2grid.SnapshotRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+snapshotColumns+`
		FROM grid_snapshots
		WHERE session_id = ?
		ORDER BY taken_unix_nanos DESC
		LIMIT 1`, sessionID)
	rec, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for session %s: %w", sessionID, err)
	}
	return rec, nil
}

// ByID returns one snapshot.
func (s *GridSnapshotStore) ByID(snapshotID string) (*l2grid.SnapshotRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+snapshotColumns+`
		FROM grid_snapshots
		WHERE snapshot_id = ?`, snapshotID)
	rec, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("snapshot %s not found", snapshotID)
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return rec, nil
}

// List returns the metadata of a session's snapshots, newest first. The
// GridBlob field is left empty.
func (s *GridSnapshotStore) List(sessionID string) ([]*l2grid.SnapshotRecord, error) {
	rows, err := s.db.Query(`
		SELECT snapshot_id, session_id, taken_unix_nanos, time_size, cascades,
		       grid_size, bound, mean_density, updates, mean_count, snapshot_reason
		FROM grid_snapshots
		WHERE session_id = ?
		ORDER BY taken_unix_nanos DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*l2grid.SnapshotRecord
	for rows.Next() {
		var rec l2grid.SnapshotRecord
		var reason sql.NullString
		if err := rows.Scan(
			&rec.SnapshotID, &rec.SessionID, &rec.TakenUnixNanos, &rec.TimeSize, &rec.Cascades,
			&rec.GridSize, &rec.Bound, &rec.MeanDensity, &rec.Updates, &rec.MeanCount, &reason,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		rec.Reason = reason.String
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep snapshots of a session and
// returns the number removed.
func (s *GridSnapshotStore) Prune(sessionID string, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must be non-negative, got %d", keep)
	}
	var removed int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`
			DELETE FROM grid_snapshots
			WHERE session_id = ?
			  AND snapshot_id NOT IN (
				SELECT snapshot_id FROM grid_snapshots
				WHERE session_id = ?
				ORDER BY taken_unix_nanos DESC
				LIMIT ?
			  )`, sessionID, sessionID, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return removed, nil
}

func scanSnapshot(row *sql.Row) (*l2grid.SnapshotRecord, error) {
	var rec l2grid.SnapshotRecord
	var reason sql.NullString
	err := row.Scan(
		&rec.SnapshotID, &rec.SessionID, &rec.TakenUnixNanos, &rec.TimeSize, &rec.Cascades,
		&rec.GridSize, &rec.Bound, &rec.MeanDensity, &rec.Updates, &rec.MeanCount,
		&reason, &rec.GridBlob,
	)
	if err != nil {
		return nil, err
	}
	rec.Reason = reason.String
	return &rec, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
