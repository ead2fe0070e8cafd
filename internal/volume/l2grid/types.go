package l2grid

// Snapshot is a full copy of the grid state. The bitfield is not stored:
// it is rebuilt from Density on restore.
type Snapshot struct {
	TimeSize    int
	Cascades    int
	GridSize    int
	Bound       float64
	MeanDensity float64
	Updates     int
	MeanCount   int
	Density     []float32
}

// SnapshotRecord is a persisted, encoded snapshot plus metadata.
type SnapshotRecord struct {
	SnapshotID     string
	SessionID      string
	TakenUnixNanos int64
	TimeSize       int
	Cascades       int
	GridSize       int
	Bound          float64
	MeanDensity    float64
	Updates        int
	MeanCount      int
	Reason         string
	GridBlob       []byte // gob+gzip encoded Snapshot
}
