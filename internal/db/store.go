package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ktrzcinx/rtls/internal/rtls"
)

// Run identifies one recording session of a zone.
type Run struct {
	RunID     string    `json:"run_id"`
	ZoneID    int32     `json:"zone_id"`
	StartedAt time.Time `json:"started_at"`
}

// EventKind tags the rows buffered by a Recorder.
type EventKind int

const (
	EventDevice EventKind = iota
	EventMeasurement
	EventPosition
	EventRejection
)

// Event is one zone event waiting to be written.
type Event struct {
	Kind        EventKind
	DeviceID    uint32
	Trace       rtls.Trace
	Sample      rtls.MeasurementSample
	Update      rtls.UpdateKind
	Constraints int
	A, B        uint32
	Reason      string
	At          time.Time
}

// StartRun creates a run row for zoneID and returns it.
func (db *DB) StartRun(zoneID int32, now time.Time) (Run, error) {
	run := Run{RunID: uuid.NewString(), ZoneID: zoneID, StartedAt: now.UTC()}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, zone_id, started_at) VALUES (?, ?, ?)`,
		run.RunID, run.ZoneID, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}

// Runs lists recorded runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, zone_id, started_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.RunID, &r.ZoneID, &started); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertEvents writes a batch of events for runID in one transaction.
func (db *DB) InsertEvents(ctx context.Context, runID string, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		if err := insertEvent(ctx, tx, runID, ev); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, runID string, ev Event) error {
	var err error
	switch ev.Kind {
	case EventDevice:
		c := ev.Trace.Coord
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO devices (run_id, device_id, x, y, z) VALUES (?, ?, ?, ?, ?)`,
			runID, ev.DeviceID, c[0], c[1], c[2])
	case EventMeasurement:
		s := ev.Sample
		_, err = tx.ExecContext(ctx,
			`INSERT INTO measurements (run_id, device_lo, device_hi, distance, ts, kind) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, s.Pair.Lo, s.Pair.Hi, s.Distance, s.Timestamp, ev.Update.String())
	case EventPosition:
		c := ev.Trace.Coord
		_, err = tx.ExecContext(ctx,
			`INSERT INTO positions (run_id, device_id, x, y, z, ts, constraints) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, ev.DeviceID, c[0], c[1], c[2], ev.Trace.Timestamp, ev.Constraints)
	case EventRejection:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rejections (run_id, device_a, device_b, reason, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			runID, ev.A, ev.B, ev.Reason, ev.At.UnixNano())
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to insert event kind %d: %w", ev.Kind, err)
	}
	return nil
}

// Measurements returns up to limit samples of a pair, newest first.
func (db *DB) Measurements(runID string, a, b uint32, limit int) ([]rtls.MeasurementSample, error) {
	p := rtls.CanonicalPair(a, b)
	rows, err := db.Query(
		`SELECT distance, ts FROM measurements
		 WHERE run_id = ? AND device_lo = ? AND device_hi = ?
		 ORDER BY ts DESC, rowid DESC LIMIT ?`,
		runID, p.Lo, p.Hi, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rtls.MeasurementSample
	for rows.Next() {
		s := rtls.MeasurementSample{Pair: p}
		if err := rows.Scan(&s.Distance, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Positions returns up to limit recorded positions of a device, newest
// first.
func (db *DB) Positions(runID string, deviceID uint32, limit int) ([]rtls.Trace, error) {
	rows, err := db.Query(
		`SELECT x, y, z, ts FROM positions
		 WHERE run_id = ? AND device_id = ?
		 ORDER BY ts DESC, rowid DESC LIMIT ?`,
		runID, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rtls.Trace
	for rows.Next() {
		var t rtls.Trace
		if err := rows.Scan(&t.Coord[0], &t.Coord[1], &t.Coord[2], &t.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RejectionCounts returns the number of rejected samples per reason.
func (db *DB) RejectionCounts(runID string) (map[string]int, error) {
	rows, err := db.Query(
		`SELECT reason, COUNT(*) FROM rejections WHERE run_id = ? GROUP BY reason`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}
