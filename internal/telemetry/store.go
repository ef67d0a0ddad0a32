// Package telemetry implements the Telemetry Store component (C5): an
// append-only event log plus five real-time aggregate tables, backed by
// an embedded relational engine with WAL, one database file per camera.
// Analytic queries never scan the event log — they read the aggregates.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// SinkFlags mirrors the per-sink enable flags the write path filters
// events by before anything touches the database.
type SinkFlags struct {
	StoreDetectionEvents bool
	StoreTrackingEvents  bool
	StoreCountingEvents  bool
}

func (f SinkFlags) allows(t frame.EventType) bool {
	switch t {
	case frame.EventDetection:
		return f.StoreDetectionEvents
	case frame.EventTracking:
		return f.StoreTrackingEvents
	case frame.EventCrossing:
		return f.StoreCountingEvents
	default:
		return true
	}
}

// Store is a single camera's telemetry database: one writer at a time,
// guarded by an in-process mutex (WAL mode allows concurrent readers
// without it, but the aggregate upsert sequence must be atomic).
type Store struct {
	cameraID string
	path     string
	db       *sql.DB

	mu    sync.Mutex
	flags SinkFlags

	lastSummaryAt time.Time
}

// Open opens (creating if necessary) the database file at path, enables
// WAL, and applies migrations.
func Open(cameraID, path string, flags SinkFlags) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; WAL makes this safe for readers elsewhere

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{cameraID: cameraID, path: path, db: db, flags: flags}, nil
}

// ProcessTelemetry filters events by the sink enable flags, then inside a
// single mutex: optionally records a thumbnail, inserts each surviving
// event into telemetry_events, and fans it out to the aggregate tables.
func (s *Store) ProcessTelemetry(ctx context.Context, raw *frame.Frame, events []frame.Event, thumbnail []byte) error {
	filtered := make([]frame.Event, 0, len(events))
	for _, e := range events {
		if s.flags.allows(e.Type) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 && thumbnail == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("telemetry: begin tx: %w", err)
	}
	defer tx.Rollback()

	var frameID *int64
	if thumbnail != nil && raw != nil {
		id, err := insertThumbnail(ctx, tx, s.cameraID, raw, thumbnail)
		if err != nil {
			return err
		}
		frameID = &id
	}

	for _, e := range filtered {
		if err := s.writeEvent(ctx, tx, e, frameID); err != nil {
			return err
		}
	}

	if time.Since(s.lastSummaryAt) >= 30*time.Second {
		eventTS := time.Now().UnixMilli()
		if n := len(filtered); n > 0 {
			eventTS = filtered[n-1].TimestampMS
		}
		if err := refreshAnalyticsSummary(ctx, tx, s.cameraID, eventTS); err != nil {
			return err
		}
		s.lastSummaryAt = time.Now()
	}

	return tx.Commit()
}

func (s *Store) writeEvent(ctx context.Context, tx *sql.Tx, e frame.Event, frameID *int64) error {
	cameraID := sanitizeUTF8(s.cameraID)
	sourceID := sanitizeUTF8(e.SourceID)

	propsJSON, err := marshalProperties(e.Properties)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO telemetry_events (camera_id, timestamp, event_type, source_id, properties_json, frame_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cameraID, e.TimestampMS, string(e.Type), sourceID, propsJSON, frameID, now,
	)
	if err != nil {
		return fmt.Errorf("telemetry: insert event: %w", err)
	}

	return applyAggregates(ctx, tx, cameraID, e)
}

// marshalProperties serializes the event payload, extracting class_name
// and track_id for convenience, and sanitizes any malformed string
// content before it ever reaches the database.
func marshalProperties(props map[string]any) (string, error) {
	sanitized := make(map[string]any, len(props))
	for k, v := range props {
		if s, ok := v.(string); ok {
			sanitized[k] = sanitizeUTF8(s)
		} else {
			sanitized[k] = v
		}
	}

	b, err := json.Marshal(sanitized)
	if err != nil {
		raw, _ := json.Marshal(map[string]any{"_parse_error": true, "raw_data": sanitizeUTF8(fmt.Sprintf("%v", props))})
		return string(raw), nil
	}
	return string(b), nil
}

func insertThumbnail(ctx context.Context, tx *sql.Tx, cameraID string, raw *frame.Frame, thumbnail []byte) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO frames (camera_id, timestamp, thumbnail_blob, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sanitizeUTF8(cameraID), raw.CapturedAtMS, thumbnail, raw.Width, raw.Height, now,
	)
	if err != nil {
		return 0, fmt.Errorf("telemetry: insert thumbnail: %w", err)
	}
	return res.LastInsertId()
}

// Close releases the database handle. Safe to call on an already-closed
// store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DeleteDataForCamera closes any live handle and removes the database
// file plus its WAL/SHM companions. Idempotent: a missing file is
// success.
func DeleteDataForCamera(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("telemetry: remove %s%s: %w", path, suffix, err)
		}
	}
	return nil
}
