package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// bucketSizes are the rolling windows maintained for every event; a
// single insert fans out into one row per size so get_time_series never
// has to re-bucket raw events at query time.
var bucketSizes = map[string]int64{
	"1m":  60_000,
	"5m":  300_000,
	"1h":  3_600_000,
	"1d":  86_400_000,
}

const window24h = 24 * time.Hour

// applyAggregates updates every real-time aggregate table for a single
// event. Called inside the same transaction as the telemetry_events
// insert so the log and its aggregates never drift apart.
func applyAggregates(ctx context.Context, tx *sql.Tx, cameraID string, e frame.Event) error {
	if err := bumpEventTypeCount(ctx, tx, cameraID, e); err != nil {
		return err
	}

	className, _ := e.Properties["class_name"].(string)
	if className != "" {
		if err := bumpClassDistribution(ctx, tx, cameraID, className, e.Type); err != nil {
			return err
		}
	}

	for size, span := range bucketSizes {
		bucketTS := (e.TimestampMS / span) * span
		if err := bumpTimeSeriesBucket(ctx, tx, cameraID, bucketTS, size, e.Type, className); err != nil {
			return err
		}
	}

	if e.TrackID != nil && className != "" {
		if err := bumpDwellTime(ctx, tx, cameraID, *e.TrackID, className, e.TimestampMS); err != nil {
			return err
		}
	}

	return nil
}

func bumpEventTypeCount(ctx context.Context, tx *sql.Tx, cameraID string, e frame.Event) error {
	now := time.Now().UnixMilli()
	cutoff := now - window24h.Milliseconds()

	var last24hUpdated int64
	row := tx.QueryRowContext(ctx, `
		SELECT last_24h_updated FROM event_type_counts WHERE camera_id = ? AND event_type = ?`,
		cameraID, string(e.Type))
	err := row.Scan(&last24hUpdated)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	resetRecent := last24hUpdated != 0 && last24hUpdated < cutoff

	if err == sql.ErrNoRows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO event_type_counts (camera_id, event_type, total, recent_24h, last_updated, last_24h_updated)
			VALUES (?, ?, 1, 1, ?, ?)`,
			cameraID, string(e.Type), now, now)
		return err
	}

	if resetRecent {
		_, err = tx.ExecContext(ctx, `
			UPDATE event_type_counts SET total = total + 1, recent_24h = 1, last_updated = ?, last_24h_updated = ?
			WHERE camera_id = ? AND event_type = ?`,
			now, now, cameraID, string(e.Type))
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE event_type_counts SET total = total + 1, recent_24h = recent_24h + 1, last_updated = ?
		WHERE camera_id = ? AND event_type = ?`,
		now, cameraID, string(e.Type))
	return err
}

func bumpClassDistribution(ctx context.Context, tx *sql.Tx, cameraID, className string, eventType frame.EventType) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO class_distribution (camera_id, class_name, event_type, total)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (camera_id, class_name, event_type) DO UPDATE SET total = total + 1`,
		cameraID, className, string(eventType))
	return err
}

func bumpTimeSeriesBucket(ctx context.Context, tx *sql.Tx, cameraID string, bucketTS int64, bucketSize string, eventType frame.EventType, className string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO time_series_buckets (camera_id, bucket_ts, bucket_size, event_type, class_name, count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (camera_id, bucket_ts, bucket_size, event_type, class_name) DO UPDATE SET count = count + 1`,
		cameraID, bucketTS, bucketSize, string(eventType), className)
	return err
}

func bumpDwellTime(ctx context.Context, tx *sql.Tx, cameraID string, trackID uint32, className string, ts int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dwell_times (camera_id, track_id, class_name, first_seen, last_seen, detection_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (camera_id, track_id, class_name) DO UPDATE SET
			last_seen = excluded.last_seen,
			detection_count = detection_count + 1`,
		cameraID, trackID, className, ts, ts)
	return err
}

// timeRangeSummary and recentActivitySummary are the two JSON blobs this
// package keeps under analytics_summary's (camera_id, summary_key) rows,
// matching the original sink's "time_range"/"recent_activity" keys.
type timeRangeSummary struct {
	MinTimestampMS int64 `json:"min_timestamp"`
	MaxTimestampMS int64 `json:"max_timestamp"`
}

type recentActivitySummary struct {
	RecentEvents24h int64 `json:"recent_events_24h"`
}

// refreshAnalyticsSummary recomputes the two analytics_summary rows for a
// camera. It is throttled by the caller to at most once per 30s.
func refreshAnalyticsSummary(ctx context.Context, tx *sql.Tx, cameraID string, eventTS int64) error {
	now := time.Now().UnixMilli()

	var existing string
	tr := timeRangeSummary{MinTimestampMS: eventTS, MaxTimestampMS: eventTS}
	err := tx.QueryRowContext(ctx, `
		SELECT summary_value FROM analytics_summary WHERE camera_id = ? AND summary_key = 'time_range'`,
		cameraID).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil {
		var prev timeRangeSummary
		if jsonErr := json.Unmarshal([]byte(existing), &prev); jsonErr == nil {
			if prev.MinTimestampMS != 0 && prev.MinTimestampMS < tr.MinTimestampMS {
				tr.MinTimestampMS = prev.MinTimestampMS
			}
			if prev.MaxTimestampMS > tr.MaxTimestampMS {
				tr.MaxTimestampMS = prev.MaxTimestampMS
			}
		}
	}
	trJSON, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analytics_summary (camera_id, summary_key, summary_value, last_updated)
		VALUES (?, 'time_range', ?, ?)
		ON CONFLICT (camera_id, summary_key) DO UPDATE SET
			summary_value = excluded.summary_value,
			last_updated = excluded.last_updated`,
		cameraID, string(trJSON), now); err != nil {
		return err
	}

	var recentEvents int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(recent_24h), 0) FROM event_type_counts WHERE camera_id = ?`, cameraID,
	).Scan(&recentEvents); err != nil {
		return err
	}
	raJSON, err := json.Marshal(recentActivitySummary{RecentEvents24h: recentEvents})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analytics_summary (camera_id, summary_key, summary_value, last_updated)
		VALUES (?, 'recent_activity', ?, ?)
		ON CONFLICT (camera_id, summary_key) DO UPDATE SET
			summary_value = excluded.summary_value,
			last_updated = excluded.last_updated`,
		cameraID, string(raJSON), now)
	return err
}
