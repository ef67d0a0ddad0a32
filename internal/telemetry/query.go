package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AnalyticsSummary is the response shape for get_analytics.
type AnalyticsSummary struct {
	CameraID        string
	EventTypeCounts map[string]int64
	ClassCounts     map[string]int64 // top 25 by total, descending
	MinTimestampMS  int64
	MaxTimestampMS  int64
	RecentEvents24h int64
	LastComputedAt  int64
}

// GetAnalytics reads the event-type, class-distribution, and
// analytics_summary tables. It never touches telemetry_events.
func (s *Store) GetAnalytics(ctx context.Context) (AnalyticsSummary, error) {
	out := AnalyticsSummary{
		CameraID:        s.cameraID,
		EventTypeCounts: map[string]int64{},
		ClassCounts:     map[string]int64{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, total FROM event_type_counts WHERE camera_id = ?`, s.cameraID)
	if err != nil {
		return out, fmt.Errorf("telemetry: get_analytics event types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return out, err
		}
		out.EventTypeCounts[t] = n
	}

	classRows, err := s.db.QueryContext(ctx, `
		SELECT class_name, SUM(total) AS total FROM class_distribution WHERE camera_id = ?
		GROUP BY class_name ORDER BY total DESC LIMIT 25`, s.cameraID)
	if err != nil {
		return out, fmt.Errorf("telemetry: get_analytics class distribution: %w", err)
	}
	defer classRows.Close()
	for classRows.Next() {
		var c string
		var n int64
		if err := classRows.Scan(&c, &n); err != nil {
			return out, err
		}
		out.ClassCounts[c] = n
	}

	summaryRows, err := s.db.QueryContext(ctx, `
		SELECT summary_key, summary_value, last_updated FROM analytics_summary
		WHERE camera_id = ? AND summary_key IN ('time_range', 'recent_activity')`, s.cameraID)
	if err != nil {
		return out, fmt.Errorf("telemetry: get_analytics summary: %w", err)
	}
	defer summaryRows.Close()
	for summaryRows.Next() {
		var key, value string
		var lastUpdated int64
		if err := summaryRows.Scan(&key, &value, &lastUpdated); err != nil {
			return out, err
		}
		if lastUpdated > out.LastComputedAt {
			out.LastComputedAt = lastUpdated
		}
		switch key {
		case "time_range":
			var tr timeRangeSummary
			if err := json.Unmarshal([]byte(value), &tr); err == nil {
				out.MinTimestampMS = tr.MinTimestampMS
				out.MaxTimestampMS = tr.MaxTimestampMS
			}
		case "recent_activity":
			var ra recentActivitySummary
			if err := json.Unmarshal([]byte(value), &ra); err == nil {
				out.RecentEvents24h = ra.RecentEvents24h
			}
		}
	}

	return out, summaryRows.Err()
}

// TimeSeriesPoint is one bucketed count in a get_time_series response.
type TimeSeriesPoint struct {
	BucketTS  int64
	EventType string
	ClassName string
	Count     int64
}

// pickBucketSize mirrors the spec's bucket-size-by-range-span rule: wide
// ranges fall back to coarser buckets so the result set stays bounded.
func pickBucketSize(span time.Duration) string {
	switch {
	case span <= time.Hour:
		return "1m"
	case span <= 24*time.Hour:
		return "5m"
	case span <= 30*24*time.Hour:
		return "1h"
	default:
		return "1d"
	}
}

// GetTimeSeries returns bucketed counts for [from, to], auto-selecting a
// bucket size proportional to the requested range unless one is forced.
func (s *Store) GetTimeSeries(ctx context.Context, from, to time.Time, eventType, forceBucketSize string) ([]TimeSeriesPoint, error) {
	bucketSize := forceBucketSize
	if bucketSize == "" {
		bucketSize = pickBucketSize(to.Sub(from))
	}
	if _, ok := bucketSizes[bucketSize]; !ok {
		return nil, fmt.Errorf("telemetry: unknown bucket size %q", bucketSize)
	}

	query := `
		SELECT bucket_ts, event_type, class_name, count FROM time_series_buckets
		WHERE camera_id = ? AND bucket_size = ? AND bucket_ts >= ? AND bucket_ts <= ?`
	args := []any{s.cameraID, bucketSize, from.UnixMilli(), to.UnixMilli()}
	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY bucket_ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: get_time_series: %w", err)
	}
	defer rows.Close()

	var out []TimeSeriesPoint
	for rows.Next() {
		var p TimeSeriesPoint
		if err := rows.Scan(&p.BucketTS, &p.EventType, &p.ClassName, &p.Count); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DwellTime is one track's observed presence window.
type DwellTime struct {
	TrackID        uint32
	ClassName      string
	FirstSeen      int64
	LastSeen       int64
	DetectionCount int64
	DurationMS     int64
}

// GetDwellTimes returns per-track presence durations whose window
// overlaps [start, end), sorted by duration (longest dwell first) per
// spec §4.5. A zero start/end leaves that bound open.
func (s *Store) GetDwellTimes(ctx context.Context, start, end time.Time, limit int) ([]DwellTime, error) {
	query := `SELECT track_id, class_name, first_seen, last_seen, detection_count FROM dwell_times WHERE camera_id = ?`
	args := []any{s.cameraID}
	if !start.IsZero() {
		query += " AND last_seen >= ?"
		args = append(args, start.UnixMilli())
	}
	if !end.IsZero() {
		query += " AND first_seen <= ?"
		args = append(args, end.UnixMilli())
	}
	query += " ORDER BY (last_seen - first_seen) DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: get_dwell_times: %w", err)
	}
	defer rows.Close()

	var out []DwellTime
	for rows.Next() {
		var d DwellTime
		if err := rows.Scan(&d.TrackID, &d.ClassName, &d.FirstSeen, &d.LastSeen, &d.DetectionCount); err != nil {
			return nil, err
		}
		d.DurationMS = d.LastSeen - d.FirstSeen
		out = append(out, d)
	}
	return out, rows.Err()
}
