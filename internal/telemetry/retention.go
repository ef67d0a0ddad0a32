package telemetry

import (
	"context"
	"fmt"
	"time"
)

// RetentionPolicy controls how long raw events and each aggregate tier
// survive. Coarser buckets are kept longer than finer ones since they
// cost far less to retain and answer most long-range queries.
type RetentionPolicy struct {
	RawEventRetention time.Duration // telemetry_events and frames
	FineBucketMaxAge  time.Duration // "1m"/"5m" buckets, default 7d
	HourlyBucketMaxAge time.Duration // "1h" buckets, default 30d
	// "1d" buckets follow RawEventRetention; daily rollups are cheap
	// enough to keep as long as the raw window itself.
}

// DefaultRetentionPolicy matches the spec's stated tiers.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RawEventRetention:  30 * 24 * time.Hour,
		FineBucketMaxAge:   7 * 24 * time.Hour,
		HourlyBucketMaxAge: 30 * 24 * time.Hour,
	}
}

// ApplyRetention deletes raw events, thumbnails, and aged-out aggregate
// buckets per tier, then runs an incremental vacuum to reclaim space
// without the long stall of a full VACUUM.
func (s *Store) ApplyRetention(ctx context.Context, policy RetentionPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	rawCutoff := now.Add(-policy.RawEventRetention).UnixMilli()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM telemetry_events WHERE camera_id = ? AND timestamp < ?`, s.cameraID, rawCutoff); err != nil {
		return fmt.Errorf("telemetry: retention events: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM frames WHERE camera_id = ? AND timestamp < ?`, s.cameraID, rawCutoff); err != nil {
		return fmt.Errorf("telemetry: retention frames: %w", err)
	}

	fineCutoff := now.Add(-policy.FineBucketMaxAge).UnixMilli()
	for _, size := range []string{"1m", "5m"} {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM time_series_buckets WHERE camera_id = ? AND bucket_size = ? AND bucket_ts < ?`,
			s.cameraID, size, fineCutoff); err != nil {
			return fmt.Errorf("telemetry: retention %s buckets: %w", size, err)
		}
	}

	hourlyCutoff := now.Add(-policy.HourlyBucketMaxAge).UnixMilli()
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM time_series_buckets WHERE camera_id = ? AND bucket_size = '1h' AND bucket_ts < ?`,
		s.cameraID, hourlyCutoff); err != nil {
		return fmt.Errorf("telemetry: retention hourly buckets: %w", err)
	}

	dailyCutoff := now.Add(-policy.RawEventRetention).UnixMilli()
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM time_series_buckets WHERE camera_id = ? AND bucket_size = '1d' AND bucket_ts < ?`,
		s.cameraID, dailyCutoff); err != nil {
		return fmt.Errorf("telemetry: retention daily buckets: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dwell_times WHERE camera_id = ? AND last_seen < ?`, s.cameraID, rawCutoff); err != nil {
		return fmt.Errorf("telemetry: retention dwell times: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `PRAGMA incremental_vacuum`); err != nil {
		return fmt.Errorf("telemetry: incremental vacuum: %w", err)
	}

	return nil
}
