package retention

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/storage"
)

// TempPrefix is where capture images live before the sweeper reclaims them.
const TempPrefix = "attendance_tmp/"

// ObjectStore is the slice of object storage the sweeper needs.
type ObjectStore interface {
	ListObjectsInfo(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

// Sweeper purges temporary capture images older than the retention horizon.
// It is bookkeeping: every per-object failure is logged and skipped, one bad
// object never aborts the sweep.
type Sweeper struct {
	store   ObjectStore
	horizon time.Duration
}

func NewSweeper(store ObjectStore, retentionDays int) *Sweeper {
	return &Sweeper{
		store:   store,
		horizon: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Result is the sweep completion signal.
type Result struct {
	Deleted int
	Skipped int
}

// Sweep walks the temporary prefix and deletes objects whose embedded
// capture date — parsed from filenames like time_in_20240515_123045.jpg —
// is older than the horizon. Scratch files (temp_*) fall back to the
// object's last-modified time; anything else unparsable is skipped.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*Result, error) {
	cutoff := now.Add(-s.horizon)

	objects, err := s.store.ListObjectsInfo(ctx, TempPrefix)
	if err != nil {
		return nil, fmt.Errorf("list temporary captures: %w", err)
	}

	result := &Result{}
	for _, obj := range objects {
		captured, ok := captureDate(path.Base(obj.Key), obj.LastModified)
		if !ok {
			result.Skipped++
			continue
		}
		if !captured.Before(cutoff) {
			continue
		}

		if err := s.store.DeleteObject(ctx, obj.Key); err != nil {
			slog.Warn("delete expired capture", "key", obj.Key, "error", err)
			result.Skipped++
			continue
		}
		result.Deleted++
		observability.RetentionDeleted.Inc()
	}

	slog.Info("retention sweep complete", "deleted", result.Deleted, "skipped", result.Skipped)
	return result, nil
}

// captureDate extracts the capture date embedded in a filename of the shape
// <prefix>_<YYYYMMDD>_<HHMMSS>.<ext>. Scratch files named temp_* carry no
// date and use the storage timestamp instead.
func captureDate(name string, lastModified time.Time) (time.Time, bool) {
	if strings.HasPrefix(name, "temp_") {
		return lastModified, true
	}

	base := strings.TrimSuffix(name, path.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return time.Time{}, false
	}

	dateStr := parts[len(parts)-2]
	if len(dateStr) != 8 {
		return time.Time{}, false
	}
	captured, err := time.Parse("20060102", dateStr)
	if err != nil {
		return time.Time{}, false
	}
	return captured, true
}
