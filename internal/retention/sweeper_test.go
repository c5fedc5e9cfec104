package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/storage"
)

type fakeObjectStore struct {
	objects []storage.ObjectInfo
	deleted []string
	failKey string
	listErr error
}

func (f *fakeObjectStore) ListObjectsInfo(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return f.objects, f.listErr
}

func (f *fakeObjectStore) DeleteObject(ctx context.Context, key string) error {
	if key == f.failKey {
		return errors.New("storage unavailable")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func TestSweepDeletesExpiredCaptures(t *testing.T) {
	now := time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeObjectStore{objects: []storage.ObjectInfo{
		{Key: TempPrefix + "p1/time_in_20240501_080000.jpg"}, // 14 days old
		{Key: TempPrefix + "p2/time_in_20240513_080000.jpg"}, // 2 days old
		{Key: TempPrefix + "p3/time_out_20240430_170000.jpg"},
	}}

	sweeper := NewSweeper(store, 7)
	result, err := sweeper.Sweep(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 0, result.Skipped)
	assert.ElementsMatch(t, []string{
		TempPrefix + "p1/time_in_20240501_080000.jpg",
		TempPrefix + "p3/time_out_20240430_170000.jpg",
	}, store.deleted)
}

func TestSweepSkipsUnparsableNames(t *testing.T) {
	now := time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeObjectStore{objects: []storage.ObjectInfo{
		{Key: TempPrefix + "notes.txt"},
		{Key: TempPrefix + "p1/time_in_2024_080000.jpg"}, // malformed date
		{Key: TempPrefix + "p1/time_in_20240501_080000.jpg"},
	}}

	sweeper := NewSweeper(store, 7)
	result, err := sweeper.Sweep(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 2, result.Skipped)
}

func TestSweepScratchFilesUseModTime(t *testing.T) {
	now := time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeObjectStore{objects: []storage.ObjectInfo{
		{Key: TempPrefix + "temp_upload1.jpg", LastModified: now.Add(-10 * 24 * time.Hour)},
		{Key: TempPrefix + "temp_upload2.jpg", LastModified: now.Add(-2 * 24 * time.Hour)},
	}}

	sweeper := NewSweeper(store, 7)
	result, err := sweeper.Sweep(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{TempPrefix + "temp_upload1.jpg"}, store.deleted)
}

func TestSweepContinuesPastDeleteFailures(t *testing.T) {
	now := time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)
	failing := TempPrefix + "p1/time_in_20240501_080000.jpg"
	store := &fakeObjectStore{
		failKey: failing,
		objects: []storage.ObjectInfo{
			{Key: failing},
			{Key: TempPrefix + "p2/time_in_20240502_080000.jpg"},
		},
	}

	sweeper := NewSweeper(store, 7)
	result, err := sweeper.Sweep(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Skipped)
}

func TestSweepListFailureAborts(t *testing.T) {
	store := &fakeObjectStore{listErr: errors.New("connection refused")}
	sweeper := NewSweeper(store, 7)
	_, err := sweeper.Sweep(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestCaptureDate(t *testing.T) {
	mod := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	got, ok := captureDate("time_in_20240515_123045.jpg", mod)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC), got)

	got, ok = captureDate("temp_whatever.jpg", mod)
	require.True(t, ok)
	assert.Equal(t, mod, got)

	_, ok = captureDate("readme.md", mod)
	assert.False(t, ok)

	_, ok = captureDate("time_in_2024051_123045.jpg", mod)
	assert.False(t, ok)
}
