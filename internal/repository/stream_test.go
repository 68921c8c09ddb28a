package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openReadings(t *testing.T, dir string) *Stream[models.SensorReading, *models.SensorReading] {
	t.Helper()
	s, err := OpenStream[models.SensorReading](dir, PendingReadingsFile, logger.Nop())
	require.NoError(t, err)
	return s
}

func reading(code string, v float64, ts time.Time) models.SensorReading {
	return models.SensorReading{UID: fmt.Sprintf("%s-%v-%d", code, v, ts.UnixNano()), SensorCode: code, Value: v, Timestamp: ts}
}

func TestStream_AppendThenListUnsynced(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		got, err := s.Append(reading("tmp/1", float64(i), now))
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), got.ID)
	}

	unsynced := s.ListUnsynced()
	require.Len(t, unsynced, 5)
	for i, r := range unsynced {
		assert.Equal(t, uint64(i+1), r.ID)
		assert.False(t, r.Synced)
		assert.Equal(t, float64(i), r.Value)
	}
}

func TestStream_AppendRejectsSyncedRecord(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())

	r := reading("tmp/1", 1, time.Now())
	r.Synced = true
	_, err := s.Append(r)
	require.Error(t, err)

	total, _ := s.Stats()
	assert.Zero(t, total)
}

func TestStream_ConcurrentAppendsGetConsecutiveIDs(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())

	const producers, perProducer = 8, 25
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []uint64
	)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				rec, err := s.Append(reading(fmt.Sprintf("dev/%d", p), float64(i), time.Now()))
				if err != nil {
					t.Errorf("append: %v", err)
					return
				}
				mu.Lock()
				ids = append(ids, rec.ID)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	require.Len(t, ids, producers*perProducer)
	for i, id := range ids {
		require.Equal(t, uint64(i+1), id)
	}

	// nothing lost on disk either
	reopened := openReadings(t, filepath.Dir(s.path))
	total, unsynced := reopened.Stats()
	assert.Equal(t, producers*perProducer, total)
	assert.Equal(t, producers*perProducer, unsynced)
}

func TestStream_MarkSyncedIsIdempotent(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())
	for i := 0; i < 3; i++ {
		_, err := s.Append(reading("tmp/1", float64(i), time.Now()))
		require.NoError(t, err)
	}

	n, err := s.MarkSynced([]uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkSynced([]uint64{1, 2, 99})
	require.NoError(t, err)
	assert.Zero(t, n)

	unsynced := s.ListUnsynced()
	require.Len(t, unsynced, 1)
	assert.Equal(t, uint64(3), unsynced[0].ID)
}

func TestStream_MarkSyncedUIDs(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())
	a, err := s.Append(models.SensorReading{UID: "a", SensorCode: "tmp/1", Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = s.Append(models.SensorReading{UID: "b", SensorCode: "tmp/1", Timestamp: time.Now()})
	require.NoError(t, err)

	n, err := s.MarkSyncedUIDs([]string{a.UID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	unsynced := s.ListUnsynced()
	require.Len(t, unsynced, 1)
	assert.Equal(t, "b", unsynced[0].UID)
}

func TestStream_PruneNeverRemovesUnsynced(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())
	old := time.Now().Add(-30 * 24 * time.Hour)
	fresh := time.Now()

	for _, ts := range []time.Time{old, old, fresh, fresh} {
		_, err := s.Append(reading("tmp/1", 1, ts))
		require.NoError(t, err)
	}
	// ids 1 (old) and 3 (fresh) are synced
	_, err := s.MarkSynced([]uint64{1, 3})
	require.NoError(t, err)

	for _, cutoff := range []time.Time{
		time.Now().Add(-7 * 24 * time.Hour),
		time.Now().Add(time.Hour),
		time.Now().Add(365 * 24 * time.Hour),
	} {
		_, err := s.Prune(cutoff)
		require.NoError(t, err)
		_, unsynced := s.Stats()
		assert.Equal(t, 2, unsynced, "cutoff %v", cutoff)
	}

	total, _ := s.Stats()
	assert.Equal(t, 2, total)
}

func TestStream_PruneKeepsRecentSynced(t *testing.T) {
	t.Parallel()
	s := openReadings(t, t.TempDir())
	_, err := s.Append(reading("tmp/1", 1, time.Now().Add(-8*24*time.Hour)))
	require.NoError(t, err)
	_, err = s.Append(reading("tmp/1", 2, time.Now()))
	require.NoError(t, err)
	_, err = s.MarkSynced([]uint64{1, 2})
	require.NoError(t, err)

	removed, err := s.Prune(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	total, _ := s.Stats()
	assert.Equal(t, 1, total)
}

func TestStream_IDsNotReusedAfterPurge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := openReadings(t, dir)
	for i := 0; i < 3; i++ {
		_, err := s.Append(reading("tmp/1", float64(i), time.Now()))
		require.NoError(t, err)
	}
	_, err := s.MarkSynced([]uint64{1, 2, 3})
	require.NoError(t, err)
	removed, err := s.PurgeSynced()
	require.NoError(t, err)
	require.Equal(t, 3, removed)

	rec, err := s.Append(reading("tmp/1", 9, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rec.ID)

	// the high-water mark survives a restart with an empty array
	_, err = s.MarkSynced([]uint64{4})
	require.NoError(t, err)
	_, err = s.PurgeSynced()
	require.NoError(t, err)

	reopened := openReadings(t, dir)
	rec, err = reopened.Append(reading("tmp/1", 10, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.ID)
}

func TestStream_FileIsPlainJSONArray(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := openReadings(t, dir)

	raw, err := os.ReadFile(filepath.Join(dir, PendingReadingsFile+".json"))
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	assert.Empty(t, raw)

	_, err = s.Append(reading("tmp/1", 1, time.Now()))
	require.NoError(t, err)
	_, err = s.MarkSynced([]uint64{1})
	require.NoError(t, err)
	_, err = s.PurgeSynced()
	require.NoError(t, err)

	raw, err = os.ReadFile(filepath.Join(dir, PendingReadingsFile+".json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestStream_CorruptFileIsQuarantined(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, PendingReadingsFile+".json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "sensorCode": "tmp/1"`), 0o644))

	s := openReadings(t, dir)
	total, _ := s.Stats()
	assert.Zero(t, total)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	rec, err := s.Append(reading("tmp/1", 1, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.ID)
}

func TestStream_ReloadKeepsSyncFlags(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := openReadings(t, dir)
	for i := 0; i < 4; i++ {
		_, err := s.Append(reading("phh/1", 7, time.Now()))
		require.NoError(t, err)
	}
	_, err := s.MarkSynced([]uint64{2, 4})
	require.NoError(t, err)

	reopened := openReadings(t, dir)
	unsynced := reopened.ListUnsynced()
	require.Len(t, unsynced, 2)
	assert.Equal(t, []uint64{1, 3}, []uint64{unsynced[0].ID, unsynced[1].ID})
}
