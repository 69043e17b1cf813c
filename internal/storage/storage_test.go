package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/synchro-tracker/internal/angle"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "tracker.db"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// readings returns n readings 1/15 s apart, starting at epoch
func readings(n int) []angle.Reading {
	rs := make([]angle.Reading, n)
	for i := range rs {
		rs[i] = angle.Reading{
			Timestamp: epoch.Add(time.Duration(i) * time.Second / 15),
			Sample:    uint64(400 * (i + 1)),
			Theta:     angle.Radians(float64(i%360) - 180),
		}
	}
	return rs
}

func readAll(t *testing.T, r *SqliteAngleReader) (batches int, all []angle.Reading) {
	t.Helper()

	for r.Next(context.Background()) {
		batches++
		all = append(all, r.Current()...)
	}
	require.NoError(t, r.Error())
	return
}

func TestSqliteStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id1, err := s.CreateSession(ctx, "simulator", "sim0", nil)
	require.NoError(t, err)

	id2, err := s.CreateSession(ctx, "di-2108", "/dev/ttyACM0", map[string]int{"srate": 6000})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	sess, err := s.Session(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "di-2108", sess.DeviceType)
	assert.Equal(t, "/dev/ttyACM0", sess.DeviceID)
	require.NotNil(t, sess.Config)
	assert.JSONEq(t, `{"srate":6000}`, *sess.Config)
	assert.WithinDuration(t, time.Now(), sess.StartTime, time.Minute)

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, id1, sessions[0].ID)
	assert.Nil(t, sessions[0].Config)
	assert.Equal(t, id2, sessions[1].ID)

	_, err = s.Session(ctx, 42)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSqliteStore_StoreAndReadAngles(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateSession(ctx, "simulator", "sim0", "rate: 6000")
	require.NoError(t, err)

	want := readings(25)
	require.NoError(t, s.StoreReadings(ctx, id, want[:10]))
	require.NoError(t, s.StoreReadings(ctx, id, want[10:]))
	require.NoError(t, s.StoreReadings(ctx, id, nil))

	r, err := s.ReadAngles(ctx, id, WithBatchSize(10))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, id, r.Session().ID)

	batches, got := readAll(t, r)
	assert.Equal(t, 3, batches)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "reading %d", i)
		assert.Equal(t, want[i].Sample, got[i].Sample)
		assert.InDelta(t, want[i].Theta, got[i].Theta, 1e-12)
	}

	assert.False(t, r.Next(ctx), "exhausted reader stays exhausted")
	require.NoError(t, r.Close())
}

func TestSqliteStore_ReadAnglesTimeRange(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateSession(ctx, "simulator", "sim0", nil)
	require.NoError(t, err)
	require.NoError(t, s.StoreReadings(ctx, id, readings(30)))

	// 1 s to 1.2 s inclusive covers readings 15, 16, 17 and 18
	from := epoch.Add(time.Second)
	to := epoch.Add(1200 * time.Millisecond)

	r, err := s.ReadAngles(ctx, id, WithTimeRange(from, to))
	require.NoError(t, err)
	_, got := readAll(t, r)
	require.NoError(t, r.Close())

	require.Len(t, got, 4)
	assert.Equal(t, uint64(400*16), got[0].Sample)
	assert.Equal(t, uint64(400*19), got[3].Sample)

	r, err = s.ReadAngles(ctx, id, WithStartTime(epoch.Add(1900*time.Millisecond)))
	require.NoError(t, err)
	_, got = readAll(t, r)
	require.NoError(t, r.Close())
	assert.Len(t, got, 1)

	r, err = s.ReadAngles(ctx, id, WithEndTime(epoch))
	require.NoError(t, err)
	_, got = readAll(t, r)
	require.NoError(t, r.Close())
	assert.Len(t, got, 1)

	_, err = s.ReadAngles(ctx, id, WithTimeRange(to, from))
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = s.ReadAngles(ctx, id+1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSqliteStore_ReadAnglesCancelled(t *testing.T) {
	s := newStore(t)

	id, err := s.CreateSession(context.Background(), "simulator", "sim0", nil)
	require.NoError(t, err)
	require.NoError(t, s.StoreReadings(context.Background(), id, readings(5)))

	r, err := s.ReadAngles(context.Background(), id)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, r.Next(ctx))
	assert.ErrorIs(t, r.Error(), context.Canceled)
}

func TestSqliteStore_Summary(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateSession(ctx, "simulator", "sim0", nil)
	require.NoError(t, err)

	empty, err := s.Summary(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.FirstTime.IsZero())

	rs := readings(16)
	require.NoError(t, s.StoreReadings(ctx, id, rs))

	sum, err := s.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(16), sum.Count)
	assert.True(t, epoch.Equal(sum.FirstTime))
	assert.True(t, rs[15].Timestamp.Equal(sum.LastTime))
	assert.InDelta(t, -180, sum.MinDegrees, 1e-9)
	assert.InDelta(t, -165, sum.MaxDegrees, 1e-9)
}

func TestSqliteStore_StoreLargeBatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateSession(ctx, "simulator", "sim0", nil)
	require.NoError(t, err)

	// more readings than SQLite accepts bound variables for in one statement
	rs := readings(7000)
	require.NoError(t, s.StoreReadings(ctx, id, rs))

	sum, err := s.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), sum.Count)
	assert.True(t, rs[6999].Timestamp.Equal(sum.LastTime))

	r, err := s.ReadAngles(ctx, id)
	require.NoError(t, err)
	defer r.Close()

	_, all := readAll(t, r)
	require.Len(t, all, 7000)
	for i := range all {
		require.Equal(t, rs[i].Sample, all[i].Sample)
	}
}

func TestSqliteStore_Close(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "tracker.db"))

	_, err := s.CreateSession(context.Background(), "simulator", "sim0", nil)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

type fakeStore struct {
	Store

	batches [][]angle.Reading
	err     error
}

func (s *fakeStore) StoreReadings(_ context.Context, _ int64, rs []angle.Reading) error {
	s.batches = append(s.batches, append([]angle.Reading(nil), rs...))
	return s.err
}

func TestRecorder(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 7, WithMaxBatchSize(4))

	for _, r := range readings(10) {
		require.NoError(t, rec.Emit(context.Background(), r))
	}
	require.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 4)
	assert.Equal(t, uint64(8), rec.Stored())

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[2], 2)
	assert.Equal(t, uint64(10), rec.Stored())

	assert.ErrorIs(t, rec.Emit(context.Background(), readings(1)[0]), ErrRecorderClosed)
}

func TestRecorder_StoreError(t *testing.T) {
	boom := errors.New("disk full")
	store := &fakeStore{err: boom}
	rec := NewRecorder(store, 7, WithMaxBatchSize(2))

	rs := readings(3)
	require.NoError(t, rec.Emit(context.Background(), rs[0]))
	assert.ErrorIs(t, rec.Emit(context.Background(), rs[1]), boom)
	assert.Zero(t, rec.Stored())

	store.err = nil
	require.NoError(t, rec.Emit(context.Background(), rs[2]))
	require.NoError(t, rec.Close())
	assert.Equal(t, uint64(1), rec.Stored(), "the failed batch is not retried")
}

func TestRecorder_WithSqlite(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateSession(ctx, "simulator", "sim0", nil)
	require.NoError(t, err)

	rec := NewRecorder(s, id, WithMaxBatchSize(3))
	for _, r := range readings(7) {
		require.NoError(t, rec.Emit(ctx, r))
	}
	require.NoError(t, rec.Close())

	sum, err := s.Summary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sum.Count)
}
