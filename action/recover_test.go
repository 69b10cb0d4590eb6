package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrow_TimeSlotTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	_, err := store.Put(ctx, mustRecord(t, "m1#1", "time_slot", map[string]any{
		"delivery_window_id": 42,
		"start_time":         "2025-01-01T08:00",
		"end_time":           "2025-01-01T12:00",
	}, now))
	require.NoError(t, err)
	_, err = store.Put(ctx, mustRecord(t, "m2#0", "rating", map[string]any{"score": 42}, now.Add(time.Second)))
	require.NoError(t, err)

	got, ok, err := Borrow(ctx, store, "delivery_window_id", "42", "start_time", "end_time")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"start_time": "2025-01-01T08:00",
		"end_time":   "2025-01-01T12:00",
	}, got)
}

func TestFindByField_NoMatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Put(ctx, mustRecord(t, "m1#1", "time_slot", map[string]any{"delivery_window_id": 7}, time.Now()))
	require.NoError(t, err)

	_, ok, err := FindByField(ctx, store, "delivery_window_id", 42)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = FindByField(ctx, store, "delivery_window_id", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindByField_PrefersNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	_, _ = store.Put(ctx, mustRecord(t, "old#0", "time_slot", map[string]any{"delivery_window_id": 42, "start_time": "old"}, now))
	_, _ = store.Put(ctx, mustRecord(t, "new#0", "time_slot", map[string]any{"delivery_window_id": 42, "start_time": "new"}, now.Add(time.Minute)))

	rec, ok, err := FindByField(ctx, store, "delivery_window_id", 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new#0", string(rec.Key))
}

func TestBorrow_SkipsNewerRecordWithoutWantedFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	_, _ = store.Put(ctx, mustRecord(t, "m1#1", "time_slot", map[string]any{
		"delivery_window_id": 42,
		"start_time":         "2025-01-01T08:00",
		"end_time":           "2025-01-01T12:00",
	}, now))
	_, _ = store.Put(ctx, mustRecord(t, "m3#0", "booking_edit", map[string]any{
		"booking_id":         "bk-1",
		"delivery_window_id": "42",
	}, now.Add(time.Minute)))

	got, ok, err := Borrow(ctx, store, "delivery_window_id", 42, "start_time", "end_time")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-01-01T08:00", got["start_time"])

	_, ok, err = Borrow(ctx, store, "delivery_window_id", 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBorrow_MatchesIDsBeyondFloatPrecision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Put(ctx, mustRecord(t, "m1#0", "time_slot", map[string]any{
		"delivery_window_id": uint64(9007199254740993),
		"start_time":         "2025-01-01T13:00",
	}, time.Now()))
	require.NoError(t, err)

	got, ok, err := Borrow(ctx, store, "delivery_window_id", "9007199254740993", "start_time")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-01-01T13:00", got["start_time"])

	_, ok, err = Borrow(ctx, store, "delivery_window_id", "9007199254740992", "start_time")
	require.NoError(t, err)
	assert.False(t, ok)
}
