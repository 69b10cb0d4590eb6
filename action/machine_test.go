package action

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/actionblock/types"
)

func TestMachine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(NewMemoryStore())
	key := types.InstanceKey("msg-1#1")

	state, rec, err := m.State(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.StateUnanswered, state)
	assert.Nil(t, rec)

	require.NoError(t, m.Begin(ctx, key))
	state, _, _ = m.State(ctx, key)
	assert.Equal(t, types.StateInFlight, state)
	assert.ErrorIs(t, m.Begin(ctx, key), ErrInFlight)

	m.Fail(key, types.Validation("bad input"))
	state, _, _ = m.State(ctx, key)
	assert.Equal(t, types.StateUnanswered, state)
	assert.Error(t, m.LastError(key))

	require.NoError(t, m.Begin(ctx, key))
	out, err := types.NewRecord(key, "rating", map[string]int{"score": 5}, "5 stars")
	require.NoError(t, err)
	require.NoError(t, m.Complete(ctx, out))
	assert.NoError(t, m.LastError(key))

	state, rec, err = m.State(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.StateAnswered, state)
	require.NotNil(t, rec)
	assert.Equal(t, "5 stars", rec.Summary)

	assert.ErrorIs(t, m.Begin(ctx, key), ErrAnswered)
}

func TestMachine_SettleReturnsToUnanswered(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(NewMemoryStore())
	key := types.InstanceKey("msg-1#0")
	require.NoError(t, m.Begin(ctx, key))
	m.Settle(key)
	state, _, err := m.State(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.StateUnanswered, state)
}

func TestMachine_DoubleSubmitWritesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewMachine(store)
	key := types.InstanceKey("msg-2#3")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := m.Begin(ctx, key); err != nil {
				if !errors.Is(err, ErrInFlight) && !errors.Is(err, ErrAnswered) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			rec, err := types.NewRecord(key, "action_menu", map[string]int{"attempt": i}, "chosen")
			if err != nil {
				t.Errorf("NewRecord: %v", err)
				return
			}
			if err := m.Complete(ctx, rec); err == nil {
				mu.Lock()
				completed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, completed)
	count := 0
	require.NoError(t, store.Scan(ctx, func(rec *types.Record) bool {
		count++
		return true
	}))
	assert.Equal(t, 1, count)
}

func TestMachine_CompleteLosesRace(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewMachine(store)
	key := types.InstanceKey("msg-3#0")

	require.NoError(t, m.Begin(ctx, key))
	first, _ := types.NewRecord(key, "rating", map[string]int{"score": 2}, "")
	_, err := store.Put(ctx, first)
	require.NoError(t, err)

	second, _ := types.NewRecord(key, "rating", map[string]int{"score": 5}, "")
	assert.ErrorIs(t, m.Complete(ctx, second), ErrAnswered)

	rec, _, _ := store.Get(ctx, key)
	score, _ := rec.FieldString("score")
	assert.Equal(t, "2", score)
}

type brokenStore struct {
	*MemoryStore
}

func (brokenStore) Put(context.Context, *types.Record) (bool, error) {
	return false, errors.New("write failed")
}

func TestMachine_FailedWriteHoldsInFlight(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(brokenStore{MemoryStore: NewMemoryStore()})
	key := types.InstanceKey("msg-3#0")

	require.NoError(t, m.Begin(ctx, key))
	rec, err := types.NewRecord(key, "booking_summary", map[string]string{"booking_id": "0042"}, "booked")
	require.NoError(t, err)
	require.Error(t, m.Complete(ctx, rec))

	state, _, err := m.State(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, types.StateInFlight, state)
	assert.Error(t, m.LastError(key))
	assert.ErrorIs(t, m.Begin(ctx, key), ErrInFlight)
}

func TestMachine_HoldKeepsInstanceBusy(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(NewMemoryStore())
	key := types.InstanceKey("msg-4#2")

	require.NoError(t, m.Begin(ctx, key))
	m.Hold(key, errors.New("bad result"))
	assert.ErrorIs(t, m.Begin(ctx, key), ErrInFlight)
	assert.EqualError(t, m.LastError(key), "bad result")

	fresh := NewMachine(m.Store())
	require.NoError(t, fresh.Begin(ctx, key))
	assert.NoError(t, fresh.LastError(key))
}
