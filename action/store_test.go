package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/actionblock/types"
)

type testStore interface {
	RecordStore
	Preferences
}

func storesUnderTest(t *testing.T) map[string]testStore {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "records.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	stores := map[string]testStore{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
	if addr := os.Getenv("ACTIONBLOCK_REDIS_ADDR"); addr != "" {
		ns := "actionblock-test-" + time.Now().Format("150405.000000")
		rs, err := DialRedis(context.Background(), addr, "", 0, ns)
		require.NoError(t, err)
		t.Cleanup(func() { _ = rs.Close() })
		stores["redis"] = rs
	}
	return stores
}

func mustRecord(t *testing.T, key types.InstanceKey, blockType types.BlockType, payload any, at time.Time) *types.Record {
	t.Helper()
	rec, err := types.NewRecord(key, blockType, payload, "summary "+string(key))
	require.NoError(t, err)
	rec.CreatedAt = at
	return rec
}

func TestRecordStores_AppendOnly(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			_, ok, err := store.Get(ctx, "m1#0")
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err := store.Put(ctx, mustRecord(t, "m1#0", "rating", map[string]any{"score": 4}, now))
			require.NoError(t, err)
			assert.True(t, stored)

			stored, err = store.Put(ctx, mustRecord(t, "m1#0", "rating", map[string]any{"score": 1}, now))
			require.NoError(t, err)
			assert.False(t, stored, "second write must not overwrite")

			rec, ok, err := store.Get(ctx, "m1#0")
			require.NoError(t, err)
			require.True(t, ok)
			score, _ := rec.FieldString("score")
			assert.Equal(t, "4", score)
			assert.Equal(t, types.BlockType("rating"), rec.BlockType)
			assert.Equal(t, "summary m1#0", rec.Summary)
		})
	}
}

func TestRecordStores_ScanNewestFirst(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Millisecond)
			for i, key := range []types.InstanceKey{"a#0", "b#0", "c#0"} {
				_, err := store.Put(ctx, mustRecord(t, key, "action_menu", map[string]any{"option": string(key)}, base.Add(time.Duration(i)*time.Second)))
				require.NoError(t, err)
			}
			var seen []types.InstanceKey
			require.NoError(t, store.Scan(ctx, func(rec *types.Record) bool {
				seen = append(seen, rec.Key)
				return len(seen) < 2
			}))
			assert.Equal(t, []types.InstanceKey{"c#0", "b#0"}, seen)
		})
	}
}

func TestRecordStores_SameInstantKeepsInsertionOrder(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Now().UTC().Truncate(time.Millisecond)
			for _, key := range []types.InstanceKey{"z#0", "a#0", "m#0"} {
				stored, err := store.Put(ctx, mustRecord(t, key, "rating", map[string]any{"score": 3}, at))
				require.NoError(t, err)
				require.True(t, stored)
			}
			var seen []types.InstanceKey
			require.NoError(t, store.Scan(ctx, func(rec *types.Record) bool {
				seen = append(seen, rec.Key)
				return true
			}))
			assert.Equal(t, []types.InstanceKey{"m#0", "a#0", "z#0"}, seen)
		})
	}
}

func TestPreferences(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := store.GetPreference(ctx, PrefPreferredLanguage)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.SetPreference(ctx, PrefPreferredLanguage, "nl"))
			require.NoError(t, store.SetPreference(ctx, PrefPreferredLanguage, "en"))
			v, ok, err := store.GetPreference(ctx, PrefPreferredLanguage)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "en", v)
		})
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.sqlite")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = s.Put(ctx, mustRecord(t, "m9#2", "time_slot", map[string]any{"delivery_window_id": 42}, time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	rec, ok, err := s.Get(ctx, "m9#2")
	require.NoError(t, err)
	require.True(t, ok)
	id, _ := rec.FieldString("delivery_window_id")
	assert.Equal(t, "42", id)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}
