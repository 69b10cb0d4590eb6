package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/actionblock/action"
)

func TestKeepSystemLastNTrimmer(t *testing.T) {
	history := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("1"),
		schema.AssistantMessage("2", nil),
		schema.UserMessage("3"),
	}
	got := KeepSystemLastNTrimmer{N: 2}.Trim(history)
	require.Len(t, got, 3)
	assert.Equal(t, "sys", got[0].Content)
	assert.Equal(t, "2", got[1].Content)
	assert.Equal(t, "3", got[2].Content)

	only := KeepSystemLastNTrimmer{}.Trim(history)
	require.Len(t, only, 1)
	assert.Equal(t, schema.System, only[0].Role)
}

func TestHistoryStore_AppendSkipsKnownIDs(t *testing.T) {
	ctx := WithStateKey(context.Background(), "c1")
	store := NewMemoryHistoryStore(nil)

	first := NewMessage(schema.User, "yes")
	second := NewMessage(schema.User, "yes")
	hist, err := store.Append(ctx, first, second, first, nil)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	hist, err = store.Append(ctx, second)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	other, err := store.Load(WithStateKey(context.Background(), "c2"))
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.Clear(ctx))
	hist, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestHistoryStore_RequiresConversationKey(t *testing.T) {
	store := NewMemoryHistoryStore(nil)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoStateKey)
	_, err = store.Append(context.Background(), NewMessage(schema.User, "x"))
	assert.ErrorIs(t, err, ErrNoStateKey)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCore[int]()
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", 7))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	require.NoError(t, c.Del(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteHistoryStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := WithStateKey(context.Background(), "conv-sqlite")

	db, err := action.OpenSQLite(path)
	require.NoError(t, err)
	first := NewMessage(schema.User, "hi")
	second := NewMessage(schema.Assistant, "[RATING]How did we do?[/RATING]")
	_, err = NewSQLiteHistoryStore(db, nil).Append(ctx, first, second)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = action.OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	store := NewSQLiteHistoryStore(db, nil)
	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, MessageID(first), MessageID(got[0]))
	assert.Equal(t, MessageID(second), MessageID(got[1]))
	assert.Equal(t, schema.Assistant, got[1].Role)
	assert.Equal(t, second.Content, got[1].Content)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
