package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_FieldStringKeepsLargeNumbers(t *testing.T) {
	rec := &Record{Key: "msg-1#0", BlockType: "time_slot", Payload: []byte(`{"delivery_window_id":9007199254740993,"price":89.5,"id":"0042"}`)}

	got, ok := rec.FieldString("delivery_window_id")
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", got)

	got, ok = rec.FieldString("price")
	require.True(t, ok)
	assert.Equal(t, "89.5", got)

	got, ok = rec.FieldString("id")
	require.True(t, ok)
	assert.Equal(t, "0042", got)

	_, ok = rec.FieldString("missing")
	assert.False(t, ok)
}

func TestNewRecord(t *testing.T) {
	_, err := NewRecord("", "rating", nil, "")
	assert.Error(t, err)

	rec, err := NewRecord("msg-1#0", "rating", map[string]int{"score": 4}, "4 stars")
	require.NoError(t, err)
	var out struct {
		Score int `json:"score"`
	}
	require.NoError(t, rec.Decode(&out))
	assert.Equal(t, 4, out.Score)
}
