package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type booking struct {
	ID    string `json:"booking_id"`
	Date  string `json:"date,omitempty"`
	Notes string `json:"notes,omitempty"`
}

func TestApplyRFC6902_ReplaceMissingBecomesAdd(t *testing.T) {
	cur := booking{ID: "bk-1"}
	out, err := ApplyRFC6902(cur, ReplaceOps(map[string]string{"date": "2025-01-02", "notes": "ring twice"}))
	require.NoError(t, err)
	assert.Equal(t, booking{ID: "bk-1", Date: "2025-01-02", Notes: "ring twice"}, out)
	assert.Equal(t, "bk-1", cur.ID)
	assert.Empty(t, cur.Date)
}

func TestApplyRFC6902_RemoveMissingIsDropped(t *testing.T) {
	out, err := ApplyRFC6902(booking{ID: "bk-1"}, []Operation{{Op: OperationRemove, Path: "/notes"}})
	require.NoError(t, err)
	assert.Equal(t, "bk-1", out.ID)
}

func TestApplyRFC6902_TypeMismatch(t *testing.T) {
	_, err := ApplyRFC6902(booking{ID: "bk-1"}, []Operation{{Op: OperationReplace, Path: "/booking_id", Value: 12}})
	assert.Error(t, err)
}

func TestValidatePatchOperations(t *testing.T) {
	allowed := AllowedSet([]string{"/date", "/notes"})
	assert.NoError(t, ValidatePatchOperations(ReplaceOps(map[string]string{"date": "x"}), allowed))
	assert.Error(t, ValidatePatchOperations([]Operation{{Op: OperationReplace, Path: "/date/day"}}, allowed))
	assert.Error(t, ValidatePatchOperations(ReplaceOps(map[string]string{"booking_id": "x"}), allowed))
	assert.Error(t, ValidatePatchOperations([]Operation{{Op: "move", Path: "/date"}}, allowed))
	assert.NoError(t, ValidatePatchOperations(ReplaceOps(map[string]string{"anything": "x"}), nil))
}

func TestTopLevelPaths(t *testing.T) {
	assert.Equal(t, []string{"/booking_id", "/date", "/notes"}, TopLevelPaths[booking]())
	assert.Nil(t, TopLevelPaths[string]())
}

func TestReplaceOps_EscapesTokens(t *testing.T) {
	ops := ReplaceOps(map[string]string{"a/b": "1", "c~d": "2"})
	require.Len(t, ops, 2)
	assert.Equal(t, "/a~1b", ops[0].Path)
	assert.Equal(t, "/c~0d", ops[1].Path)
}
