package action

import (
	"context"
	"strings"

	"github.com/tbxark/actionblock/types"
)

// FindByField scans the stored records, newest first, for one whose payload
// field equals value. Numbers and their string form compare equal.
func FindByField(ctx context.Context, store RecordStore, field string, value any) (*types.Record, bool, error) {
	want := strings.TrimSpace(types.ScalarString(value))
	if want == "" {
		return nil, false, nil
	}
	var found *types.Record
	err := store.Scan(ctx, func(rec *types.Record) bool {
		got, ok := rec.FieldString(field)
		if ok && strings.TrimSpace(got) == want {
			found = rec
			return false
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// Borrow recovers fields captured by an earlier, unrelated block instance:
// it finds the newest record whose natural key field matches value and that
// carries at least one of the wanted fields, and returns those it carries.
func Borrow(ctx context.Context, store RecordStore, field string, value any, wanted ...string) (map[string]string, bool, error) {
	want := strings.TrimSpace(types.ScalarString(value))
	if want == "" || len(wanted) == 0 {
		return nil, false, nil
	}
	var out map[string]string
	err := store.Scan(ctx, func(rec *types.Record) bool {
		got, ok := rec.FieldString(field)
		if !ok || strings.TrimSpace(got) != want {
			return true
		}
		found := make(map[string]string, len(wanted))
		for _, name := range wanted {
			if v, ok := rec.FieldString(name); ok && v != "" {
				found[name] = v
			}
		}
		if len(found) == 0 {
			return true
		}
		out = found
		return false
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}
