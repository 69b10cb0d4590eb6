package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Record is the persisted outcome of completing one block instance. It is
// written once under its key and never mutated.
type Record struct {
	Key       InstanceKey     `json:"key"`
	BlockType BlockType       `json:"block_type"`
	Payload   json.RawMessage `json:"payload"`
	Summary   string          `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewRecord(key InstanceKey, blockType BlockType, result any, summary string) (*Record, error) {
	if key == "" {
		return nil, errors.New("record key is empty")
	}
	payload, err := sonic.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal %s result: %w", blockType, err)
	}
	return &Record{
		Key:       key,
		BlockType: blockType,
		Payload:   payload,
		Summary:   summary,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *Record) Decode(v any) error {
	if r == nil || len(r.Payload) == 0 {
		return errors.New("empty record payload")
	}
	return sonic.Unmarshal(r.Payload, v)
}

// Field returns one top-level payload field. Numbers come back as
// json.Number so large identifiers keep their digits.
func (r *Record) Field(name string) (any, bool) {
	if r == nil || len(r.Payload) == 0 {
		return nil, false
	}
	node, err := sonic.Get(r.Payload, name)
	if err != nil || !node.Exists() {
		return nil, false
	}
	v, err := node.InterfaceUseNumber()
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// FieldString renders a payload field so that 42 and "42" compare equal.
func (r *Record) FieldString(name string) (string, bool) {
	v, ok := r.Field(name)
	if !ok {
		return "", false
	}
	return ScalarString(v), true
}

func ScalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
