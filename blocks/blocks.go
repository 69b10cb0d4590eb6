// Package blocks holds the interactive block modules and the fixed order in
// which they are registered.
package blocks

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/types"
)

// Definitions returns every block module in registration order. Earlier
// entries win marker ties during parsing.
func Definitions() []registry.Definition {
	return []registry.Definition{
		phoneVerifyDefinition(),
		plateLookupDefinition(),
		addressLookupDefinition(),
		serviceSelectDefinition(),
		timeSlotDefinition(),
		bookingSummaryDefinition(),
		bookingEditDefinition(),
		bookingEditConfirmDefinition(),
		actionMenuDefinition(),
		ratingDefinition(),
		languageSelectDefinition(),
	}
}

// NewRegistry registers every block module. A marker collision is a startup
// error.
func NewRegistry() (*registry.Registry, error) {
	reg := registry.New()
	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("register %s: %w", def.Type, err)
		}
	}
	return reg, nil
}

func MustRegistry() *registry.Registry {
	reg, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return reg
}

func openView(req *registry.RenderRequest, t types.BlockType, title string) *types.View {
	return &types.View{Key: req.Key, BlockType: t, State: types.StateUnanswered, Title: title}
}

func answeredView(req *registry.RenderRequest, t types.BlockType, title string, fields ...types.Field) *types.View {
	v := &types.View{Key: req.Key, BlockType: t, State: types.StateAnswered, Title: title}
	v.Body = types.FormatFields(fields)
	if v.Body == "" && req.Record != nil {
		v.Body = req.Record.Summary
	}
	return v
}

func button(action, label string) types.Control {
	return types.Control{Name: action, Kind: types.ControlButton, Label: label, Action: action}
}

func input(name, label, action, value string) types.Control {
	return types.Control{Name: name, Kind: types.ControlInput, Label: label, Action: action, Value: value}
}

// splitInline splits an inline body on sep into exactly n trimmed parts.
// Missing parts are empty and extra separators stay in the last part.
func splitInline(inner, sep string, n int) []string {
	parts := strings.SplitN(inner, sep, n)
	out := make([]string, n)
	for i := range out {
		if i < len(parts) {
			out[i] = strings.TrimSpace(parts[i])
		}
	}
	return out
}

// decodeJSONBody decodes a JSON body into v. It reports false instead of
// failing so that callers can fall back to showing the raw text.
func decodeJSONBody(inner string, v any) bool {
	inner = strings.TrimSpace(inner)
	if inner == "" || !sonic.ValidString(inner) {
		return false
	}
	return sonic.UnmarshalString(inner, v) == nil
}

// draftJSON stores an intermediate listing in a draft map.
func draftJSON(key string, v any) (map[string]string, error) {
	s, err := sonic.MarshalString(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s draft: %w", key, err)
	}
	return map[string]string{key: s}, nil
}

func fromDraft(draft map[string]string, key string, v any) bool {
	raw, ok := draft[key]
	if !ok || raw == "" {
		return false
	}
	return sonic.UnmarshalString(raw, v) == nil
}

func decodeRecord[T any](rec *types.Record) (T, bool) {
	var out T
	if rec == nil {
		return out, false
	}
	if err := rec.Decode(&out); err != nil {
		return out, false
	}
	return out, true
}

func unknownAction(t types.BlockType, act types.Action) error {
	return types.Validation("Unsupported action %q for %s.", act.Name, t)
}
