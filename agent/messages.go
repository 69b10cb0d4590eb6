package agent

import (
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

const messageIDKey = "message_id"

// NewMessage builds a transcript message with a fresh id. The id anchors the
// instance keys of every block the message contains.
func NewMessage(role schema.RoleType, content string) *schema.Message {
	return &schema.Message{
		Role:    role,
		Content: content,
		Extra:   map[string]any{messageIDKey: uuid.NewString()},
	}
}

func MessageID(msg *schema.Message) string {
	if msg == nil || msg.Extra == nil {
		return ""
	}
	id, _ := msg.Extra[messageIDKey].(string)
	return id
}

// ensureIDs assigns ids to messages that arrived without one and reports
// whether anything changed.
func ensureIDs(history []*schema.Message) bool {
	changed := false
	for _, m := range history {
		if m == nil || MessageID(m) != "" {
			continue
		}
		if m.Extra == nil {
			m.Extra = map[string]any{}
		}
		m.Extra[messageIDKey] = uuid.NewString()
		changed = true
	}
	return changed
}
