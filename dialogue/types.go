// Package dialogue produces the assistant turns of a conversation. Replies
// are plain text that may embed block markers.
package dialogue

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
)

var ErrScriptExhausted = errors.New("dialogue script exhausted")

type Request struct {
	// Messages is the transcript so far, oldest first.
	Messages []*schema.Message
	// Language is the customer's preferred language code, if known.
	Language string
}

func (r *Request) lastUser() string {
	if r == nil {
		return ""
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if m := r.Messages[i]; m != nil && m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

type Generator interface {
	GenerateDialogue(ctx context.Context, req *Request) (string, error)
	GenerateDialogueStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error)
}
