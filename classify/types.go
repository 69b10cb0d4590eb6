// Package classify maps a conversation turn or an authored flow step to the
// flow tag of the block that should handle it.
package classify

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// NoTag is returned when no block fits the input.
const NoTag = ""

type Request struct {
	// Messages is the recent conversation; the last message is classified.
	Messages []*schema.Message
}

func (r *Request) lastContent() string {
	if r == nil || len(r.Messages) == 0 || r.Messages[len(r.Messages)-1] == nil {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

type Recognizer interface {
	Classify(ctx context.Context, req *Request) (string, error)
}
