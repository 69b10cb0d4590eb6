package testcases

import (
	"context"
	"testing"

	"github.com/tbxark/actionblock/blocks"
	"github.com/tbxark/actionblock/dialogue"
	"github.com/tbxark/actionblock/types"
)

// TestLiveModelReplyParses asks a real chat model for a reply and checks the
// reply renders. Any text is acceptable; parsing must never fail.
func TestLiveModelReplyParses(t *testing.T) {
	cm := InitChatModel(t)
	reg := blocks.MustRegistry()
	gen := dialogue.NewChatModelDialogueGenerator(cm, reg)
	flow := NewTestFlow(t, WithGenerator(gen))

	var partials int
	reply, err := flow.SendCustomer(context.Background(), "Hi, I'd like to book a service for my car AB-123-C.")
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}
	parsed := flow.Parsed(reply)
	if len(parsed.Blocks) == 0 {
		t.Fatalf("reply produced no blocks: %q", reply.Content)
	}
	t.Logf("reply: %s", reply.Content)

	if _, err := flow.SendCustomer(context.Background(), "Thanks, what else do you need?"); err != nil {
		t.Fatalf("second reply failed: %v", err)
	}
	if _, err := flow.StreamReply(context.Background(), func(types.ParsedMessage) { partials++ }); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if partials == 0 {
		t.Error("expected streamed partials")
	}
}
