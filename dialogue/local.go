package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/actionblock/classify"
	"github.com/tbxark/actionblock/registry"
)

// DefaultSteps is the booking flow the local generator walks through.
var DefaultSteps = []string{
	"identify_car",
	"collect_address",
	"choose_service",
	"choose_time",
	"confirm_booking",
	"feedback",
}

// LocalDialogueGenerator answers without a model. It advances through Steps
// once the customer answered the last step's block, and otherwise asks the
// recognizer which block fits the customer's message.
type LocalDialogueGenerator struct {
	reg        *registry.Registry
	recognizer classify.Recognizer
	Steps      []string
}

func NewLocalDialogueGenerator(reg *registry.Registry, recognizer classify.Recognizer) *LocalDialogueGenerator {
	if recognizer == nil {
		recognizer = classify.NewLocalRecognizer(reg)
	}
	return &LocalDialogueGenerator{reg: reg, recognizer: recognizer, Steps: DefaultSteps}
}

func (g *LocalDialogueGenerator) GenerateDialogue(ctx context.Context, req *Request) (string, error) {
	if step, ok := g.lastStep(req); ok {
		if step+1 >= len(g.Steps) {
			return "Thanks for booking with us. Is there anything else I can help you with?", nil
		}
		return g.ask(g.Steps[step+1])
	}
	tag, err := g.recognizer.Classify(ctx, &classify.Request{Messages: req.Messages})
	if err != nil {
		return "", fmt.Errorf("classify customer turn: %w", err)
	}
	if tag != classify.NoTag {
		return g.ask(tag)
	}
	return "Hi! How can I help you today?\n[ACTION_MENU]\nBook a service\nChange my booking\nSomething else\n[/ACTION_MENU]", nil
}

func (g *LocalDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	message, err := g.GenerateDialogue(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(strings.SplitAfter(message, " ")), nil
}

func (g *LocalDialogueGenerator) ask(tag string) (string, error) {
	def, err := g.reg.ByFlowTag(tag)
	if err != nil {
		return "", err
	}
	example := def.Example
	if example == "" {
		example = def.Open
	}
	return fmt.Sprintf("Next up: %s.\n%s", strings.ToLower(def.Meta.Label), example), nil
}

// lastStep finds the step whose block the assistant emitted last, provided
// the customer has answered since.
func (g *LocalDialogueGenerator) lastStep(req *Request) (int, bool) {
	answered := false
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			answered = true
			continue
		}
		if m.Role != schema.Assistant {
			continue
		}
		if !answered {
			return 0, false
		}
		for step := len(g.Steps) - 1; step >= 0; step-- {
			def, err := g.reg.ByFlowTag(g.Steps[step])
			if err == nil && strings.Contains(m.Content, def.Open) {
				return step, true
			}
		}
		return 0, false
	}
	return 0, false
}

// ScriptedDialogueGenerator replays fixed replies in order. It backs tests
// and recorded demos.
type ScriptedDialogueGenerator struct {
	mu      sync.Mutex
	replies []string
	next    int
	// Requests records every request received.
	Requests []*Request
}

func NewScriptedDialogueGenerator(replies ...string) *ScriptedDialogueGenerator {
	return &ScriptedDialogueGenerator{replies: replies}
}

func (g *ScriptedDialogueGenerator) GenerateDialogue(ctx context.Context, req *Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.next >= len(g.replies) {
		return "", ErrScriptExhausted
	}
	reply := g.replies[g.next]
	g.next++
	return reply, nil
}

func (g *ScriptedDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	message, err := g.GenerateDialogue(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(strings.SplitAfter(message, " ")), nil
}

type FailbackDialogueGenerator struct {
	generators []Generator
}

func NewFailbackDialogueGenerator(generators ...Generator) *FailbackDialogueGenerator {
	return &FailbackDialogueGenerator{generators: generators}
}

func (g *FailbackDialogueGenerator) GenerateDialogue(ctx context.Context, req *Request) (string, error) {
	var lastErr error
	for _, generator := range g.generators {
		reply, err := generator.GenerateDialogue(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("all dialogue generators failed: %w", lastErr)
}

func (g *FailbackDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	var lastErr error
	for _, generator := range g.generators {
		stream, err := generator.GenerateDialogueStream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all dialogue generators failed: %w", lastErr)
}
