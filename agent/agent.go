package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

var _ adk.Agent = (*Agent)(nil)

// Agent exposes an AI chat Flow as an adk.Agent. Each run sends the last
// input message as a customer turn and emits the assistant reply.
type Agent struct {
	name        string
	description string
	flow        *Flow
}

func NewAgent(name, description string, flow *Flow) (*Agent, error) {
	if flow == nil {
		return nil, fmt.Errorf("flow is required")
	}
	if flow.Surface() != SurfaceAIChat {
		return nil, ErrWrongSurface
	}
	return &Agent{
		name:        name,
		description: description,
		flow:        flow,
	}, nil
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		reply, err := a.flow.SendCustomer(ctx, input.Messages[len(input.Messages)-1].Content)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("send customer turn: %w", err),
			})
			return
		}
		gen.Send(&adk.AgentEvent{
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message: &schema.Message{
						Role:    schema.Assistant,
						Content: reply.Content,
						Extra:   reply.Extra,
					},
					Role: schema.Assistant,
				},
			},
		})
	}()
	return iter
}
