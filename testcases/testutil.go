package testcases

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/tbxark/actionblock/action"
	"github.com/tbxark/actionblock/agent"
	"github.com/tbxark/actionblock/blocks"
	"github.com/tbxark/actionblock/config"
	"github.com/tbxark/actionblock/dialogue"
	"github.com/tbxark/actionblock/endpoint"
	"github.com/tbxark/actionblock/types"
)

type flowOptions struct {
	records   action.RecordStore
	history   agent.HistoryReadWriter
	backend   endpoint.Backend
	generator dialogue.Generator
	surface   agent.Surface
}

type FlowOption func(*flowOptions)

func WithRecords(store action.RecordStore) FlowOption {
	return func(o *flowOptions) {
		o.records = store
	}
}

func WithHistory(history agent.HistoryReadWriter) FlowOption {
	return func(o *flowOptions) {
		o.history = history
	}
}

func WithBackend(backend endpoint.Backend) FlowOption {
	return func(o *flowOptions) {
		o.backend = backend
	}
}

func WithGenerator(generator dialogue.Generator) FlowOption {
	return func(o *flowOptions) {
		o.generator = generator
	}
}

func WithSurface(surface agent.Surface) FlowOption {
	return func(o *flowOptions) {
		o.surface = surface
	}
}

// NewTestFlow builds a loaded flow over the block registry. Unset parts
// default to in-memory stores, the fake backend and the local assistant.
func NewTestFlow(t *testing.T, opts ...FlowOption) *agent.Flow {
	t.Helper()
	reg := blocks.MustRegistry()
	o := &flowOptions{surface: agent.SurfaceAIChat}
	for _, opt := range opts {
		opt(o)
	}
	if o.backend == nil {
		o.backend = endpoint.NewFake()
	}
	if o.generator == nil && o.surface == agent.SurfaceAIChat {
		o.generator = dialogue.NewLocalDialogueGenerator(reg, nil)
	}
	flow, err := agent.NewFlow(reg, agent.Config{
		Surface:      o.surface,
		Conversation: t.Name(),
		History:      o.history,
		Records:      o.records,
		Backend:      o.backend,
		Generator:    o.generator,
	})
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	if err := flow.Load(context.Background()); err != nil {
		t.Fatalf("load flow: %v", err)
	}
	t.Cleanup(flow.Close)
	return flow
}

// OpenBlock returns the newest unanswered block of the given type.
func OpenBlock(t *testing.T, flow *agent.Flow, blockType types.BlockType) agent.RenderedBlock {
	t.Helper()
	rendered, err := flow.Render(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for i := len(rendered) - 1; i >= 0; i-- {
		for _, b := range rendered[i].Blocks {
			if b.View != nil && !b.Used && b.Block.Type == blockType {
				return b
			}
		}
	}
	t.Fatalf("no open %s block in transcript", blockType)
	return agent.RenderedBlock{}
}

// Do performs an action and fails the test on error.
func Do(t *testing.T, flow *agent.Flow, key types.InstanceKey, name string, values map[string]string) *agent.ActResult {
	t.Helper()
	res, err := flow.Act(context.Background(), key, types.Action{Name: name, Values: values})
	if err != nil {
		t.Fatalf("%s on %s: %v", name, key, err)
	}
	return res
}

func InitChatModel(t *testing.T) *openai.ChatModel {
	if os.Getenv("ACTIONBLOCK_RUN_LIVE_TESTS") != "1" {
		t.Skip("set ACTIONBLOCK_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}
	conf, err := config.Load(os.Getenv("ACTIONBLOCK_CONFIG"))
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.Model.APIKey == "" {
		t.Skip("model api_key is empty")
		return nil
	}
	cm, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.Model.APIKey,
		BaseURL: conf.Model.BaseURL,
		Model:   conf.Model.Model,
	})
	if err != nil {
		t.Fatalf("failed to create chat model: %v", err)
	}
	return cm
}
