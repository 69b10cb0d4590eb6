package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/actionblock/blocks"
)

func userTurn(text string) *Request {
	return &Request{Messages: []*schema.Message{
		schema.AssistantMessage("How can I help?", nil),
		schema.UserMessage(text),
	}}
}

func TestLocalRecognizer(t *testing.T) {
	r := NewLocalRecognizer(blocks.MustRegistry())
	cases := map[string]string{
		"What car is license plate AB-123-C?":    "identify_car",
		"Can I pick another time slot please?":   "choose_time",
		"I'd like to rate you, five stars!":      "feedback",
		"Which language do you speak?":           "choose_language",
		"hello there":                            NoTag,
		"":                                       NoTag,
		"My postcode is 1234AB, house number 10": "collect_address",
	}
	for text, want := range cases {
		got, err := r.Classify(context.Background(), userTurn(text))
		require.NoError(t, err)
		assert.Equal(t, want, got, text)
	}
}

type tagModel struct {
	tag string
	err error
}

func (m *tagModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{
		ID:       "call-1",
		Function: schema.FunctionCall{Name: classifyToolName, Arguments: `{"tag":"` + m.tag + `"}`},
	}}}, nil
}

func (m *tagModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *tagModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestToolRecognizer(t *testing.T) {
	reg := blocks.MustRegistry()
	m := &tagModel{tag: "choose_time"}
	r, err := NewToolRecognizer(reg, m, WithHistoryLimit(1))
	require.NoError(t, err)

	got, err := r.Classify(context.Background(), userTurn("tomorrow morning works"))
	require.NoError(t, err)
	assert.Equal(t, "choose_time", got)

	m.tag = "none"
	got, err = r.Classify(context.Background(), userTurn("thanks"))
	require.NoError(t, err)
	assert.Equal(t, NoTag, got)

	m.tag = "teleport"
	_, err = r.Classify(context.Background(), userTurn("beam me up"))
	assert.Error(t, err)
}

func TestFailbackRecognizer(t *testing.T) {
	reg := blocks.MustRegistry()
	broken, err := NewToolRecognizer(reg, &tagModel{err: errors.New("offline")})
	require.NoError(t, err)

	r := NewFailbackRecognizer(broken, NewLocalRecognizer(reg))
	got, err := r.Classify(context.Background(), userTurn("please rate"))
	require.NoError(t, err)
	assert.Equal(t, "feedback", got)

	got, err = r.Classify(context.Background(), userTurn("hello"))
	require.NoError(t, err)
	assert.Equal(t, NoTag, got)

	_, err = NewFailbackRecognizer(broken).Classify(context.Background(), userTurn("hello"))
	assert.Error(t, err)
}

func TestPreviews(t *testing.T) {
	reg := blocks.MustRegistry()
	p, err := PreviewTag(reg, "choose_time")
	require.NoError(t, err)
	assert.Equal(t, blocks.TypeTimeSlot, p.BlockType)
	assert.Equal(t, "[TIME_SLOT]addr123::standard[/TIME_SLOT]", p.Example)

	_, err = PreviewTag(reg, "nope")
	assert.Error(t, err)
	assert.Len(t, Previews(reg), len(reg.FlowTags()))
}
