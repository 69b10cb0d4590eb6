package structured

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingRequest struct {
	LicensePlate string `json:"license_plate" jsonschema:"description=License plate mentioned by the customer"`
	Postcode     string `json:"postcode" jsonschema:"description=Postcode mentioned by the customer"`
}

func buildPrompt(_ context.Context, text string) ([]*schema.Message, error) {
	return []*schema.Message{
		schema.SystemMessage("Extract the booking details and call extract_booking."),
		schema.UserMessage(text),
	}, nil
}

type fakeModel struct {
	reply  *schema.Message
	chunks []*schema.Message
	err    error
}

func (m *fakeModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return m.reply, m.err
}

func (m *fakeModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if m.err != nil {
		return nil, m.err
	}
	return schema.StreamReaderFromArray(m.chunks), nil
}

func (m *fakeModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func toolCall(name, args string) schema.ToolCall {
	idx := 0
	return schema.ToolCall{Index: &idx, ID: "call-1", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func TestChain_Invoke(t *testing.T) {
	m := &fakeModel{reply: &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{toolCall("extract_booking", `{"license_plate":"AB-123-C","postcode":"1234AB"}`)},
	}}
	chain, err := NewChain[string, bookingRequest](m, buildPrompt, "extract_booking", "Extract booking details")
	require.NoError(t, err)
	assert.Equal(t, "extract_booking", chain.GetToolInfo().Name)

	out, err := chain.Invoke(context.Background(), "my car AB-123-C, postcode 1234AB")
	require.NoError(t, err)
	assert.Equal(t, bookingRequest{LicensePlate: "AB-123-C", Postcode: "1234AB"}, *out)
}

func TestChain_InvokeWithoutToolCall(t *testing.T) {
	m := &fakeModel{reply: schema.AssistantMessage("I cannot help", nil)}
	chain, err := NewChain[string, bookingRequest](m, buildPrompt, "extract_booking", "Extract booking details")
	require.NoError(t, err)

	_, err = chain.Invoke(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoToolCall)

	m.reply = nil
	m.err = errors.New("boom")
	_, err = chain.Invoke(context.Background(), "hi")
	assert.ErrorContains(t, err, "boom")
}

func TestChain_StreamJoinsFragments(t *testing.T) {
	first := toolCall("extract_booking", `{"license_plate":`)
	idx := 0
	m := &fakeModel{chunks: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{first}},
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{Index: &idx, Function: schema.FunctionCall{Arguments: `"AB-123-C"}`}}}},
	}}
	chain, err := NewChain[string, bookingRequest](m, buildPrompt, "extract_booking", "Extract booking details")
	require.NoError(t, err)

	out, err := chain.Stream(context.Background(), "AB-123-C")
	require.NoError(t, err)
	assert.Equal(t, "AB-123-C", out.LicensePlate)
}

func TestNewChain_NilModel(t *testing.T) {
	_, err := NewChain[string, bookingRequest](nil, buildPrompt, "extract_booking", "")
	assert.Error(t, err)
}

func TestChain_InvokeLive(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}
	modelName := os.Getenv("OPENAI_MODEL")
	if modelName == "" {
		modelName = "gpt-4o"
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	ctx := context.Background()
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   modelName,
		BaseURL: baseURL,
	})
	require.NoError(t, err)

	chain, err := NewChain[string, bookingRequest](chatModel, buildPrompt, "extract_booking", "Extract booking details")
	require.NoError(t, err)
	out, err := chain.Invoke(ctx, "Hi, my car is AB-123-C and I live at 1234AB.")
	require.NoError(t, err)
	t.Logf("extracted: %+v", out)
	assert.NotEmpty(t, out.LicensePlate)
}
