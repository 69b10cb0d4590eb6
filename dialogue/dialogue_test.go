package dialogue

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/actionblock/blocks"
)

func readAll(t *testing.T, sr *schema.StreamReader[string]) string {
	t.Helper()
	defer sr.Close()
	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String()
		}
		require.NoError(t, err)
		sb.WriteString(chunk)
	}
}

func TestLocalDialogueGenerator_Greeting(t *testing.T) {
	g := NewLocalDialogueGenerator(blocks.MustRegistry(), nil)
	reply, err := g.GenerateDialogue(context.Background(), &Request{Messages: []*schema.Message{schema.UserMessage("hello")}})
	require.NoError(t, err)
	assert.Contains(t, reply, "[ACTION_MENU]")
}

func TestLocalDialogueGenerator_Classifies(t *testing.T) {
	g := NewLocalDialogueGenerator(blocks.MustRegistry(), nil)
	reply, err := g.GenerateDialogue(context.Background(), &Request{Messages: []*schema.Message{
		schema.UserMessage("I need another time slot"),
	}})
	require.NoError(t, err)
	assert.Contains(t, reply, "[TIME_SLOT]")
}

func TestLocalDialogueGenerator_AdvancesSteps(t *testing.T) {
	g := NewLocalDialogueGenerator(blocks.MustRegistry(), nil)
	req := &Request{Messages: []*schema.Message{
		schema.AssistantMessage("Next up: license plate.\n[PLATE_LOOKUP]AB-123-C[/PLATE_LOOKUP]", nil),
		schema.UserMessage("My car is a Volkswagen Golf (2019) with license plate AB-123-C."),
	}}
	reply, err := g.GenerateDialogue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Next up: address.\n[ADDRESS_LOOKUP]1234AB|10[/ADDRESS_LOOKUP]", reply)

	req.Messages = append(req.Messages,
		schema.AssistantMessage("How was it? [RATING]", nil),
		schema.UserMessage("I rate this 5 out of 5."),
	)
	reply, err = g.GenerateDialogue(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "Thanks for booking"))

	sr, err := g.GenerateDialogueStream(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, reply, readAll(t, sr))
}

func TestScriptedDialogueGenerator(t *testing.T) {
	g := NewScriptedDialogueGenerator("one", "two three")
	reply, err := g.GenerateDialogue(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "one", reply)

	sr, err := g.GenerateDialogueStream(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "two three", readAll(t, sr))

	_, err = g.GenerateDialogue(context.Background(), &Request{})
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Len(t, g.Requests, 3)
}

func TestFailbackDialogueGenerator(t *testing.T) {
	g := NewFailbackDialogueGenerator(NewScriptedDialogueGenerator(), NewScriptedDialogueGenerator("fallback"))
	reply, err := g.GenerateDialogue(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", reply)

	_, err = g.GenerateDialogueStream(context.Background(), &Request{})
	assert.ErrorIs(t, err, ErrScriptExhausted)
}

type echoModel struct {
	seen []*schema.Message
}

func (m *echoModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = in
	return schema.AssistantMessage("Sure. [RATING]", nil), nil
}

func (m *echoModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.seen = in
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage("Sure. ", nil),
		schema.AssistantMessage("[RATING]", nil),
	}), nil
}

func TestChatModelDialogueGenerator(t *testing.T) {
	m := &echoModel{}
	g := NewChatModelDialogueGenerator(m, blocks.MustRegistry())
	req := &Request{
		Language: "nl",
		Messages: []*schema.Message{
			schema.SystemMessage("stale"),
			schema.UserMessage("hi"),
		},
	}
	reply, err := g.GenerateDialogue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Sure. [RATING]", reply)

	require.Len(t, m.seen, 2)
	assert.Equal(t, schema.System, m.seen[0].Role)
	assert.Contains(t, m.seen[0].Content, "[TIME_SLOT]")
	assert.Contains(t, m.seen[0].Content, "Reply in Dutch.")
	assert.Equal(t, "hi", m.seen[1].Content)

	sr, err := g.GenerateDialogueStream(context.Background(), &Request{Messages: req.Messages[1:]})
	require.NoError(t, err)
	assert.Equal(t, "Sure. [RATING]", readAll(t, sr))
	assert.Contains(t, m.seen[0].Content, "Reply in English.")
}

func TestFormatSystemPrompt(t *testing.T) {
	assert.Equal(t, "static", formatSystemPrompt("static", "cat", "English"))
	assert.Equal(t, "Reply in German", formatSystemPrompt("Reply in %s", "cat", "German"))
	assert.Equal(t, "cat / German", formatSystemPrompt("%s / %s", "cat", "German"))
}
