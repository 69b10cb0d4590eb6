package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/actionblock/registry"
)

// DefaultDialogueSystemPromptTemplate takes the block catalog and the reply
// language.
const DefaultDialogueSystemPromptTemplate = `You are the support assistant of a car service company. You help customers book, change and review service appointments.

Keep replies short and friendly. When you need information that one of the interactive blocks below collects, emit that block instead of asking in prose. Emit at most one block per reply, with its markers exactly as shown. Never invent booking numbers, prices or time slots; they come from the blocks.

Customer turns that answer a block are written by the block itself, such as "My address is Main Street 10, 1234AB Amsterdam." Treat them as confirmed facts.

%s

Reply in %s.
`

var languageNames = map[string]string{
	"en": "English",
	"nl": "Dutch",
	"de": "German",
	"fr": "French",
}

type dialogueGeneratorOptions struct {
	lang                 string
	systemPrompt         string
	systemPromptTemplate string
}

type GeneratorOption func(*dialogueGeneratorOptions)

// WithDialogueLang sets the fallback reply language, used when the customer
// has not chosen one.
func WithDialogueLang(lang string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.lang = lang
	}
}

// WithDialogueSystemPrompt replaces the whole system prompt.
func WithDialogueSystemPrompt(systemPrompt string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithDialogueSystemPromptTemplate overrides the template. It receives the
// catalog and the language, in that order.
func WithDialogueSystemPromptTemplate(systemPromptTemplate string) GeneratorOption {
	return func(o *dialogueGeneratorOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

type ChatModelDialogueGenerator struct {
	Lang                 string
	catalog              string
	systemPrompt         string
	systemPromptTemplate string
	chatModel            model.BaseChatModel
}

func NewChatModelDialogueGenerator(chatModel model.BaseChatModel, reg *registry.Registry, opts ...GeneratorOption) *ChatModelDialogueGenerator {
	options := dialogueGeneratorOptions{
		lang:                 "English",
		systemPromptTemplate: DefaultDialogueSystemPromptTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.lang == "" {
		options.lang = "English"
	}
	return &ChatModelDialogueGenerator{
		Lang:                 options.lang,
		catalog:              reg.Prompt(),
		systemPrompt:         options.systemPrompt,
		systemPromptTemplate: options.systemPromptTemplate,
		chatModel:            chatModel,
	}
}

func (g *ChatModelDialogueGenerator) GenerateDialogue(ctx context.Context, req *Request) (string, error) {
	messages := g.buildDialoguePrompt(req)
	response, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return response.Content, nil
}

func (g *ChatModelDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *Request) (*schema.StreamReader[string], error) {
	messages := g.buildDialoguePrompt(req)
	stream, err := g.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLM stream call failed: %w", err)
	}
	return schema.StreamReaderWithConvert(stream, func(message *schema.Message) (string, error) {
		return message.Content, nil
	}), nil
}

func (g *ChatModelDialogueGenerator) buildDialoguePrompt(req *Request) []*schema.Message {
	systemPrompt := g.systemPrompt
	if systemPrompt == "" {
		systemPrompt = formatSystemPrompt(g.systemPromptTemplate, g.catalog, g.language(req))
	}
	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	for _, m := range req.Messages {
		if m == nil || m.Role == schema.System {
			continue
		}
		messages = append(messages, &schema.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

func (g *ChatModelDialogueGenerator) language(req *Request) string {
	if req != nil && req.Language != "" {
		if name, ok := languageNames[strings.ToLower(req.Language)]; ok {
			return name
		}
		return req.Language
	}
	return g.Lang
}
