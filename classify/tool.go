package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/actionblock/registry"
	"github.com/tbxark/actionblock/structured"
)

const (
	classifyToolName        = "classify_step"
	classifyToolDescription = "Pick the interactive block that best handles the customer's latest message."
)

// DefaultSystemPromptTemplate takes the tag list and the tool name.
const DefaultSystemPromptTemplate = `You route a car service support conversation to interactive blocks.

Read the latest customer message together with the assistant turn before it and pick the one tag whose block fits best.
Return "none" when no block is needed, for example for small talk or questions the assistant can answer directly.

Tags:
%s

Call the '%s' tool with the result.
`

type classifyOutput struct {
	Tag string `json:"tag" jsonschema:"required,description=One of the listed tags or none"`
}

type recognizerOptions struct {
	systemPromptTemplate string
	historyLimit         int
}

type Option func(*recognizerOptions)

func WithSystemPromptTemplate(tpl string) Option {
	return func(o *recognizerOptions) {
		o.systemPromptTemplate = tpl
	}
}

// WithHistoryLimit bounds how many trailing messages reach the model.
func WithHistoryLimit(n int) Option {
	return func(o *recognizerOptions) {
		o.historyLimit = n
	}
}

type ToolRecognizer struct {
	reg   *registry.Registry
	chain *structured.Chain[*Request, classifyOutput]
}

func NewToolRecognizer(reg *registry.Registry, chatModel model.ToolCallingChatModel, opts ...Option) (*ToolRecognizer, error) {
	options := recognizerOptions{systemPromptTemplate: DefaultSystemPromptTemplate, historyLimit: 6}
	for _, o := range opts {
		if o != nil {
			o(&options)
		}
	}
	systemPrompt := fmt.Sprintf(options.systemPromptTemplate, describeTags(reg), classifyToolName)
	chain, err := structured.NewChain[*Request, classifyOutput](
		chatModel,
		func(ctx context.Context, req *Request) ([]*schema.Message, error) {
			msgs := []*schema.Message{schema.SystemMessage(systemPrompt)}
			hist := req.Messages
			if options.historyLimit > 0 && len(hist) > options.historyLimit {
				hist = hist[len(hist)-options.historyLimit:]
			}
			for _, m := range hist {
				if m != nil && m.Role != schema.System {
					msgs = append(msgs, m)
				}
			}
			return msgs, nil
		},
		classifyToolName,
		classifyToolDescription,
	)
	if err != nil {
		return nil, fmt.Errorf("create classify chain: %w", err)
	}
	return &ToolRecognizer{reg: reg, chain: chain}, nil
}

func (p *ToolRecognizer) Classify(ctx context.Context, req *Request) (string, error) {
	if strings.TrimSpace(req.lastContent()) == "" {
		return NoTag, nil
	}
	out, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return NoTag, err
	}
	tag := strings.TrimSpace(out.Tag)
	if tag == "" || tag == "none" {
		return NoTag, nil
	}
	if _, err := p.reg.ByFlowTag(tag); err != nil {
		return NoTag, fmt.Errorf("%s returned unknown tag: %w", classifyToolName, err)
	}
	return tag, nil
}

func describeTags(reg *registry.Registry) string {
	var sb strings.Builder
	for _, def := range reg.All() {
		for _, tag := range def.Meta.FlowTags {
			fmt.Fprintf(&sb, "- %s: %s\n", tag, def.Meta.Description)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
