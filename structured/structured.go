// Package structured forces a chat model to answer through one tool call and
// decodes the call arguments into a Go value.
package structured

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

var ErrNoToolCall = errors.New("no tool call in model response")

type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

type Chain[TInput, TOutput any] struct {
	PromptBuilder PromptBuilder[TInput]
	ChatModel     model.ToolCallingChatModel
	ToolInfo      *schema.ToolInfo
}

func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
) (*Chain[TInput, TOutput], error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}
	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	return &Chain[TInput, TOutput]{
		PromptBuilder: promptBuilder,
		ChatModel:     chatModel,
		ToolInfo:      toolInfo,
	}, nil
}

func (s *Chain[TInput, TOutput]) options(opts []model.Option) []model.Option {
	return append([]model.Option{
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	}, opts...)
}

func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput, opts ...model.Option) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	response, err := s.ChatModel.Generate(ctx, messages, s.options(opts)...)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	return s.decode(response)
}

// Stream waits for the whole tool call, since arguments arrive in fragments
// that are not valid JSON on their own.
func (s *Chain[TInput, TOutput]) Stream(ctx context.Context, input TInput, opts ...model.Option) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	reader, err := s.ChatModel.Stream(ctx, messages, s.options(opts)...)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	response, err := schema.ConcatMessageStream(reader)
	if err != nil {
		return nil, fmt.Errorf("read model stream failed: %w", err)
	}
	return s.decode(response)
}

func (s *Chain[TInput, TOutput]) decode(msg *schema.Message) (*TOutput, error) {
	if msg == nil {
		return nil, ErrNoToolCall
	}
	for _, call := range msg.ToolCalls {
		if call.Function.Name != "" && call.Function.Name != s.ToolInfo.Name {
			continue
		}
		var result TOutput
		if err := sonic.UnmarshalString(call.Function.Arguments, &result); err != nil {
			return nil, fmt.Errorf("parse %s arguments failed: %w", s.ToolInfo.Name, err)
		}
		return &result, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoToolCall, msg.Content)
}

func (s *Chain[TInput, TOutput]) GetToolInfo() *schema.ToolInfo {
	return s.ToolInfo
}
