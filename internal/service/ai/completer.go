package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// Completer sends a flattened conversation prompt to the chat model. The model
// is treated as stateless: the prompt carries the whole history.
type Completer struct {
	chatModel model.BaseChatModel
	chain     compose.Runnable[string, *schema.Message]
	logger    zerolog.Logger
}

// promptKey names the template variable carrying the flattened conversation.
const promptKey = "conversation"

// NewCompleter compiles the prompt -> template -> model chain once.
func NewCompleter(ctx context.Context, chatModel model.BaseChatModel, logger zerolog.Logger) (*Completer, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{"+promptKey+"}"),
	)

	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(promptVariables))
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}

	return &Completer{
		chatModel: chatModel,
		chain:     runnable,
		logger:    logger.With().Str("component", "ai").Logger(),
	}, nil
}

// Complete runs one prompt through the model and returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := c.chain.Invoke(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to run completion chain: %w", err)
	}
	if response == nil {
		return "", errors.New("model returned no message")
	}

	c.logger.Debug().Int("prompt_length", len(prompt)).Int("length", len(response.Content)).Msg("completion generated")
	return response.Content, nil
}

// Stream yields the model's incremental output for prompt. Iteration stops at
// the first error, which is yielded once.
func (c *Completer) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		reader, err := c.chain.Stream(ctx, prompt)
		if err != nil {
			yield("", fmt.Errorf("failed to stream completion chain: %w", err))
			return
		}
		defer reader.Close()

		for {
			chunk, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if chunk == nil || chunk.Content == "" {
				continue
			}
			if !yield(chunk.Content, nil) {
				return
			}
		}
	}
}

// CompleteStreaming drains Stream into one reply, calling onDelta for each
// chunk as it arrives.
func (c *Completer) CompleteStreaming(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	var builder strings.Builder
	for delta, err := range c.Stream(ctx, prompt) {
		if err != nil {
			return "", err
		}
		builder.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return builder.String(), nil
}

// ChatModel returns the underlying model.
func (c *Completer) ChatModel() model.BaseChatModel {
	return c.chatModel
}

func promptVariables(_ context.Context, prompt string) (map[string]any, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is empty")
	}
	return map[string]any{promptKey: prompt}, nil
}

// StreamingCompleter completes through the model's streaming endpoint and
// returns the joined reply, so long generations surface as debug progress.
type StreamingCompleter struct {
	*Completer
}

// Complete drains the model stream into one reply.
func (s StreamingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	chunks := 0
	reply, err := s.CompleteStreaming(ctx, prompt, func(string) { chunks++ })
	if err != nil {
		return "", err
	}
	s.logger.Debug().Int("chunks", chunks).Int("length", len(reply)).Msg("streamed completion generated")
	return reply, nil
}
