package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel answers with a fixed reply and records the messages it saw.
type fakeChatModel struct {
	mu     sync.Mutex
	reply  string
	chunks []string
	err    error
	seen   [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.err != nil {
		return nil, f.err
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (f *fakeChatModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, input)
}

func TestCompleterSendsPromptAsSingleUserMessage(t *testing.T) {
	fake := &fakeChatModel{reply: "Paris"}
	completer, err := NewCompleter(context.Background(), fake, zerolog.Nop())
	require.NoError(t, err)

	prompt := "User: What's the capital of France?\n\nAssistant:"
	got, err := completer.Complete(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Paris", got)

	require.Len(t, fake.seen, 1)
	require.Len(t, fake.seen[0], 1)
	assert.Equal(t, schema.User, fake.seen[0][0].Role)
	assert.Equal(t, prompt, fake.seen[0][0].Content)
}

func TestCompleterWrapsModelErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("rate limited")}
	completer, err := NewCompleter(context.Background(), fake, zerolog.Nop())
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), "User: hi\n\nAssistant:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleterRejectsEmptyPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "unused"}
	completer, err := NewCompleter(context.Background(), fake, zerolog.Nop())
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), "   ")
	assert.Error(t, err)
	assert.Empty(t, fake.seen)
}

func TestCompleterStreamingConcatenatesChunks(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Par", "is", ""}}
	completer, err := NewCompleter(context.Background(), fake, zerolog.Nop())
	require.NoError(t, err)

	var deltas []string
	got, err := completer.CompleteStreaming(context.Background(), "User: capital?\n\nAssistant:", func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", got)
	assert.Equal(t, []string{"Par", "is"}, deltas)
}

func TestNewCompleterRequiresModel(t *testing.T) {
	_, err := NewCompleter(context.Background(), nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestStreamingCompleterJoinsChunks(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Bon", " appétit"}}
	completer, err := NewCompleter(context.Background(), fake, zerolog.Nop())
	require.NoError(t, err)

	var c interface {
		Complete(context.Context, string) (string, error)
	} = StreamingCompleter{Completer: completer}

	got, err := c.Complete(context.Background(), "User: dinner?\n\nAssistant:")
	require.NoError(t, err)
	assert.Equal(t, "Bon appétit", got)
}

func TestCompleterKeepsBracesInPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "a set"}
	completer, err := NewCompleter(context.Background(), fake, zerolog.Nop())
	require.NoError(t, err)

	prompt := "User: what is {1, 2}?\n\nAssistant:"
	_, err = completer.Complete(context.Background(), prompt)
	require.NoError(t, err)
	require.Len(t, fake.seen, 1)
	assert.Equal(t, prompt, fake.seen[0][0].Content)
}
