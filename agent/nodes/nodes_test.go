package nodes

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	runtimex "github.com/mminh007/machine-translation/agent/runtime"
	statex "github.com/mminh007/machine-translation/agent/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTurn(threadID string, in contractx.ExecutionInput, config map[string]any) *TurnState {
	cfg := map[string]any{contractx.ConfigKeyThreadID: threadID, contractx.ConfigKeyModel: "gpt-4o-mini"}
	for k, v := range config {
		cfg[k] = v
	}
	return NewTurnState(in, contractx.RunContext{RunID: "run-1", Configurable: cfg}, nil, fixedNow)
}

// collect runs fn as a feed producer and returns every emitted event.
func collect(t *testing.T, fn func(ctx context.Context, emit *runtimex.Emitter) error) ([]contractx.Event, error) {
	t.Helper()

	sr := runtimex.Start(context.Background(), fn)
	defer sr.Close()

	var events []contractx.Event
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestLoadThreadCreatesAndAppends(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	in := newTurn("t-1", contractx.NewTurn(schema.UserMessage("hi")), nil)

	out, err := LoadThread(context.Background(), in, store)
	require.NoError(t, err)
	require.NotNil(t, out.Thread)
	assert.Equal(t, "t-1", out.Thread.ThreadID)
	assert.Equal(t, []messagex.ChatMessage{messagex.Human("hi")}, out.Thread.Messages)
}

func TestLoadThreadResumeRequiresInterrupt(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	in := newTurn("t-1", contractx.Resume("French"), nil)

	_, err := LoadThread(context.Background(), in, store)
	assert.ErrorIs(t, err, statex.ErrNotInterrupted)
}

func TestLoadThreadResumeConsumesPendingInterrupt(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	th := statex.NewThread("t-1", "", fixedNow)
	th.Append(messagex.Human("bonjour"))
	pending := contractx.Interrupt{Value: AskLanguagePrompt, Node: NodeAskLanguage}
	require.NoError(t, th.Interrupt(pending, fixedNow))
	require.NoError(t, store.Save(context.Background(), th))

	out, err := LoadThread(context.Background(), newTurn("t-1", contractx.Resume("hello chatbot"), nil), store)
	require.NoError(t, err)
	require.NotNil(t, out.Resumed)
	assert.Equal(t, NodeAskLanguage, out.Resumed.Node)
	assert.False(t, out.Thread.Snapshot().Interrupted())
	assert.Equal(t, []messagex.ChatMessage{
		messagex.Human("bonjour"),
		messagex.Human("hello chatbot"),
	}, out.Thread.Messages)
}

func TestPrepareTranslationIgnoresOtherInterrupts(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	th := statex.NewThread("t-1", "", fixedNow)
	require.NoError(t, th.Interrupt(contractx.Interrupt{Value: "?", Node: "approve"}, fixedNow))
	require.NoError(t, store.Save(context.Background(), th))

	in, err := LoadThread(context.Background(), newTurn("t-1", contractx.Resume("Hello"), map[string]any{ConfigKeyTargetLanguage: "German"}), store)
	require.NoError(t, err)
	in, err = PrepareTranslation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Hello", in.SourceText)
	assert.Equal(t, "German", in.TargetLanguage)
}

func TestLoadThreadRejectsNewTurnOnInterruptedThread(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	th := statex.NewThread("t-1", "", fixedNow)
	require.NoError(t, th.Interrupt(contractx.Interrupt{Value: "?"}, fixedNow))
	require.NoError(t, store.Save(context.Background(), th))

	_, err := LoadThread(context.Background(), newTurn("t-1", contractx.NewTurn(schema.UserMessage("x")), nil), store)
	assert.ErrorIs(t, err, statex.ErrInvalidTransition)
}

func TestCallModelStreamsChunksAndRecordsReply(t *testing.T) {
	t.Parallel()

	fm := &fakeModel{chunks: []string{"Hel", "", "lo"}}
	store := statex.NewMemoryStore()

	var out *TurnState
	events, err := collect(t, func(ctx context.Context, emit *runtimex.Emitter) error {
		in := newTurn("t-1", contractx.NewTurn(schema.UserMessage("hi")), nil)
		in.Emit = emit
		in, err := LoadThread(ctx, in, store)
		if err != nil {
			return err
		}
		out, err = CallModel(ctx, in, fakeModels{model: fm}, "chatbot", "be nice")
		return err
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, contractx.ModeMessages, events[0].Mode)
	assert.Equal(t, "Hel", events[0].Chunk.Message.Content)
	assert.True(t, events[0].Chunk.Partial)
	assert.Equal(t, "chatbot", events[0].Chunk.Metadata["node"])
	assert.Equal(t, "lo", events[1].Chunk.Message.Content)

	require.NotNil(t, out.Reply)
	assert.Equal(t, "Hello", out.Reply.Content)
	assert.Equal(t, schema.Assistant, out.Reply.Role)
	require.Len(t, out.Updates, 1)
	assert.Equal(t, "chatbot", out.Updates[0].Node)

	input := fm.lastInput()
	require.Len(t, input, 2)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "hi", input[1].Content)
}

func TestCallModelUnknownModel(t *testing.T) {
	t.Parallel()

	in := newTurn("t-1", contractx.NewTurn(schema.UserMessage("hi")), nil)
	in.Model = "missing"
	in.Thread = statex.NewThread("t-1", "", fixedNow)

	_, err := CallModel(context.Background(), in, fakeModels{model: &fakeModel{}}, "chatbot", "")
	assert.ErrorIs(t, err, contractx.ErrModelInvoke)
}

func TestSaveThreadAppendsReply(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	in := newTurn("t-1", contractx.NewTurn(schema.UserMessage("hi")), nil)
	in, err := LoadThread(context.Background(), in, store)
	require.NoError(t, err)
	in.Reply = schema.AssistantMessage("hello", nil)

	_, err = SaveThread(context.Background(), in, store)
	require.NoError(t, err)

	msgs, err := statex.Messages(context.Background(), store, "t-1")
	require.NoError(t, err)
	assert.Equal(t, []messagex.ChatMessage{messagex.Human("hi"), messagex.AI("hello")}, msgs)
}

func TestPublishEmitsUpdatesThenValues(t *testing.T) {
	t.Parallel()

	events, err := collect(t, func(ctx context.Context, emit *runtimex.Emitter) error {
		in := newTurn("t-1", contractx.NewTurn(), nil)
		in.Emit = emit
		in.Thread = statex.NewThread("t-1", "", fixedNow)
		in.Thread.Append(messagex.Human("hi"), messagex.AI("hello"))
		in.record("chatbot", schema.AssistantMessage("hello", nil))
		_, err := Publish(ctx, in)
		return err
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, contractx.ModeUpdates, events[0].Mode)
	assert.Equal(t, "chatbot", events[0].Updates.Nodes[0].Node)
	assert.Equal(t, contractx.ModeValues, events[1].Mode)
	require.Len(t, events[1].Values, 2)
	assert.Equal(t, "hello", events[1].Values[1].Content)
}

func TestPublishInterruptOnly(t *testing.T) {
	t.Parallel()

	events, err := collect(t, func(ctx context.Context, emit *runtimex.Emitter) error {
		in := newTurn("t-1", contractx.NewTurn(), nil)
		in.Emit = emit
		in.Thread = statex.NewThread("t-1", "", fixedNow)
		in.Interrupt = &contractx.Interrupt{Value: AskLanguagePrompt}
		_, err := Publish(ctx, in)
		return err
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, events[0].Updates.Interrupts, 1)
	assert.Equal(t, AskLanguagePrompt, events[0].Updates.Interrupts[0].Value)
}

func TestTranslationInterruptAndResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := statex.NewMemoryStore()
	fm := &fakeModel{chunks: []string{"Bonjour"}}

	// first turn: no target language configured
	in := newTurn("t-1", contractx.NewTurn(schema.UserMessage("Hello")), nil)
	in, err := LoadThread(ctx, in, store)
	require.NoError(t, err)
	in, err = PrepareTranslation(ctx, in)
	require.NoError(t, err)
	next, err := RouteTranslation(ctx, in)
	require.NoError(t, err)
	require.Equal(t, NodeAskLanguage, next)
	in, err = AskLanguage(ctx, in)
	require.NoError(t, err)
	_, err = SaveThread(ctx, in, store)
	require.NoError(t, err)

	th, err := store.Load(ctx, "t-1")
	require.NoError(t, err)
	require.True(t, th.Snapshot().Interrupted())
	assert.Equal(t, AskLanguagePrompt, th.Pending.Value)

	// second turn answers the interrupt
	in = newTurn("t-1", contractx.Resume("French"), nil)
	in, err = LoadThread(ctx, in, store)
	require.NoError(t, err)
	in, err = PrepareTranslation(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "French", in.TargetLanguage)
	assert.Equal(t, "Hello", in.SourceText)
	next, err = RouteTranslation(ctx, in)
	require.NoError(t, err)
	require.Equal(t, NodeTranslate, next)
	in, err = Translate(ctx, in, fakeModels{model: fm})
	require.NoError(t, err)
	_, err = SaveThread(ctx, in, store)
	require.NoError(t, err)

	th, err = store.Load(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, th.Snapshot().Interrupted())
	assert.Equal(t, []messagex.ChatMessage{
		messagex.Human("Hello"),
		messagex.Human("French"),
		messagex.AI("Bonjour"),
	}, th.Messages)

	prompt := fm.lastInput()
	require.Len(t, prompt, 2)
	assert.Contains(t, prompt[0].Content, "French")
	assert.Equal(t, "Hello", prompt[1].Content)
}

func TestPrepareTranslationUsesConfiguredLanguage(t *testing.T) {
	t.Parallel()

	in := newTurn("t-1", contractx.NewTurn(schema.UserMessage("Hello")), map[string]any{ConfigKeyTargetLanguage: " German "})
	in, err := LoadThread(context.Background(), in, statex.NewMemoryStore())
	require.NoError(t, err)
	in, err = PrepareTranslation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "German", in.TargetLanguage)
}
