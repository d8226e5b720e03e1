package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	runtimex "github.com/mminh007/machine-translation/agent/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	frames  []Frame
	done    int
	failAt  int
	failErr error
	// unencodable content is refused the way WriterSink refuses it
	unencodable any
}

func (s *recordingSink) WriteFrame(f Frame) error {
	if s.unencodable != nil && f.Content == s.unencodable {
		return fmt.Errorf("%w: %s frame", ErrFrameEncode, f.Type)
	}
	if s.failErr != nil && len(s.frames) == s.failAt {
		return s.failErr
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSink) WriteDone() error {
	s.done++
	return nil
}

func (s *recordingSink) types() []FrameType {
	out := make([]FrameType, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f.Type)
	}
	return out
}

func token(text string) contractx.Event {
	return contractx.ChunkEvent(schema.AssistantMessage(text, nil), nil)
}

func nodeUpdate(node string, items ...contractx.Item) contractx.Event {
	return contractx.UpdatesEvent(contractx.Updates{Nodes: []contractx.NodeUpdate{{Node: node, Messages: items}}})
}

func feedOf(events ...contractx.Event) *schema.StreamReader[contractx.Event] {
	return schema.StreamReaderFromArray(events)
}

func failingFeed(err error, events ...contractx.Event) *schema.StreamReader[contractx.Event] {
	sr, sw := schema.Pipe[contractx.Event](len(events) + 1)
	for _, ev := range events {
		sw.Send(ev, nil)
	}
	sw.Send(contractx.Event{}, err)
	sw.Close()
	return sr
}

func TestTokensThenAssembledMessage(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(
		token("The"),
		token("cat"),
		token("sat"),
		nodeUpdate("chatbot", contractx.MessageItem(schema.AssistantMessage("The cat sat", nil))),
		contractx.ValuesEvent([]*schema.Message{schema.AssistantMessage("The cat sat", nil)}),
	)

	err := New(Options{RunID: "run-1", StreamTokens: true}).Run(context.Background(), feed, sink)
	require.NoError(t, err)

	assert.Equal(t, []FrameType{FrameToken, FrameToken, FrameToken, FrameMessage}, sink.types())
	assert.Equal(t, "The", sink.frames[0].Content)
	assert.Equal(t, messagex.ChatMessage{Type: messagex.TypeAI, Content: "The cat sat", RunID: "run-1"}, sink.frames[3].Content)
	assert.Equal(t, 1, sink.done)
}

func TestUnsupportedMessageYieldsOneErrorFrame(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(nodeUpdate("agent",
		contractx.MessageItem(&schema.Message{Role: schema.RoleType("developer"), Content: "x"}),
	))

	err := New(Options{RunID: "run-1", StreamTokens: true}).Run(context.Background(), feed, sink)
	require.NoError(t, err)

	require.Equal(t, []FrameType{FrameError}, sink.types())
	assert.Equal(t, InternalErrorText, sink.frames[0].Content)
	assert.Equal(t, 1, sink.done)
}

func TestErrorFrameDoesNotAbortStream(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(
		nodeUpdate("agent",
			contractx.MessageItem(&schema.Message{Role: schema.RoleType("developer")}),
			contractx.MessageItem(schema.AssistantMessage("after", nil)),
		),
		token("more"),
	)

	require.NoError(t, New(Options{RunID: "r", StreamTokens: true}).Run(context.Background(), feed, sink))
	assert.Equal(t, []FrameType{FrameError, FrameMessage, FrameToken}, sink.types())
}

func TestEncodeFailureBecomesErrorFrame(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{unencodable: "bad"}
	feed := feedOf(token("good"), token("bad"), token("after"))

	err := New(Options{RunID: "run-1", StreamTokens: true}).Run(context.Background(), feed, sink)
	require.NoError(t, err)

	assert.Equal(t, []FrameType{FrameToken, FrameError, FrameToken}, sink.types())
	assert.Equal(t, InternalErrorText, sink.frames[1].Content)
	assert.Equal(t, "after", sink.frames[2].Content)
	assert.Equal(t, 1, sink.done)
}

func TestWriterSinkReportsEncodeFailure(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	err := NewWriterSink(&buf).WriteFrame(Frame{Type: FrameMessage, Content: make(chan int)})
	assert.ErrorIs(t, err, ErrFrameEncode)
	assert.Empty(t, buf.String())
}

func TestInterruptsBecomeAIMessages(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(contractx.UpdatesEvent(contractx.Updates{
		Interrupts: []contractx.Interrupt{{Value: "Which language?"}, {Value: "Second"}},
		Nodes:      []contractx.NodeUpdate{{Node: "ignored", Messages: []contractx.Item{contractx.MessageItem(schema.AssistantMessage("x", nil))}}},
	}))

	require.NoError(t, New(Options{RunID: "run-9"}).Run(context.Background(), feed, sink))
	require.Len(t, sink.frames, 2)
	assert.Equal(t, messagex.ChatMessage{Type: messagex.TypeAI, Content: "Which language?", RunID: "run-9"}, sink.frames[0].Content)
	assert.Equal(t, messagex.ChatMessage{Type: messagex.TypeAI, Content: "Second", RunID: "run-9"}, sink.frames[1].Content)
}

func TestTokensSkippedWhenDisabled(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(token("a"), token("b"), nodeUpdate("chatbot", contractx.MessageItem(schema.AssistantMessage("ab", nil))))

	require.NoError(t, New(Options{RunID: "r", StreamTokens: false}).Run(context.Background(), feed, sink))
	assert.Equal(t, []FrameType{FrameMessage}, sink.types())
}

func TestNoBlankOrForeignTokens(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	notPartial := contractx.Event{Mode: contractx.ModeMessages, Chunk: &contractx.Chunk{Message: schema.AssistantMessage("whole", nil)}}
	feed := feedOf(
		token("   "),
		token(""),
		token("\n"),
		contractx.ChunkEvent(schema.UserMessage("human"), nil),
		notPartial,
		contractx.Event{Mode: contractx.ModeMessages},
		token(" ok "),
	)

	require.NoError(t, New(Options{RunID: "r", StreamTokens: true}).Run(context.Background(), feed, sink))
	require.Equal(t, []FrameType{FrameToken}, sink.types())
	assert.Equal(t, " ok ", sink.frames[0].Content)
}

func TestFragmentsAreMerged(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(nodeUpdate("agent",
		contractx.FragmentItem("content", "partial "),
		contractx.FragmentItem("content", "merged"),
		contractx.FragmentItem("name", "bot"),
		contractx.FragmentItem("unknown", 1),
		contractx.MessageItem(schema.ToolMessage("tool out", "call-1")),
		contractx.FragmentItem("content", "tail"),
	))

	require.NoError(t, New(Options{RunID: "r"}).Run(context.Background(), feed, sink))
	require.Equal(t, []FrameType{FrameMessage, FrameMessage, FrameMessage}, sink.types())
	assert.Equal(t, messagex.ChatMessage{Type: messagex.TypeAI, Content: "merged", RunID: "r"}, sink.frames[0].Content)
	assert.Equal(t, messagex.ChatMessage{Type: messagex.TypeTool, Content: "tool out", RunID: "r"}, sink.frames[1].Content)
	assert.Equal(t, messagex.ChatMessage{Type: messagex.TypeAI, Content: "tail", RunID: "r"}, sink.frames[2].Content)
}

func TestFragmentWithoutContentIsErrorFrame(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(nodeUpdate("agent", contractx.FragmentItem("name", "bot")))

	require.NoError(t, New(Options{RunID: "r"}).Run(context.Background(), feed, sink))
	assert.Equal(t, []FrameType{FrameError}, sink.types())
}

func TestSupervisorContributesLastAIMessage(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	feed := feedOf(contractx.UpdatesEvent(contractx.Updates{Nodes: []contractx.NodeUpdate{
		{Node: "supervisor", Messages: []contractx.Item{
			contractx.MessageItem(schema.UserMessage("q")),
			contractx.MessageItem(schema.AssistantMessage("old", nil)),
			contractx.MessageItem(schema.AssistantMessage("new", nil)),
			contractx.MessageItem(schema.UserMessage("trailing")),
		}},
		{Node: "worker", Messages: []contractx.Item{
			contractx.MessageItem(schema.AssistantMessage("w1", nil)),
			contractx.MessageItem(schema.AssistantMessage("w2", nil)),
		}},
	}}))

	require.NoError(t, New(Options{RunID: "r"}).Run(context.Background(), feed, sink))
	require.Len(t, sink.frames, 3)
	assert.Equal(t, "new", sink.frames[0].Content.(messagex.ChatMessage).Content)
	assert.Equal(t, "w1", sink.frames[1].Content.(messagex.ChatMessage).Content)
	assert.Equal(t, "w2", sink.frames[2].Content.(messagex.ChatMessage).Content)
}

func TestUpstreamFailureEmitsErrorThenDone(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	boom := errors.New("model exploded")
	feed := failingFeed(boom, token("partial"))

	err := New(Options{RunID: "r", StreamTokens: true}).Run(context.Background(), feed, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, contractx.ErrStreamTransport)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []FrameType{FrameToken, FrameError}, sink.types())
	assert.Equal(t, 1, sink.done)
}

func TestSinkFailureStopsProducer(t *testing.T) {
	t.Parallel()

	gone := errors.New("client gone")
	sink := &recordingSink{failAt: 1, failErr: gone}
	stopped := make(chan error, 1)

	feed := runtimex.Start(context.Background(), func(ctx context.Context, emit *runtimex.Emitter) error {
		for {
			if err := emit.Emit(token("tok")); err != nil {
				stopped <- err
				return err
			}
		}
	})

	err := New(Options{RunID: "r", StreamTokens: true}).Run(context.Background(), feed, sink)
	assert.ErrorIs(t, err, gone)
	assert.Equal(t, 1, sink.done)

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, runtimex.ErrFeedClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("producer kept running after the sink failed")
	}
}

func TestCancelledContextStillWritesDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	err := New(Options{RunID: "r", StreamTokens: true}).Run(ctx, feedOf(token("a")), sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.frames)
	assert.Equal(t, 1, sink.done)
}

func TestOnFrameObservesWrites(t *testing.T) {
	t.Parallel()

	var seen []FrameType
	sink := &recordingSink{}
	opts := Options{RunID: "r", StreamTokens: true, OnFrame: func(ft FrameType) { seen = append(seen, ft) }}
	require.NoError(t, New(opts).Run(context.Background(), feedOf(token("a"), nodeUpdate("n", contractx.MessageItem(schema.AssistantMessage("a", nil)))), sink))
	assert.Equal(t, []FrameType{FrameToken, FrameMessage}, seen)
}

func TestWriterSinkWireFormat(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sink := NewWriterSink(rec)
	feed := feedOf(
		token("Hi"),
		nodeUpdate("chatbot", contractx.MessageItem(schema.AssistantMessage("Hi", nil))),
	)

	require.NoError(t, New(Options{RunID: "run-1", StreamTokens: true}).Run(context.Background(), feed, sink))

	body := rec.Body.String()
	assert.Equal(t,
		`data: {"type":"token","content":"Hi"}`+"\n\n"+
			`data: {"type":"message","content":{"type":"ai","content":"Hi","run_id":"run-1"}}`+"\n\n"+
			"data: [DONE]\n\n",
		body)
	assert.True(t, rec.Flushed)
	assert.Equal(t, 1, strings.Count(body, DoneSentinel))
}
