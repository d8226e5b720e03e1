package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Runtime is a stateful agent able to run one turn of a thread.
type Runtime interface {
	// State reports whether the thread is paused on an interrupt.
	State(ctx context.Context, threadID string) (ThreadState, error)
	// Stream starts a run and returns its ordered event feed. Closing the
	// reader or cancelling ctx abandons the run.
	Stream(ctx context.Context, in ExecutionInput, rc RunContext) (*schema.StreamReader[Event], error)
}

type ThreadStatus string

const (
	ThreadRunning     ThreadStatus = "running"
	ThreadInterrupted ThreadStatus = "interrupted"
)

type ThreadState struct {
	ThreadID string
	Status   ThreadStatus
	Pending  *Interrupt
}

func (s ThreadState) Interrupted() bool {
	return s.Status == ThreadInterrupted && s.Pending != nil
}

// Interrupt is a pause awaiting external input. Payload carries whatever the
// agent needs to continue once resumed.
type Interrupt struct {
	Value   string         `json:"value"`
	Node    string         `json:"node,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type ExecutionKind int

const (
	ExecNewTurn ExecutionKind = iota + 1
	ExecResume
)

// ExecutionInput either starts a new turn or answers a pending interrupt.
type ExecutionInput struct {
	Kind     ExecutionKind
	Messages []*schema.Message
	Resume   string
}

func NewTurn(msgs ...*schema.Message) ExecutionInput {
	return ExecutionInput{Kind: ExecNewTurn, Messages: msgs}
}

func Resume(value string) ExecutionInput {
	return ExecutionInput{Kind: ExecResume, Resume: value}
}

func (in ExecutionInput) IsResume() bool {
	return in.Kind == ExecResume
}

type StreamMode string

const (
	ModeUpdates  StreamMode = "updates"
	ModeMessages StreamMode = "messages"
	ModeValues   StreamMode = "values"
)

// Event is one element of a runtime feed. Exactly one payload is set,
// matching Mode.
type Event struct {
	Mode StreamMode

	Updates *Updates
	Chunk   *Chunk
	Values  []*schema.Message
}

// Updates holds the outputs of one execution tick in node declaration order.
type Updates struct {
	Nodes      []NodeUpdate
	Interrupts []Interrupt
}

type NodeUpdate struct {
	Node     string
	Messages []Item
}

// Item is either a whole message or a (field, value) fragment of one.
type Item struct {
	Message  *schema.Message
	Fragment *Fragment
}

type Fragment struct {
	Field string
	Value any
}

func MessageItem(msg *schema.Message) Item {
	return Item{Message: msg}
}

func FragmentItem(field string, value any) Item {
	return Item{Fragment: &Fragment{Field: field, Value: value}}
}

// Chunk is a token-level piece of an in-progress message.
type Chunk struct {
	Message  *schema.Message
	Partial  bool
	Metadata map[string]any
}

func UpdatesEvent(u Updates) Event {
	return Event{Mode: ModeUpdates, Updates: &u}
}

func ChunkEvent(msg *schema.Message, metadata map[string]any) Event {
	return Event{Mode: ModeMessages, Chunk: &Chunk{Message: msg, Partial: true, Metadata: metadata}}
}

func ValuesEvent(msgs []*schema.Message) Event {
	return Event{Mode: ModeValues, Values: msgs}
}
