package nodes

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	runtimex "github.com/mminh007/machine-translation/agent/runtime"
	statex "github.com/mminh007/machine-translation/agent/state"
)

// ModelSource resolves a public model name to a chat model.
type ModelSource interface {
	ChatModel(ctx context.Context, name string) (einomodel.ToolCallingChatModel, error)
}

// TurnState flows through every node of an agent graph for one run.
type TurnState struct {
	RunID    string
	ThreadID string
	UserID   string
	Model    string
	Config   map[string]any
	Input    contractx.ExecutionInput
	Now      time.Time
	Emit     *runtimex.Emitter

	Thread    *statex.Thread
	Resumed   *contractx.Interrupt
	Reply     *schema.Message
	Interrupt *contractx.Interrupt
	Updates   []contractx.NodeUpdate

	TargetLanguage string
	SourceText     string
}

// NewTurnState seeds a turn from the coordinator's run context.
func NewTurnState(in contractx.ExecutionInput, rc contractx.RunContext, emit *runtimex.Emitter, now time.Time) *TurnState {
	return &TurnState{
		RunID:    rc.RunID,
		ThreadID: rc.ThreadID(),
		UserID:   rc.UserID,
		Model:    rc.Model(),
		Config:   rc.Configurable,
		Input:    in,
		Now:      now,
		Emit:     emit,
	}
}

func (s *TurnState) record(node string, msg *schema.Message) {
	s.Updates = append(s.Updates, contractx.NodeUpdate{
		Node:     node,
		Messages: []contractx.Item{contractx.MessageItem(msg)},
	})
}
