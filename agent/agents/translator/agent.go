package translator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	nodex "github.com/mminh007/machine-translation/agent/nodes"
	runtimex "github.com/mminh007/machine-translation/agent/runtime"
	statex "github.com/mminh007/machine-translation/agent/state"
)

const (
	Key         = "translator"
	Description = "Translates text; asks for the target language when it is not configured."
)

// Agent translates the latest user message. Without a target_language in
// the agent config it pauses the thread and asks for one.
type Agent struct {
	store  statex.Store
	models nodex.ModelSource

	graphRunner compose.Runnable[*nodex.TurnState, *nodex.TurnState]

	now func() time.Time
}

var _ contractx.Runtime = (*Agent)(nil)

func New(store statex.Store, models nodex.ModelSource) (*Agent, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model source is required")
	}

	a := &Agent{store: store, models: models, now: time.Now}

	graphRunner, err := a.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

func (a *Agent) State(ctx context.Context, threadID string) (contractx.ThreadState, error) {
	return nodex.ThreadState(ctx, a.store, threadID)
}

func (a *Agent) Stream(ctx context.Context, in contractx.ExecutionInput, rc contractx.RunContext) (*schema.StreamReader[contractx.Event], error) {
	return runtimex.Start(ctx, func(ctx context.Context, emit *runtimex.Emitter) error {
		_, err := a.graphRunner.Invoke(ctx, nodex.NewTurnState(in, rc, emit, a.now()))
		return err
	}), nil
}
