package chatbot

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	nodex "github.com/mminh007/machine-translation/agent/nodes"
	promptx "github.com/mminh007/machine-translation/agent/prompt"
	runtimex "github.com/mminh007/machine-translation/agent/runtime"
	statex "github.com/mminh007/machine-translation/agent/state"
)

const (
	Key         = "chatbot"
	Description = "A simple chatbot."
)

// Agent answers each turn with one model completion over the whole thread.
type Agent struct {
	store        statex.Store
	models       nodex.ModelSource
	systemPrompt string

	graphRunner compose.Runnable[*nodex.TurnState, *nodex.TurnState]

	now func() time.Time
}

var _ contractx.Runtime = (*Agent)(nil)

type Option func(*Agent)

func WithSystemPrompt(p string) Option {
	return func(a *Agent) { a.systemPrompt = p }
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

func New(store statex.Store, models nodex.ModelSource, opts ...Option) (*Agent, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model source is required")
	}

	a := &Agent{
		store:        store,
		models:       models,
		systemPrompt: promptx.LoadPromptSet().Chatbot,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

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
