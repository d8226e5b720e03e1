package nodes

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	statex "github.com/mminh007/machine-translation/agent/state"
)

// LoadThread loads or creates the thread and appends the turn's input to its
// log. A resume clears the pending interrupt whichever agent raised it, keeps
// it in Resumed and logs the answer as a human message.
func LoadThread(ctx context.Context, in *TurnState, store statex.Store) (*TurnState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}

	th, err := loadOrCreateThread(ctx, store, in)
	if err != nil {
		return nil, err
	}

	if in.Input.IsResume() {
		if !th.Snapshot().Interrupted() {
			return nil, fmt.Errorf("resume thread %s: %w", th.ThreadID, statex.ErrNotInterrupted)
		}
		pending, err := th.ResumeWith(in.Now)
		if err != nil {
			return nil, err
		}
		th.Append(messagex.Human(in.Input.Resume))
		in.Resumed = pending
		in.Thread = th
		return in, nil
	}

	if th.Status == contractx.ThreadInterrupted {
		return nil, fmt.Errorf("%w: thread %s is waiting for a resume value", statex.ErrInvalidTransition, th.ThreadID)
	}
	for _, m := range in.Input.Messages {
		cm, err := messagex.FromEino(m)
		if err != nil {
			return nil, err
		}
		th.Append(cm)
	}

	in.Thread = th
	return in, nil
}

func loadOrCreateThread(ctx context.Context, store statex.Store, in *TurnState) (*statex.Thread, error) {
	th, err := store.Load(ctx, in.ThreadID)
	if err == nil {
		return th, nil
	}
	if !errors.Is(err, statex.ErrThreadNotFound) {
		return nil, err
	}
	return statex.NewThread(in.ThreadID, in.UserID, in.Now), nil
}

// ThreadState reports the thread's execution state. Unknown threads are
// running with nothing pending.
func ThreadState(ctx context.Context, store statex.Store, threadID string) (contractx.ThreadState, error) {
	th, err := store.Load(ctx, threadID)
	if errors.Is(err, statex.ErrThreadNotFound) {
		return contractx.ThreadState{ThreadID: threadID, Status: contractx.ThreadRunning}, nil
	}
	if err != nil {
		return contractx.ThreadState{}, err
	}
	return th.Snapshot(), nil
}
