package nodes

import (
	"context"
	"fmt"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	statex "github.com/mminh007/machine-translation/agent/state"
)

// SaveThread appends the turn's reply, if any, and persists the thread.
func SaveThread(ctx context.Context, in *TurnState, store statex.Store) (*TurnState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: turn thread is nil", contractx.ErrValidation)
	}

	if in.Reply != nil {
		cm, err := messagex.FromEino(in.Reply)
		if err != nil {
			return nil, err
		}
		in.Thread.Append(cm)
	}

	in.Thread.Touch(in.Now)
	if err := in.Thread.Validate(); err != nil {
		return nil, fmt.Errorf("thread validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Thread); err != nil {
		return nil, err
	}
	return in, nil
}
