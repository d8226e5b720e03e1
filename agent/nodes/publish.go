package nodes

import (
	"context"
	"fmt"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
)

// Publish emits the turn's node outputs, or its interrupt, followed by the
// final thread values when the turn completed.
func Publish(ctx context.Context, in *TurnState) (*TurnState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: turn thread is nil", contractx.ErrValidation)
	}

	if in.Interrupt != nil {
		if err := in.Emit.Emit(contractx.UpdatesEvent(contractx.Updates{
			Interrupts: []contractx.Interrupt{*in.Interrupt},
		})); err != nil {
			return nil, err
		}
		return in, nil
	}

	if len(in.Updates) > 0 {
		if err := in.Emit.Emit(contractx.UpdatesEvent(contractx.Updates{Nodes: in.Updates})); err != nil {
			return nil, err
		}
	}

	values, err := messagex.ToEinoAll(in.Thread.Messages)
	if err != nil {
		return nil, err
	}
	if err := in.Emit.Emit(contractx.ValuesEvent(values)); err != nil {
		return nil, err
	}
	return in, nil
}
