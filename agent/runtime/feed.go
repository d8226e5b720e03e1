package runtime

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	"github.com/rs/zerolog/log"
)

// ErrFeedClosed is returned by Emit once the consumer has closed the feed.
var ErrFeedClosed = errors.New("feed closed by consumer")

// Producer runs one turn and pushes its events through emit. A non-nil
// error is delivered to the consumer as the feed's terminal error.
type Producer func(ctx context.Context, emit *Emitter) error

// Emitter is the producer side of a run feed.
type Emitter struct {
	ctx    context.Context
	writer *schema.StreamWriter[contractx.Event]
	closed bool
}

func (e *Emitter) Emit(ev contractx.Event) error {
	if e == nil {
		return nil
	}
	if e.closed {
		return ErrFeedClosed
	}
	if err := e.ctx.Err(); err != nil {
		return err
	}
	if e.writer.Send(ev, nil) {
		e.closed = true
		return ErrFeedClosed
	}
	return nil
}

// Start runs produce on its own goroutine and returns the consumer side.
// The pipe is unbuffered, so the producer advances only as fast as the
// consumer reads.
func Start(ctx context.Context, produce Producer) *schema.StreamReader[contractx.Event] {
	sr, sw := schema.Pipe[contractx.Event](0)
	em := &Emitter{ctx: ctx, writer: sw}

	go func() {
		defer sw.Close()
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("component", "runtime").
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("agent run panicked")
				if !em.closed {
					sw.Send(contractx.Event{}, fmt.Errorf("agent run panicked: %v", r))
				}
			}
		}()

		err := produce(ctx, em)
		if err == nil || em.closed || errors.Is(err, ErrFeedClosed) {
			return
		}
		sw.Send(contractx.Event{}, err)
	}()

	return sr
}
