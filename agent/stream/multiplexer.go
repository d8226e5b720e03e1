package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	logx "github.com/mminh007/machine-translation/pkg/logger"
)

// supervisorNode re-emits the whole conversation on every tick, so only its
// last ai message is new.
const supervisorNode = "supervisor"

type Options struct {
	RunID        string
	StreamTokens bool
	// OnFrame observes every frame written, sentinel excluded.
	OnFrame func(FrameType)
}

// Multiplexer turns one run's event feed into frames.
type Multiplexer struct {
	opts Options
}

func New(opts Options) *Multiplexer {
	return &Multiplexer{opts: opts}
}

// Run drains feed into sink until the feed ends, fails, or ctx is done.
// The feed is always closed on return and exactly one terminal frame is
// written.
func (m *Multiplexer) Run(ctx context.Context, feed *schema.StreamReader[contractx.Event], sink Sink) (err error) {
	logger := logx.FromContext(ctx).With().Str("component", "stream").Str("run_id", m.opts.RunID).Logger()

	defer feed.Close()
	defer func() {
		if derr := sink.WriteDone(); derr != nil && err == nil {
			err = derr
		}
	}()

	for {
		if cerr := ctx.Err(); cerr != nil {
			logger.Debug().Err(cerr).Msg("run abandoned")
			return cerr
		}

		ev, rerr := feed.Recv()
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			logger.Error().Err(rerr).Msg("agent run failed")
			if werr := m.write(sink, ErrorFrame()); werr != nil {
				return werr
			}
			return fmt.Errorf("%w: %w", contractx.ErrStreamTransport, rerr)
		}

		for _, f := range m.frames(ctx, ev) {
			werr := m.write(sink, f)
			if errors.Is(werr, ErrFrameEncode) {
				m.logFrameError(ctx, werr)
				werr = m.write(sink, ErrorFrame())
			}
			if werr != nil {
				logger.Debug().Err(werr).Msg("sink closed")
				return werr
			}
		}
	}
}

func (m *Multiplexer) write(sink Sink, f Frame) error {
	if err := sink.WriteFrame(f); err != nil {
		return err
	}
	if m.opts.OnFrame != nil {
		m.opts.OnFrame(f.Type)
	}
	return nil
}

func (m *Multiplexer) frames(ctx context.Context, ev contractx.Event) []Frame {
	switch ev.Mode {
	case contractx.ModeUpdates:
		return m.updateFrames(ctx, ev.Updates)
	case contractx.ModeMessages:
		if !m.opts.StreamTokens {
			return nil
		}
		if f, ok := m.tokenFrame(ctx, ev.Chunk); ok {
			return []Frame{f}
		}
		return nil
	default:
		return nil
	}
}

func (m *Multiplexer) tokenFrame(ctx context.Context, c *contractx.Chunk) (Frame, bool) {
	if c == nil || c.Message == nil || c.Message.Role != schema.Assistant || !c.Partial {
		logx.FromContext(ctx).Warn().
			Err(contractx.ErrMalformedChunk).
			Str("run_id", m.opts.RunID).
			Msg("skipped non-assistant chunk")
		return Frame{}, false
	}

	text := messagex.ContentText(c.Message)
	if strings.TrimSpace(text) == "" {
		return Frame{}, false
	}
	return TokenFrame(text), true
}

// pendingMessage is a completed message or the error that prevented it.
type pendingMessage struct {
	msg *schema.Message
	err error
}

func (m *Multiplexer) updateFrames(ctx context.Context, u *contractx.Updates) []Frame {
	if u == nil {
		return nil
	}

	var pending []pendingMessage
	if len(u.Interrupts) > 0 {
		for _, in := range u.Interrupts {
			pending = append(pending, pendingMessage{msg: schema.AssistantMessage(in.Value, nil)})
		}
	} else {
		pending = collect(u.Nodes)
	}

	frames := make([]Frame, 0, len(pending))
	for _, p := range pending {
		if p.err != nil {
			m.logFrameError(ctx, p.err)
			frames = append(frames, ErrorFrame())
			continue
		}
		cm, err := messagex.FromEino(p.msg)
		if err != nil {
			m.logFrameError(ctx, err)
			frames = append(frames, ErrorFrame())
			continue
		}
		frames = append(frames, MessageFrame(cm.WithRunID(m.opts.RunID)))
	}
	return frames
}

func (m *Multiplexer) logFrameError(ctx context.Context, err error) {
	logx.FromContext(ctx).Error().Err(err).Str("run_id", m.opts.RunID).Msg("failed to build message frame")
}

// collect flattens one tick's node outputs into completed messages in
// order, merging fragments.
func collect(nodes []contractx.NodeUpdate) []pendingMessage {
	var (
		out []pendingMessage
		acc accumulator
	)

	flush := func() {
		if !acc.pending() {
			return
		}
		msg, err := acc.flush()
		out = append(out, pendingMessage{msg: msg, err: err})
	}

	for _, n := range nodes {
		items := n.Messages
		if n.Node == supervisorNode {
			items = lastAssistant(items)
		}
		for _, it := range items {
			switch {
			case it.Fragment != nil:
				acc.add(*it.Fragment)
			case it.Message != nil:
				flush()
				out = append(out, pendingMessage{msg: it.Message})
			}
		}
	}
	flush()
	return out
}

func lastAssistant(items []contractx.Item) []contractx.Item {
	for i := len(items) - 1; i >= 0; i-- {
		if msg := items[i].Message; msg != nil && msg.Role == schema.Assistant {
			return []contractx.Item{items[i]}
		}
	}
	return items
}
