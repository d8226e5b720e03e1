package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	statex "github.com/mminh007/machine-translation/agent/state"
	streamx "github.com/mminh007/machine-translation/agent/stream"
	logx "github.com/mminh007/machine-translation/pkg/logger"
)

// Agents resolves agent keys to runtimes.
type Agents interface {
	Lookup(key string) (contractx.Runtime, error)
	Default() string
}

// Observer receives run and frame metrics.
type Observer interface {
	ObserveRun(agent, mode string, err error, elapsed time.Duration)
	ObserveFrame(frameType string)
}

type noopObserver struct{}

func (noopObserver) ObserveRun(string, string, error, time.Duration) {}
func (noopObserver) ObserveFrame(string)                            {}

// Service runs agents on behalf of the transport layer.
type Service struct {
	agents       Agents
	store        statex.Store
	defaultModel string
	locks        *threadLocks
	observer     Observer
	now          func() time.Time
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func NewService(agents Agents, store statex.Store, defaultModel string, opts ...Option) (*Service, error) {
	if agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if store == nil {
		return nil, errors.New("state store is required")
	}
	s := &Service{
		agents:       agents,
		store:        store,
		defaultModel: strings.TrimSpace(defaultModel),
		locks:        newThreadLocks(),
		observer:     noopObserver{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) DefaultModel() string {
	return s.defaultModel
}

func (s *Service) resolve(agentKey string) (string, contractx.Runtime, error) {
	if strings.TrimSpace(agentKey) == "" {
		agentKey = s.agents.Default()
	}
	rt, err := s.agents.Lookup(agentKey)
	if err != nil {
		return agentKey, nil, err
	}
	return agentKey, rt, nil
}

// Invoke runs one turn to completion and returns the agent's reply.
func (s *Service) Invoke(ctx context.Context, agentKey string, in contractx.UserInput) (reply messagex.ChatMessage, err error) {
	agentKey, rt, err := s.resolve(agentKey)
	if err != nil {
		return messagex.ChatMessage{}, err
	}
	in.ThreadID = ensureThreadID(in.ThreadID)

	unlock, err := s.locks.Lock(ctx, in.ThreadID)
	if err != nil {
		return messagex.ChatMessage{}, err
	}
	defer unlock()

	exec, rc, err := BuildRun(ctx, in, rt, s.defaultModel)
	if err != nil {
		return messagex.ChatMessage{}, err
	}

	logger := logx.FromContext(ctx).With().
		Str("agent_key", agentKey).
		Str("thread_id", rc.ThreadID()).
		Str("run_id", rc.RunID).
		Logger()
	ctx = logger.WithContext(ctx)

	start := s.now()
	defer func() {
		s.observer.ObserveRun(agentKey, "invoke", err, s.now().Sub(start))
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed, err := rt.Stream(runCtx, exec, rc)
	if err != nil {
		return messagex.ChatMessage{}, err
	}
	defer feed.Close()

	var (
		last contractx.Event
		seen bool
	)
	for {
		ev, rerr := feed.Recv()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return messagex.ChatMessage{}, rerr
		}
		last, seen = ev, true
	}
	if !seen {
		return messagex.ChatMessage{}, fmt.Errorf("%w: empty run", contractx.ErrUnexpectedResponse)
	}

	reply, err = replyFrom(last)
	if err != nil {
		return messagex.ChatMessage{}, err
	}
	logger.Info().Bool("resumed", exec.IsResume()).Msg("run completed")
	return reply.WithRunID(rc.RunID), nil
}

// replyFrom extracts the reply from the final event of a run: the first
// pending interrupt, or the last message of the final values.
func replyFrom(ev contractx.Event) (messagex.ChatMessage, error) {
	switch {
	case ev.Mode == contractx.ModeUpdates && ev.Updates != nil && len(ev.Updates.Interrupts) > 0:
		return messagex.AI(ev.Updates.Interrupts[0].Value), nil
	case ev.Mode == contractx.ModeValues && len(ev.Values) > 0:
		return messagex.FromEino(ev.Values[len(ev.Values)-1])
	default:
		return messagex.ChatMessage{}, fmt.Errorf("%w: run ended with %q", contractx.ErrUnexpectedResponse, ev.Mode)
	}
}

// Stream runs one turn and writes its frames to sink. Errors a client can
// fix are returned before anything is written; every later failure is
// reported in-band and the stream still ends with the terminal frame.
func (s *Service) Stream(ctx context.Context, agentKey string, in contractx.StreamInput, sink streamx.Sink) error {
	agentKey, rt, err := s.resolve(agentKey)
	if err != nil {
		return err
	}
	if _, err := NewRunContext(in.UserInput, s.defaultModel); err != nil {
		return err
	}
	in.ThreadID = ensureThreadID(in.ThreadID)

	unlock, err := s.locks.Lock(ctx, in.ThreadID)
	if err != nil {
		return err
	}
	defer unlock()

	logger := logx.FromContext(ctx).With().
		Str("agent_key", agentKey).
		Str("thread_id", in.ThreadID).
		Logger()
	ctx = logger.WithContext(ctx)

	start := s.now()
	exec, rc, err := BuildRun(ctx, in.UserInput, rt, s.defaultModel)
	if err != nil {
		return s.failInBand(ctx, agentKey, sink, err, start)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed, err := rt.Stream(runCtx, exec, rc)
	if err != nil {
		return s.failInBand(ctx, agentKey, sink, err, start)
	}

	mux := streamx.New(streamx.Options{
		RunID:        rc.RunID,
		StreamTokens: in.StreamTokens,
		OnFrame:      func(ft streamx.FrameType) { s.observer.ObserveFrame(string(ft)) },
	})
	runErr := mux.Run(runCtx, feed, sink)
	s.observer.ObserveRun(agentKey, "stream", runErr, s.now().Sub(start))

	if runErr != nil {
		logger.Warn().Err(runErr).Str("run_id", rc.RunID).Msg("stream ended early")
		return nil
	}
	logger.Info().Str("run_id", rc.RunID).Bool("resumed", exec.IsResume()).Msg("stream completed")
	return nil
}

func (s *Service) failInBand(ctx context.Context, agentKey string, sink streamx.Sink, err error, start time.Time) error {
	logx.FromContext(ctx).Error().Err(err).Msg("stream setup failed")
	s.observer.ObserveRun(agentKey, "stream", err, s.now().Sub(start))
	if werr := sink.WriteFrame(streamx.ErrorFrame()); werr == nil {
		s.observer.ObserveFrame(string(streamx.FrameError))
	}
	_ = sink.WriteDone()
	return nil
}

// History returns the thread's message log.
func (s *Service) History(ctx context.Context, threadID string) (messagex.History, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return messagex.History{}, contractx.ErrInvalidThread
	}

	th, err := s.store.Load(ctx, threadID)
	if errors.Is(err, statex.ErrThreadNotFound) {
		return messagex.History{}, fmt.Errorf("%w: %s", contractx.ErrHistoryNotFound, threadID)
	}
	if err != nil {
		return messagex.History{}, err
	}

	msgs := th.Messages
	if msgs == nil {
		msgs = []messagex.ChatMessage{}
	}
	return messagex.History{Messages: msgs}, nil
}

func ensureThreadID(threadID string) string {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return uuid.NewString()
	}
	return threadID
}
