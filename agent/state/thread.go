package state

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
)

var (
	ErrNilPending        = errors.New("interrupt is nil")
	ErrNotInterrupted    = errors.New("thread has no pending interrupt")
	ErrInvalidTransition = errors.New("invalid thread transition")
)

// Thread is the persisted state of one conversation.
// - Messages is append-only.
// - Status and Pending move together: interrupted <=> Pending != nil.
type Thread struct {
	ThreadID string                 `json:"thread_id"`
	UserID   string                 `json:"user_id,omitempty"`
	Messages []messagex.ChatMessage `json:"messages"`

	Status  contractx.ThreadStatus `json:"status"`
	Pending *contractx.Interrupt   `json:"pending,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewThread(threadID, userID string, now time.Time) *Thread {
	return &Thread{
		ThreadID:  threadID,
		UserID:    userID,
		Status:    contractx.ThreadRunning,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (t *Thread) Touch(now time.Time) {
	t.UpdatedAt = now.UTC()
}

func (t *Thread) Append(msgs ...messagex.ChatMessage) {
	t.Messages = append(t.Messages, msgs...)
}

// Interrupt parks the thread until the next message answers it.
func (t *Thread) Interrupt(i contractx.Interrupt, now time.Time) error {
	if t == nil {
		return errors.New("nil thread")
	}
	if t.Status == contractx.ThreadInterrupted {
		return fmt.Errorf("%w: thread %s is already interrupted", ErrInvalidTransition, t.ThreadID)
	}
	t.Status = contractx.ThreadInterrupted
	t.Pending = &i
	t.Touch(now)
	return nil
}

// ResumeWith clears the pending interrupt and returns it.
func (t *Thread) ResumeWith(now time.Time) (*contractx.Interrupt, error) {
	if t == nil || t.Pending == nil {
		return nil, ErrNotInterrupted
	}
	pending := t.Pending
	t.Pending = nil
	t.Status = contractx.ThreadRunning
	t.Touch(now)
	return pending, nil
}

func (t *Thread) Snapshot() contractx.ThreadState {
	if t == nil {
		return contractx.ThreadState{Status: contractx.ThreadRunning}
	}
	st := contractx.ThreadState{ThreadID: t.ThreadID, Status: t.Status}
	if t.Pending != nil {
		p := *t.Pending
		st.Pending = &p
	}
	return st
}

func (t *Thread) Validate() error {
	if t.ThreadID == "" {
		return ErrInvalidThread
	}
	switch t.Status {
	case contractx.ThreadRunning:
		if t.Pending != nil {
			return fmt.Errorf("%w: running thread %s has a pending interrupt", ErrInvalidTransition, t.ThreadID)
		}
	case contractx.ThreadInterrupted:
		if t.Pending == nil {
			return fmt.Errorf("%w: interrupted thread %s has no pending interrupt", ErrInvalidTransition, t.ThreadID)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, t.Status)
	}
	for i, m := range t.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share the stored slice.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	c := *t
	c.Messages = append([]messagex.ChatMessage(nil), t.Messages...)
	if t.Pending != nil {
		p := *t.Pending
		if t.Pending.Payload != nil {
			p.Payload = make(map[string]any, len(t.Pending.Payload))
			for k, v := range t.Pending.Payload {
				p.Payload[k] = v
			}
		}
		c.Pending = &p
	}
	return &c
}
