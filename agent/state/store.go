package state

import (
	"context"
	"errors"
	"strings"
	"sync"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrNilThread      = errors.New("thread is nil")
	ErrInvalidThread  = contractx.ErrInvalidThread
	ErrLogTruncated   = errors.New("thread log would shrink")
)

// Store is the persistence contract for thread state. Implementations must
// only ever grow the message log.
type Store interface {
	Load(ctx context.Context, threadID string) (*Thread, error)
	Save(ctx context.Context, t *Thread) error
	Delete(ctx context.Context, threadID string) error
}

// Messages returns the ordered log of a thread, or an empty log when the
// thread does not exist yet.
func Messages(ctx context.Context, store Store, threadID string) ([]messagex.ChatMessage, error) {
	t, err := store.Load(ctx, threadID)
	if errors.Is(err, ErrThreadNotFound) {
		return []messagex.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return t.Messages, nil
}

func validThreadID(threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	return nil
}

// MemoryStore keeps threads in process memory. Loaded threads are clones.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*Thread)}
}

func (s *MemoryStore) Load(ctx context.Context, threadID string) (*Thread, error) {
	if err := validThreadID(threadID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.threads[t.ThreadID]; ok && len(prev.Messages) > len(t.Messages) {
		return ErrLogTruncated
	}
	s.threads[t.ThreadID] = t.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	if err := validThreadID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}
