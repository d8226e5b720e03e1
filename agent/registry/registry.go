package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	contractx "github.com/mminh007/machine-translation/agent/contract"
)

var ErrDuplicateAgent = errors.New("agent already registered")

type entry struct {
	info    contractx.AgentInfo
	runtime contractx.Runtime
}

// Registry maps agent keys to runtimes. It is filled once at startup and
// only read afterwards.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]entry
	order      []string
	defaultKey string
}

func New(defaultKey string) *Registry {
	return &Registry{
		entries:    make(map[string]entry),
		defaultKey: strings.TrimSpace(defaultKey),
	}
}

func (r *Registry) Register(key, description string, rt contractx.Runtime) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: agent key is empty", contractx.ErrValidation)
	}
	if rt == nil {
		return fmt.Errorf("%w: agent %s has no runtime", contractx.ErrValidation, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, key)
	}
	r.entries[key] = entry{
		info:    contractx.AgentInfo{Key: key, Description: description},
		runtime: rt,
	}
	r.order = append(r.order, key)
	return nil
}

func (r *Registry) Lookup(key string) (contractx.Runtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[strings.TrimSpace(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrAgentNotFound, key)
	}
	return e.runtime, nil
}

// List returns agent descriptors in registration order.
func (r *Registry) List() []contractx.AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contractx.AgentInfo, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key].info)
	}
	return out
}

func (r *Registry) Default() string {
	return r.defaultKey
}

// Validate reports whether the default agent is registered.
func (r *Registry) Validate() error {
	if _, err := r.Lookup(r.defaultKey); err != nil {
		return fmt.Errorf("default agent: %w", err)
	}
	return nil
}
