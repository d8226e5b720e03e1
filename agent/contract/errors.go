package contract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfigConflict         = errors.New("agent_config contains reserved keys")
	ErrAgentNotFound          = errors.New("agent not found")
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	ErrMalformedChunk         = errors.New("malformed chunk")
	ErrStreamTransport        = errors.New("stream transport failure")
	ErrHistoryNotFound        = errors.New("history not found")
	ErrInvalidThread          = errors.New("thread id is invalid")
	ErrInvalidMessage         = errors.New("message is empty")
	ErrUnexpectedResponse     = errors.New("unexpected agent response")
	ErrModelInvoke            = errors.New("model invoke failed")
	ErrValidation             = errors.New("validation failed")
)

// ConfigConflictError names the agent_config keys that collide with reserved
// configurable keys.
type ConfigConflictError struct {
	Keys []string
}

func (e *ConfigConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigConflict.Error(), strings.Join(e.Keys, ", "))
}

func (e *ConfigConflictError) Unwrap() error {
	return ErrConfigConflict
}

type UnsupportedMessageTypeError struct {
	Kind string
}

func (e *UnsupportedMessageTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedMessageType.Error(), e.Kind)
}

func (e *UnsupportedMessageTypeError) Unwrap() error {
	return ErrUnsupportedMessageType
}
