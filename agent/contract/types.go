package contract

import (
	"encoding/json"
)

const (
	ConfigKeyModel    = "model"
	ConfigKeyThreadID = "thread_id"
)

// ReservedConfigKeys may not be set through agent_config.
var ReservedConfigKeys = []string{ConfigKeyModel, ConfigKeyThreadID}

type UserInput struct {
	Message     string         `json:"message"`
	ThreadID    string         `json:"thread_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Model       string         `json:"model,omitempty"`
	AgentConfig map[string]any `json:"agent_config"`
}

type StreamInput struct {
	UserInput
	StreamTokens bool `json:"stream_tokens"`
}

// UnmarshalJSON defaults stream_tokens to true when the field is absent.
func (s *StreamInput) UnmarshalJSON(data []byte) error {
	type alias struct {
		UserInput
		StreamTokens *bool `json:"stream_tokens"`
	}
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.UserInput = raw.UserInput
	s.StreamTokens = raw.StreamTokens == nil || *raw.StreamTokens
	return nil
}

type AgentInfo struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

type ChatHistoryInput struct {
	ThreadID string `json:"thread_id"`
}

// RunContext is the execution context of one run.
type RunContext struct {
	RunID        string
	UserID       string
	Configurable map[string]any
}

func (rc RunContext) ThreadID() string {
	v, _ := rc.Configurable[ConfigKeyThreadID].(string)
	return v
}

func (rc RunContext) Model() string {
	v, _ := rc.Configurable[ConfigKeyModel].(string)
	return v
}

// String returns a configurable string value, or "" when absent or not a string.
func (rc RunContext) String(key string) string {
	v, _ := rc.Configurable[key].(string)
	return v
}

// ServiceInfo describes the agents and models a server offers.
type ServiceInfo struct {
	Agents       []AgentInfo `json:"agents"`
	DefaultAgent string      `json:"default_agent"`
	DefaultModel string      `json:"default_model"`
	Models       []string    `json:"models"`
}
