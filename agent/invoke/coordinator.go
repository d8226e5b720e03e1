package invoke

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	contractx "github.com/mminh007/machine-translation/agent/contract"
)

// BuildRun decides how the runtime should handle one user message. It reads
// the thread's state but never mutates it or starts execution.
func BuildRun(
	ctx context.Context,
	in contractx.UserInput,
	rt contractx.Runtime,
	defaultModel string,
) (contractx.ExecutionInput, contractx.RunContext, error) {
	rc, err := NewRunContext(in, defaultModel)
	if err != nil {
		return contractx.ExecutionInput{}, contractx.RunContext{}, err
	}

	st, err := rt.State(ctx, rc.ThreadID())
	if err != nil {
		return contractx.ExecutionInput{}, contractx.RunContext{}, fmt.Errorf("read thread state: %w", err)
	}

	if st.Interrupted() {
		return contractx.Resume(in.Message), rc, nil
	}
	return contractx.NewTurn(schema.UserMessage(in.Message)), rc, nil
}

// NewRunContext assigns a fresh run id and merges agent_config over the
// reserved keys. Any collision is a ConfigConflictError.
func NewRunContext(in contractx.UserInput, defaultModel string) (contractx.RunContext, error) {
	modelName := strings.TrimSpace(in.Model)
	if modelName == "" {
		modelName = defaultModel
	}
	threadID := strings.TrimSpace(in.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	configurable := map[string]any{
		contractx.ConfigKeyModel:    modelName,
		contractx.ConfigKeyThreadID: threadID,
	}

	var conflicts []string
	for k := range in.AgentConfig {
		if _, reserved := configurable[k]; reserved {
			conflicts = append(conflicts, k)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return contractx.RunContext{}, &contractx.ConfigConflictError{Keys: conflicts}
	}
	for k, v := range in.AgentConfig {
		configurable[k] = v
	}

	return contractx.RunContext{
		RunID:        uuid.NewString(),
		UserID:       strings.TrimSpace(in.UserID),
		Configurable: configurable,
	}, nil
}
