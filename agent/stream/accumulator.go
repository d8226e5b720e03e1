package stream

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
)

type accState int

const (
	accEmpty accState = iota
	accAccumulating
)

const (
	fieldContent = "content"
	fieldName    = "name"
)

// accumulator merges (field, value) fragments of one message within a tick.
// Empty -> Accumulating on the first fragment; flush returns to Empty.
type accumulator struct {
	state  accState
	fields map[string]any
}

func (a *accumulator) add(f contractx.Fragment) {
	if a.state == accEmpty {
		a.fields = make(map[string]any)
		a.state = accAccumulating
	}
	a.fields[f.Field] = f.Value
}

func (a *accumulator) pending() bool {
	return a.state == accAccumulating
}

// flush builds an ai message from the merged fields and resets the
// accumulator. Unknown fields are dropped; content is required.
func (a *accumulator) flush() (*schema.Message, error) {
	if a.state == accEmpty {
		return nil, nil
	}
	fields := a.fields
	a.fields = nil
	a.state = accEmpty

	raw, ok := fields[fieldContent]
	if !ok {
		return nil, fmt.Errorf("%w: fragment message has no content field", contractx.ErrMalformedChunk)
	}
	content, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: fragment content is %T, not text", contractx.ErrMalformedChunk, raw)
	}

	msg := schema.AssistantMessage(content, nil)
	if name, ok := fields[fieldName].(string); ok {
		msg.Name = name
	}
	return msg, nil
}
