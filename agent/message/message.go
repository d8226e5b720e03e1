package message

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
)

type Type string

const (
	TypeHuman  Type = "human"
	TypeAI     Type = "ai"
	TypeTool   Type = "tool"
	TypeSystem Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeHuman, TypeAI, TypeTool, TypeSystem:
		return true
	}
	return false
}

// ChatMessage is the client-facing message shape. Values are never mutated
// after they are emitted.
type ChatMessage struct {
	Type    Type   `json:"type"`
	Content string `json:"content"`
	RunID   string `json:"run_id,omitempty"`
}

func Human(content string) ChatMessage {
	return ChatMessage{Type: TypeHuman, Content: content}
}

func AI(content string) ChatMessage {
	return ChatMessage{Type: TypeAI, Content: content}
}

// WithRunID returns a copy stamped with runID.
func (m ChatMessage) WithRunID(runID string) ChatMessage {
	m.RunID = runID
	return m
}

func (m ChatMessage) Validate() error {
	if !m.Type.Valid() {
		return &contractx.UnsupportedMessageTypeError{Kind: string(m.Type)}
	}
	return nil
}

// FromEino converts a runtime message into a ChatMessage. The conversion is
// total over user, assistant, tool and system roles.
func FromEino(msg *schema.Message) (ChatMessage, error) {
	if msg == nil {
		return ChatMessage{}, fmt.Errorf("%w: nil message", contractx.ErrUnsupportedMessageType)
	}

	content := ContentText(msg)
	switch msg.Role {
	case schema.User:
		return ChatMessage{Type: TypeHuman, Content: content}, nil
	case schema.Assistant:
		return ChatMessage{Type: TypeAI, Content: content}, nil
	case schema.Tool:
		return ChatMessage{Type: TypeTool, Content: content}, nil
	case schema.System:
		return ChatMessage{Type: TypeSystem, Content: content}, nil
	default:
		return ChatMessage{}, &contractx.UnsupportedMessageTypeError{Kind: string(msg.Role)}
	}
}

// ToEino is the inverse of FromEino, used to replay a thread log to a model.
func ToEino(m ChatMessage) (*schema.Message, error) {
	switch m.Type {
	case TypeHuman:
		return schema.UserMessage(m.Content), nil
	case TypeAI:
		return schema.AssistantMessage(m.Content, nil), nil
	case TypeTool:
		return &schema.Message{Role: schema.Tool, Content: m.Content}, nil
	case TypeSystem:
		return schema.SystemMessage(m.Content), nil
	default:
		return nil, &contractx.UnsupportedMessageTypeError{Kind: string(m.Type)}
	}
}

func ToEinoAll(msgs []ChatMessage) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		em, err := ToEino(m)
		if err != nil {
			return nil, err
		}
		out = append(out, em)
	}
	return out, nil
}

// ContentText flattens multi-part content down to its text parts.
func ContentText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Content != "" || len(msg.MultiContent) == 0 {
		return msg.Content
	}

	var b strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// History is an ordered thread log as returned to clients.
type History struct {
	Messages []ChatMessage `json:"messages"`
}
