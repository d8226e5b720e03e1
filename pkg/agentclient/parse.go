package agentclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	messagex "github.com/mminh007/machine-translation/agent/message"
)

var (
	ErrParse    = errors.New("unparseable stream line")
	ErrProtocol = errors.New("stream protocol violation")
)

type ItemKind int

const (
	ItemSkip ItemKind = iota
	ItemMessage
	ItemToken
	ItemDone
)

// Item is one decoded stream line.
type Item struct {
	Kind    ItemKind
	Message messagex.ChatMessage
	Token   string
}

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

type wireFrame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// ParseLine decodes one SSE line. Error frames come back as ai messages
// prefixed with "Error: ".
func ParseLine(line string) (Item, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return Item{}, fmt.Errorf("%w: %q", ErrParse, line)
	}
	data := strings.TrimPrefix(line, dataPrefix)
	if data == doneSentinel {
		return Item{Kind: ItemDone}, nil
	}

	var f wireFrame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return Item{}, fmt.Errorf("%w: %q: %v", ErrParse, line, err)
	}

	switch f.Type {
	case "message":
		msg, err := decodeMessage(f.Content)
		if err != nil {
			return Item{}, fmt.Errorf("%w: %q: %v", ErrProtocol, line, err)
		}
		return Item{Kind: ItemMessage, Message: msg}, nil
	case "token":
		var text string
		if err := json.Unmarshal(f.Content, &text); err != nil {
			return Item{}, fmt.Errorf("%w: %q: %v", ErrProtocol, line, err)
		}
		if strings.TrimSpace(text) == "" {
			return Item{Kind: ItemSkip}, nil
		}
		return Item{Kind: ItemToken, Token: text}, nil
	case "error":
		var text string
		if err := json.Unmarshal(f.Content, &text); err != nil {
			return Item{}, fmt.Errorf("%w: %q: %v", ErrProtocol, line, err)
		}
		return Item{Kind: ItemMessage, Message: messagex.AI("Error: " + text)}, nil
	default:
		return Item{}, fmt.Errorf("%w: %q", ErrParse, line)
	}
}

func decodeMessage(raw json.RawMessage) (messagex.ChatMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var msg messagex.ChatMessage
	if err := dec.Decode(&msg); err != nil {
		return messagex.ChatMessage{}, err
	}
	if err := msg.Validate(); err != nil {
		return messagex.ChatMessage{}, err
	}
	return msg, nil
}
