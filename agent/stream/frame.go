package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	messagex "github.com/mminh007/machine-translation/agent/message"
)

type FrameType string

const (
	FrameMessage FrameType = "message"
	FrameToken   FrameType = "token"
	FrameError   FrameType = "error"
)

const (
	// DoneSentinel is the payload of the terminal frame.
	DoneSentinel = "[DONE]"
	// InternalErrorText is the only error text clients ever see in-band.
	InternalErrorText = "Internal server error"
)

// Frame is one unit of the outbound event stream. Content is a ChatMessage
// for message frames and a string otherwise.
type Frame struct {
	Type    FrameType `json:"type"`
	Content any       `json:"content"`
}

func MessageFrame(m messagex.ChatMessage) Frame {
	return Frame{Type: FrameMessage, Content: m}
}

func TokenFrame(text string) Frame {
	return Frame{Type: FrameToken, Content: text}
}

func ErrorFrame() Frame {
	return Frame{Type: FrameError, Content: InternalErrorText}
}

// ErrFrameEncode marks a frame that could not be rendered. The client is
// still connected and the stream can go on.
var ErrFrameEncode = errors.New("frame encode failed")

var (
	dataPrefix = []byte("data: ")
	frameEnd   = []byte("\n\n")
	doneLine   = []byte("data: " + DoneSentinel + "\n\n")
)

// Encode renders f as one SSE data line.
func Encode(f Frame) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s frame: %w", ErrFrameEncode, f.Type, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(dataPrefix) + len(payload) + len(frameEnd))
	buf.Write(dataPrefix)
	buf.Write(payload)
	buf.Write(frameEnd)
	return buf.Bytes(), nil
}

// EncodeDone renders the terminal frame.
func EncodeDone() []byte {
	return append([]byte(nil), doneLine...)
}
