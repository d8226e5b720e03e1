package message

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEinoCoversAllKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   *schema.Message
		want Type
	}{
		{schema.UserMessage("hi"), TypeHuman},
		{schema.AssistantMessage("hello", nil), TypeAI},
		{&schema.Message{Role: schema.Tool, Content: "42"}, TypeTool},
		{schema.SystemMessage("be brief"), TypeSystem},
	}

	for _, tc := range cases {
		got, err := FromEino(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Type)
		assert.Equal(t, tc.in.Content, got.Content)
		assert.Empty(t, got.RunID)
	}
}

func TestFromEinoUnsupportedRole(t *testing.T) {
	t.Parallel()

	_, err := FromEino(&schema.Message{Role: "custom", Content: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contractx.ErrUnsupportedMessageType))

	var typed *contractx.UnsupportedMessageTypeError
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "custom", typed.Kind)

	_, err = FromEino(nil)
	assert.ErrorIs(t, err, contractx.ErrUnsupportedMessageType)
}

func TestContentTextFlattensParts(t *testing.T) {
	t.Parallel()

	msg := &schema.Message{
		Role: schema.Assistant,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "Hello, "},
			{Type: schema.ChatMessagePartTypeImageURL},
			{Type: schema.ChatMessagePartTypeText, Text: "world"},
		},
	}
	assert.Equal(t, "Hello, world", ContentText(msg))

	got, err := FromEino(msg)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got.Content)
}

func TestChatMessageJSONRoundTrip(t *testing.T) {
	t.Parallel()

	for _, in := range []ChatMessage{
		{Type: TypeHuman, Content: "hello"},
		{Type: TypeAI, Content: "héllo \"quoted\"\n", RunID: "847c6285-8fc9-4560-a83f-4e6285809254"},
		{Type: TypeTool, Content: ""},
		{Type: TypeSystem, Content: "sys", RunID: "r"},
	} {
		raw, err := json.Marshal(in)
		require.NoError(t, err)

		var out ChatMessage
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, in, out)
	}
}

func TestToEinoRoundTrip(t *testing.T) {
	t.Parallel()

	log := []ChatMessage{Human("a"), AI("b"), {Type: TypeTool, Content: "c"}, {Type: TypeSystem, Content: "d"}}
	msgs, err := ToEinoAll(log)
	require.NoError(t, err)
	require.Len(t, msgs, len(log))

	for i, m := range msgs {
		back, err := FromEino(m)
		require.NoError(t, err)
		assert.Equal(t, log[i], back)
	}

	_, err = ToEino(ChatMessage{Type: "custom"})
	assert.ErrorIs(t, err, contractx.ErrUnsupportedMessageType)
}

func TestWithRunIDCopies(t *testing.T) {
	t.Parallel()

	base := AI("x")
	stamped := base.WithRunID("run-1")
	assert.Empty(t, base.RunID)
	assert.Equal(t, "run-1", stamped.RunID)
}
