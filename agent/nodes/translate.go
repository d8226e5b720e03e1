package nodes

import (
	"context"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	promptx "github.com/mminh007/machine-translation/agent/prompt"
)

const (
	ConfigKeyTargetLanguage = "target_language"

	NodeAskLanguage = "ask_language"
	NodeTranslate   = "translate"

	AskLanguagePrompt = "Which language should I translate your text into?"

	payloadKeyText = "text"
)

var translatePrompt = einoprompt.FromMessages(
	schema.FString,
	schema.SystemMessage(promptx.LoadPromptSet().Translator),
	schema.UserMessage("{text}"),
)

// PrepareTranslation settles the source text and target language, either
// from an answered language question or from the latest human message.
func PrepareTranslation(ctx context.Context, in *TurnState) (*TurnState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: turn thread is nil", contractx.ErrValidation)
	}

	if in.Resumed != nil && in.Resumed.Node == NodeAskLanguage {
		in.SourceText, _ = in.Resumed.Payload[payloadKeyText].(string)
		in.TargetLanguage = strings.TrimSpace(in.Input.Resume)
		return in, nil
	}

	in.SourceText = lastHumanText(in.Thread.Messages)
	if lang, ok := in.Config[ConfigKeyTargetLanguage].(string); ok {
		in.TargetLanguage = strings.TrimSpace(lang)
	}
	return in, nil
}

// RouteTranslation picks the next node after PrepareTranslation.
func RouteTranslation(_ context.Context, in *TurnState) (string, error) {
	if in.TargetLanguage == "" {
		return NodeAskLanguage, nil
	}
	return NodeTranslate, nil
}

// AskLanguage parks the thread until the user names a target language.
func AskLanguage(ctx context.Context, in *TurnState) (*TurnState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: turn thread is nil", contractx.ErrValidation)
	}

	interrupt := contractx.Interrupt{
		Value:   AskLanguagePrompt,
		Node:    NodeAskLanguage,
		Payload: map[string]any{payloadKeyText: in.SourceText},
	}
	if err := in.Thread.Interrupt(interrupt, in.Now); err != nil {
		return nil, err
	}
	in.Interrupt = &interrupt
	return in, nil
}

// Translate streams the translation of the source text.
func Translate(ctx context.Context, in *TurnState, models ModelSource) (*TurnState, error) {
	if in == nil || in.Thread == nil {
		return nil, fmt.Errorf("%w: turn thread is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.SourceText) == "" {
		return nil, fmt.Errorf("%w: nothing to translate", contractx.ErrInvalidMessage)
	}

	input, err := translatePrompt.Format(ctx, map[string]any{
		"language": in.TargetLanguage,
		"text":     in.SourceText,
	})
	if err != nil {
		return nil, fmt.Errorf("format translate prompt: %w", err)
	}

	chatModel, err := models.ChatModel(ctx, in.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}

	reply, err := StreamReply(ctx, in, chatModel, NodeTranslate, input)
	if err != nil {
		return nil, err
	}
	in.Reply = reply
	in.record(NodeTranslate, reply)
	return in, nil
}

func lastHumanText(msgs []messagex.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == messagex.TypeHuman {
			return msgs[i].Content
		}
	}
	return ""
}
