package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/chatbot.txt
	chatbotRaw string

	//go:embed template/translator.txt
	translatorRaw string
)

// PromptSet holds the system prompts shipped with the binary.
type PromptSet struct {
	Chatbot string
	// Translator is an FString template over {language}.
	Translator string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Chatbot:    strings.TrimSpace(chatbotRaw),
		Translator: strings.TrimSpace(translatorRaw),
	}
}
