package llm

import (
	"fmt"
	"strings"
	"time"
)

// Config is loaded with the LLM prefix. Providers without credentials are
// left out of the catalog.
type Config struct {
	DefaultModel string        `envconfig:"DEFAULT_MODEL" split_words:"true" default:"gpt-4o-mini"`
	Temperature  float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	MaxTokens    *int          `envconfig:"MAX_TOKENS" split_words:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" split_words:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" split_words:"true"`

	AzureAPIKey      string            `envconfig:"AZURE_API_KEY" split_words:"true"`
	AzureEndpoint    string            `envconfig:"AZURE_ENDPOINT" split_words:"true"`
	AzureAPIVersion  string            `envconfig:"AZURE_API_VERSION" split_words:"true" default:"2024-02-15-preview"`
	AzureDeployments map[string]string `envconfig:"AZURE_DEPLOYMENTS" split_words:"true"`

	DeepSeekAPIKey  string `envconfig:"DEEPSEEK_API_KEY" split_words:"true"`
	DeepSeekBaseURL string `envconfig:"DEEPSEEK_BASE_URL" split_words:"true" default:"https://api.deepseek.com"`

	VLLMAPIKey  string `envconfig:"VLLM_API_KEY" split_words:"true"`
	VLLMBaseURL string `envconfig:"VLLM_BASE_URL" split_words:"true" default:"http://vllm:8001/v1"`

	OpenRouterAPIKey  string   `envconfig:"OPENROUTER_API_KEY" split_words:"true"`
	OpenRouterBaseURL string   `envconfig:"OPENROUTER_BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	OpenRouterModels  []string `envconfig:"OPENROUTER_MODELS" split_words:"true"`
	SiteURL           string   `envconfig:"SITE_URL" split_words:"true"`
	SiteName          string   `envconfig:"SITE_NAME" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DefaultModel) == "" {
		return fmt.Errorf("default model is required")
	}
	if strings.TrimSpace(c.AzureAPIKey) != "" && strings.TrimSpace(c.AzureEndpoint) == "" {
		return fmt.Errorf("azure endpoint is required when an azure api key is set")
	}
	return nil
}
