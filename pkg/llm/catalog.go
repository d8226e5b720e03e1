package llm

import (
	"sort"
	"strings"
)

type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAzure      Provider = "azure"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderVLLM       Provider = "vllm"
	ProviderOpenRouter Provider = "openrouter"
)

// Spec maps a public model name to the provider and the model id sent on
// the wire.
type Spec struct {
	Name     string
	Provider Provider
	APIModel string
}

var builtinSpecs = []Spec{
	{Name: "gpt-4o-mini", Provider: ProviderOpenAI, APIModel: "gpt-4o-mini"},
	{Name: "gpt-4o", Provider: ProviderOpenAI, APIModel: "gpt-4o"},
	{Name: "azure-gpt-4o-mini", Provider: ProviderAzure, APIModel: "gpt-4o-mini"},
	{Name: "azure-gpt-4o", Provider: ProviderAzure, APIModel: "gpt-4o"},
	{Name: "deepseek-chat", Provider: ProviderDeepSeek, APIModel: "deepseek-chat"},
	{Name: "mistral-7b", Provider: ProviderVLLM, APIModel: "mistral-7b"},
	{Name: "llama-3-8b", Provider: ProviderVLLM, APIModel: "llama-3-8b"},
	{Name: "llama-3-34b", Provider: ProviderVLLM, APIModel: "llama-3-34b"},
	{Name: "llama-32-3B-instruct", Provider: ProviderVLLM, APIModel: "llama-32-3B-instruct"},
	{Name: "llama-32-1B-instruct", Provider: ProviderVLLM, APIModel: "llama-32-1B-instruct"},
}

// Catalog is the set of model names this process can serve.
type Catalog struct {
	specs map[string]Spec
}

// NewCatalog keeps the built-in models whose provider is configured and adds
// the OpenRouter models listed in the config.
func NewCatalog(conf Config) *Catalog {
	c := &Catalog{specs: make(map[string]Spec)}
	for _, s := range builtinSpecs {
		if !conf.configured(s.Provider) {
			continue
		}
		if s.Provider == ProviderAzure {
			deployment := strings.TrimSpace(conf.AzureDeployments[s.APIModel])
			if deployment == "" {
				continue
			}
			s.APIModel = deployment
		}
		c.specs[s.Name] = s
	}
	if conf.configured(ProviderOpenRouter) {
		for _, m := range conf.OpenRouterModels {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			c.specs[m] = Spec{Name: m, Provider: ProviderOpenRouter, APIModel: m}
		}
	}
	return c
}

func (c *Catalog) Lookup(name string) (Spec, bool) {
	s, ok := c.specs[strings.TrimSpace(name)]
	return s, ok
}

// Names returns the served model names in lexical order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.specs))
	for name := range c.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Config) configured(p Provider) bool {
	switch p {
	case ProviderOpenAI:
		return strings.TrimSpace(c.OpenAIAPIKey) != ""
	case ProviderAzure:
		return strings.TrimSpace(c.AzureAPIKey) != "" && strings.TrimSpace(c.AzureEndpoint) != ""
	case ProviderDeepSeek:
		return strings.TrimSpace(c.DeepSeekAPIKey) != ""
	case ProviderVLLM:
		return strings.TrimSpace(c.VLLMBaseURL) != ""
	case ProviderOpenRouter:
		return strings.TrimSpace(c.OpenRouterAPIKey) != ""
	}
	return false
}
