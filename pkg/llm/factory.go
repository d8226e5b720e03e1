package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
)

var ErrUnknownModel = errors.New("unknown model")

// Builder turns a resolved model config into a chat model.
type Builder func(ctx context.Context, conf *openaimodel.ChatModelConfig) (model.ToolCallingChatModel, error)

func defaultBuilder(ctx context.Context, conf *openaimodel.ChatModelConfig) (model.ToolCallingChatModel, error) {
	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Factory builds chat models by public name and caches one instance per
// name for the life of the process.
type Factory struct {
	conf    Config
	catalog *Catalog
	build   Builder

	mu     sync.Mutex
	models map[string]model.ToolCallingChatModel
}

type Option func(*Factory)

func WithBuilder(b Builder) Option {
	return func(f *Factory) {
		if b != nil {
			f.build = b
		}
	}
}

func NewFactory(conf Config, opts ...Option) *Factory {
	f := &Factory{
		conf:    conf,
		catalog: NewCatalog(conf),
		build:   defaultBuilder,
		models:  make(map[string]model.ToolCallingChatModel),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) DefaultModel() string {
	return strings.TrimSpace(f.conf.DefaultModel)
}

func (f *Factory) Models() []string {
	return f.catalog.Names()
}

// ChatModel returns the cached model for name, building it on first use.
func (f *Factory) ChatModel(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.DefaultModel()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.models[name]; ok {
		return m, nil
	}

	spec, ok := f.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	m, err := f.build(ctx, f.modelConfig(spec))
	if err != nil {
		return nil, fmt.Errorf("llm: create chat model %s: %w", name, err)
	}

	log.Debug().Str("component", "llm").Str("model", name).Str("provider", string(spec.Provider)).Msg("chat model created")
	f.models[name] = m
	return m, nil
}

func (f *Factory) modelConfig(spec Spec) *openaimodel.ChatModelConfig {
	temp := f.conf.Temperature
	conf := &openaimodel.ChatModelConfig{
		Model:       spec.APIModel,
		MaxTokens:   f.conf.MaxTokens,
		Temperature: &temp,
		Timeout:     f.conf.Timeout,
	}

	switch spec.Provider {
	case ProviderOpenAI:
		conf.APIKey = strings.TrimSpace(f.conf.OpenAIAPIKey)
		conf.BaseURL = strings.TrimRight(strings.TrimSpace(f.conf.OpenAIBaseURL), "/")
	case ProviderAzure:
		conf.ByAzure = true
		conf.APIKey = strings.TrimSpace(f.conf.AzureAPIKey)
		conf.BaseURL = strings.TrimRight(strings.TrimSpace(f.conf.AzureEndpoint), "/")
		conf.APIVersion = f.conf.AzureAPIVersion
	case ProviderDeepSeek:
		conf.APIKey = strings.TrimSpace(f.conf.DeepSeekAPIKey)
		conf.BaseURL = strings.TrimRight(f.conf.DeepSeekBaseURL, "/")
	case ProviderVLLM:
		conf.APIKey = strings.TrimSpace(f.conf.VLLMAPIKey)
		conf.BaseURL = strings.TrimRight(f.conf.VLLMBaseURL, "/")
	case ProviderOpenRouter:
		conf.APIKey = strings.TrimSpace(f.conf.OpenRouterAPIKey)
		conf.BaseURL = strings.TrimRight(f.conf.OpenRouterBaseURL, "/")
		if headers := f.openRouterHeaders(); len(headers) > 0 {
			conf.HTTPClient = &http.Client{
				Timeout:   f.conf.Timeout,
				Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
			}
		}
		if reasoningExcluded[spec.APIModel] {
			conf.ExtraFields = map[string]any{
				"reasoning": map[string]any{
					"exclude": true,
					"effort":  "none",
				},
			}
		}
	}

	return conf
}

// reasoningExcluded lists OpenRouter models that must be asked not to
// return reasoning tokens.
var reasoningExcluded = map[string]bool{
	"x-ai/grok-4.1-fast": true,
}

func (f *Factory) openRouterHeaders() map[string]string {
	headers := map[string]string{}
	if v := strings.TrimSpace(f.conf.SiteURL); v != "" {
		headers["HTTP-Referer"] = v
	}
	if v := strings.TrimSpace(f.conf.SiteName); v != "" {
		headers["X-Title"] = v
	}
	return headers
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
