package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	ErrEmptyAudio   = errors.New("empty audio")
	ErrNotAvailable = errors.New("speech recognition is not configured")
)

// Transcriber turns an audio upload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

type Config struct {
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL string        `envconfig:"BASE_URL" split_words:"true"`
	Model   string        `envconfig:"MODEL" split_words:"true" default:"whisper-1"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	client *openai.Client
	model  string
}

var _ Transcriber = (*Whisper)(nil)

// New returns nil when no API key is configured.
func New(conf Config) *Whisper {
	client := NewClient(conf)
	if client == nil {
		return nil
	}
	m := strings.TrimSpace(conf.Model)
	if m == "" {
		m = openai.AudioModelWhisper1
	}
	return &Whisper{client: client, model: m}
}

func NewClient(conf Config) *openai.Client {
	if strings.TrimSpace(conf.APIKey) == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(conf.APIKey)),
	}
	if trimmed := strings.TrimRight(conf.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if conf.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(conf.Timeout))
	}

	client := openai.NewClient(opts...)
	return &client
}

func (w *Whisper) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if w == nil || w.client == nil {
		return "", ErrNotAvailable
	}
	if audio == nil {
		return "", ErrEmptyAudio
	}
	if strings.TrimSpace(filename) == "" {
		filename = "audio.wav"
	}

	res, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, contentType(filename)),
		Model: openai.AudioModel(w.model),
	})
	if err != nil {
		return "", fmt.Errorf("speech: transcribe: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}

func contentType(filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(strings.ToLower(filename), ".m4a"):
		return "audio/mp4"
	case strings.HasSuffix(strings.ToLower(filename), ".webm"):
		return "audio/webm"
	case strings.HasSuffix(strings.ToLower(filename), ".ogg"):
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}
