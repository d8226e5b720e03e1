package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	invokex "github.com/mminh007/machine-translation/agent/invoke"
	metricsx "github.com/mminh007/machine-translation/pkg/metrics"
	speechx "github.com/mminh007/machine-translation/pkg/speech"
)

type Config struct {
	Addr              string        `envconfig:"ADDR" default:":8000"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" split_words:"true" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"15s"`
	MaxBodyBytes      int64         `envconfig:"MAX_BODY_BYTES" split_words:"true" default:"1048576"`
	MaxAudioBytes     int64         `envconfig:"MAX_AUDIO_BYTES" split_words:"true" default:"26214400"`
}

// AgentLister is the read side of the agent registry.
type AgentLister interface {
	List() []contractx.AgentInfo
	Default() string
}

// ModelLister reports the chat models the process can serve.
type ModelLister interface {
	Models() []string
	DefaultModel() string
}

type Deps struct {
	Service *invokex.Service
	Agents  AgentLister
	Models  ModelLister
	Speech  speechx.Transcriber
	Metrics *metricsx.Metrics
}

type Server struct {
	conf Config
	deps Deps
}

func New(conf Config, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("invoke service is required")
	}
	if deps.Agents == nil {
		return nil, errors.New("agent lister is required")
	}
	return &Server{conf: conf, deps: deps}, nil
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.conf.MaxBodyBytes))
	r.Use(metricsMiddleware(s.deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/info", s.handleInfo)
	if s.deps.Metrics != nil {
		r.Get("/metrics", s.deps.Metrics.Handler().ServeHTTP)
	}

	r.Route("/chat", func(r chi.Router) {
		r.Post("/invoke", s.handleInvoke)
		r.Post("/stream", s.handleStream)
		r.Post("/history", s.handleHistory)
	})
	r.Post("/history", s.handleHistory)

	r.Post("/speech2text/audio", s.handleSpeech)

	return r
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.conf.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.conf.ReadHeaderTimeout,
	}
}
