package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mminh007/machine-translation/agent/agents/chatbot"
	"github.com/mminh007/machine-translation/agent/agents/translator"
	invokex "github.com/mminh007/machine-translation/agent/invoke"
	registryx "github.com/mminh007/machine-translation/agent/registry"
	statex "github.com/mminh007/machine-translation/agent/state"
	"github.com/mminh007/machine-translation/api"
	configx "github.com/mminh007/machine-translation/pkg/config"
	llmx "github.com/mminh007/machine-translation/pkg/llm"
	logx "github.com/mminh007/machine-translation/pkg/logger"
	_ "github.com/mminh007/machine-translation/pkg/logger/autoload"
	metricsx "github.com/mminh007/machine-translation/pkg/metrics"
	speechx "github.com/mminh007/machine-translation/pkg/speech"
	"golang.org/x/sync/errgroup"
)

type AppConfig struct {
	DefaultAgent string `envconfig:"DEFAULT_AGENT" split_words:"true" default:"chatbot"`
}

func main() {
	if err := run(); err != nil {
		logger := logx.Component("main")
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	logger := logx.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	httpCfg := configx.MustNew[api.Config]("HTTP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	speechCfg := configx.MustNew[speechx.Config]("SPEECH")
	stateCfg := configx.MustNew[statex.BackendConfig]("STATE")
	backends := statex.Backends{
		Redis:    *configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"),
		Postgres: *configx.MustNew[statex.PostgresConfig]("POSTGRES"),
		SQLite:   *configx.MustNew[statex.SQLiteConfig]("SQLITE"),
	}

	store, closeStore, err := statex.Open(ctx, stateCfg.Backend, backends)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn().Err(err).Msg("close state store")
		}
	}()

	models := llmx.NewFactory(*llmCfg)
	if len(models.Models()) == 0 {
		logger.Warn().Msg("no LLM provider configured; runs will fail until one is")
	}

	bot, err := chatbot.New(store, models)
	if err != nil {
		return err
	}
	tr, err := translator.New(store, models)
	if err != nil {
		return err
	}

	agents := registryx.New(appCfg.DefaultAgent)
	if err := agents.Register(chatbot.Key, chatbot.Description, bot); err != nil {
		return err
	}
	if err := agents.Register(translator.Key, translator.Description, tr); err != nil {
		return err
	}
	if err := agents.Validate(); err != nil {
		return err
	}

	metrics := metricsx.New()
	svc, err := invokex.NewService(agents, store, models.DefaultModel(), invokex.WithObserver(metrics))
	if err != nil {
		return err
	}

	deps := api.Deps{
		Service: svc,
		Agents:  agents,
		Models:  models,
		Metrics: metrics,
	}
	if w := speechx.New(*speechCfg); w != nil {
		deps.Speech = w
	}

	server, err := api.New(*httpCfg, deps)
	if err != nil {
		return err
	}
	httpServer := server.HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", httpCfg.Addr).
			Str("state_backend", stateCfg.Backend).
			Strs("models", models.Models()).
			Bool("speech", deps.Speech != nil).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
