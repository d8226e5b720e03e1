// Command chat is a terminal client for the agent service.
//
// Usage:
//
//	chat ask "Translate this to French" --agent translator
//	chat repl --thread my-thread
//	chat history my-thread
//	chat transcribe clip.wav
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mminh007/machine-translation/pkg/agentclient"
	_ "github.com/mminh007/machine-translation/pkg/logger/autoload"
)

type CLI struct {
	Ask        AskCmd        `cmd:"" help:"Send one message and print the reply."`
	Repl       ReplCmd       `cmd:"" help:"Chat interactively on one thread."`
	History    HistoryCmd    `cmd:"" help:"Print a thread's messages."`
	Info       InfoCmd       `cmd:"" help:"List agents and models."`
	Transcribe TranscribeCmd `cmd:"" help:"Transcribe an audio file."`

	URL     string        `help:"Agent service base URL." env:"AGENT_URL" default:"http://localhost:8000"`
	Agent   string        `short:"a" help:"Agent key; empty uses the server default." env:"AGENT_KEY"`
	Timeout time.Duration `help:"Request timeout." default:"60s"`
}

func (c *CLI) client() *agentclient.Client {
	return agentclient.New(c.URL,
		agentclient.WithAgent(c.Agent),
		agentclient.WithHTTPClient(newHTTPClient(c.Timeout)),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("chat"),
		kong.Description("Terminal client for the machine translation agent service."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli))
}
