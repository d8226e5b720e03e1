package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
	"github.com/mminh007/machine-translation/pkg/agentclient"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	// Streams are bounded by the context, not a client timeout.
	return &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: timeout}}
}

type TurnFlags struct {
	Thread   string `short:"t" help:"Thread id; empty starts a new thread."`
	Model    string `short:"m" help:"Model name; empty uses the server default."`
	UserID   string `name:"user" help:"User id sent with each message."`
	NoStream bool   `help:"Use the blocking invoke endpoint."`
	NoTokens bool   `help:"Stream whole messages only."`
	Target   string `help:"Target language passed to the translator agent."`
}

func (f TurnFlags) input(message string) contractx.UserInput {
	in := contractx.UserInput{
		Message:  message,
		ThreadID: f.Thread,
		UserID:   f.UserID,
		Model:    f.Model,
	}
	if f.Target != "" {
		in.AgentConfig = map[string]any{"target_language": f.Target}
	}
	return in
}

// ensureThread fills in a fresh thread id and reports whether it did.
func (f *TurnFlags) ensureThread() bool {
	if strings.TrimSpace(f.Thread) != "" {
		return false
	}
	f.Thread = uuid.NewString()
	return true
}

// turn sends one message and writes the reply to out.
func turn(ctx context.Context, c *agentclient.Client, f TurnFlags, message string, out io.Writer) error {
	in := f.input(message)
	if f.NoStream {
		reply, err := c.Invoke(ctx, in)
		if err != nil {
			return err
		}
		printMessage(out, reply)
		return nil
	}

	stream, err := c.Stream(ctx, contractx.StreamInput{UserInput: in, StreamTokens: !f.NoTokens})
	if err != nil {
		return err
	}
	defer stream.Close()

	streamed := false
	for {
		item, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch item.Kind {
		case agentclient.ItemToken:
			streamed = true
			fmt.Fprint(out, item.Token)
		case agentclient.ItemMessage:
			if streamed && item.Message.Type == messagex.TypeAI {
				fmt.Fprintln(out)
				streamed = false
				continue
			}
			printMessage(out, item.Message)
		}
	}
}

func printMessage(out io.Writer, m messagex.ChatMessage) {
	fmt.Fprintf(out, "[%s] %s\n", m.Type, m.Content)
}

type AskCmd struct {
	TurnFlags
	Message string `arg:"" help:"Message to send."`
}

func (c *AskCmd) Run(ctx context.Context, cli *CLI) error {
	// The server does not report the thread it creates, so name it here
	// to let a follow-up ask answer an interrupt.
	if c.ensureThread() {
		fmt.Fprintf(os.Stderr, "thread %s\n", c.Thread)
	}
	return turn(ctx, cli.client(), c.TurnFlags, c.Message, os.Stdout)
}

type ReplCmd struct {
	TurnFlags
}

func (c *ReplCmd) Run(ctx context.Context, cli *CLI) error {
	c.ensureThread()
	fmt.Printf("thread %s, empty line or ctrl-d to quit\n", c.Thread)
	return repl(ctx, cli.client(), c.TurnFlags, os.Stdin, os.Stdout)
}

func repl(ctx context.Context, client *agentclient.Client, f TurnFlags, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		if err := turn(ctx, client, f, line, out); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type HistoryCmd struct {
	Thread string `arg:"" help:"Thread id."`
}

func (c *HistoryCmd) Run(ctx context.Context, cli *CLI) error {
	h, err := cli.client().History(ctx, c.Thread)
	if err != nil {
		return err
	}
	for _, m := range h.Messages {
		printMessage(os.Stdout, m)
	}
	return nil
}

type InfoCmd struct{}

func (c *InfoCmd) Run(ctx context.Context, cli *CLI) error {
	info, err := cli.client().Info(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("default agent: %s\ndefault model: %s\n", info.DefaultAgent, info.DefaultModel)
	for _, a := range info.Agents {
		fmt.Printf("  %-12s %s\n", a.Key, a.Description)
	}
	fmt.Printf("models: %s\n", strings.Join(info.Models, ", "))
	return nil
}

type TranscribeCmd struct {
	File string `arg:"" help:"Audio file to upload." type:"existingfile"`
}

func (c *TranscribeCmd) Run(ctx context.Context, cli *CLI) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	text, err := cli.client().Transcribe(ctx, filepath.Base(c.File), f)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
