package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	"github.com/mminh007/machine-translation/pkg/agentclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, got *contractx.StreamInput) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/stream":
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, got)
			w.Header().Set("Content-Type", "text/event-stream")
			if got.StreamTokens {
				io.WriteString(w, "data: {\"type\":\"token\",\"content\":\"Bon\"}\n\n")
				io.WriteString(w, "data: {\"type\":\"token\",\"content\":\"jour\"}\n\n")
			}
			io.WriteString(w, "data: {\"type\":\"message\",\"content\":{\"type\":\"ai\",\"content\":\"Bonjour\"}}\n\n")
			io.WriteString(w, "data: [DONE]\n\n")
		case "/chat/invoke":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"type":"ai","content":"Bonjour","run_id":"r1"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTurnStreamsTokens(t *testing.T) {
	t.Parallel()
	var got contractx.StreamInput
	srv := sseServer(t, &got)

	var out bytes.Buffer
	flags := TurnFlags{Thread: "t1", Target: "French"}
	require.NoError(t, turn(context.Background(), agentclient.New(srv.URL), flags, "Hello", &out))

	assert.Equal(t, "Bonjour\n", out.String())
	assert.Equal(t, "t1", got.ThreadID)
	assert.True(t, got.StreamTokens)
	assert.Equal(t, "French", got.AgentConfig["target_language"])
}

func TestTurnInvoke(t *testing.T) {
	t.Parallel()
	srv := sseServer(t, &contractx.StreamInput{})

	var out bytes.Buffer
	require.NoError(t, turn(context.Background(), agentclient.New(srv.URL), TurnFlags{NoStream: true}, "Hello", &out))
	assert.Equal(t, "[ai] Bonjour\n", out.String())
}

func TestReplStopsOnBlankLine(t *testing.T) {
	t.Parallel()
	var got contractx.StreamInput
	srv := sseServer(t, &got)

	var out bytes.Buffer
	in := strings.NewReader("Hello\n\nignored\n")
	require.NoError(t, repl(context.Background(), agentclient.New(srv.URL), TurnFlags{NoTokens: true}, in, &out))

	assert.Equal(t, "> [ai] Bonjour\n> ", out.String())
	assert.False(t, got.StreamTokens)
}

func TestEnsureThread(t *testing.T) {
	t.Parallel()

	f := TurnFlags{}
	assert.True(t, f.ensureThread())
	assert.Len(t, f.Thread, 36)

	first := f.Thread
	assert.False(t, f.ensureThread())
	assert.Equal(t, first, f.Thread)
}

func TestAskReusesGeneratedThread(t *testing.T) {
	t.Parallel()
	var got contractx.StreamInput
	srv := sseServer(t, &got)

	f := TurnFlags{}
	f.ensureThread()
	require.NoError(t, turn(context.Background(), agentclient.New(srv.URL), f, "Hello", io.Discard))
	assert.Equal(t, f.Thread, got.ThreadID)
}
