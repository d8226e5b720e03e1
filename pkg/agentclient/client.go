package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	messagex "github.com/mminh007/machine-translation/agent/message"
)

var ErrUnexpectedEOF = errors.New("stream ended before [DONE]")

// DefaultTimeout suits non-streaming calls.
const DefaultTimeout = 60 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent service: %d %s", e.StatusCode, e.Detail)
}

// Client talks to the agent service over HTTP.
type Client struct {
	baseURL string
	agent   string
	http    *http.Client
}

type Option func(*Client)

func WithAgent(key string) Option {
	return func(c *Client) { c.agent = strings.TrimSpace(key) }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New returns a client for baseURL. Streaming calls have no overall
// timeout; set one on the context instead.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Agent() string {
	return c.agent
}

func (c *Client) Invoke(ctx context.Context, in contractx.UserInput) (messagex.ChatMessage, error) {
	var out messagex.ChatMessage
	if err := c.doJSON(ctx, http.MethodPost, c.agentPath("/chat/invoke"), in, &out); err != nil {
		return messagex.ChatMessage{}, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, threadID string) (messagex.History, error) {
	var out messagex.History
	if err := c.doJSON(ctx, http.MethodPost, "/history", contractx.ChatHistoryInput{ThreadID: threadID}, &out); err != nil {
		return messagex.History{}, err
	}
	return out, nil
}

func (c *Client) Info(ctx context.Context) (contractx.ServiceInfo, error) {
	var out contractx.ServiceInfo
	if err := c.doJSON(ctx, http.MethodGet, "/info", nil, &out); err != nil {
		return contractx.ServiceInfo{}, err
	}
	return out, nil
}

func (c *Client) Agents(ctx context.Context) ([]contractx.AgentInfo, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	return info.Agents, nil
}

// Transcribe uploads audio to the speech endpoint and returns its text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio_file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/speech2text/audio", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Text string `json:"text"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Stream starts a streaming run. The caller must Close the reader.
func (c *Client) Stream(ctx context.Context, in contractx.StreamInput) (*StreamReader, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.agentPath("/chat/stream"), in)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return newStreamReader(resp.Body), nil
}

func (c *Client) agentPath(path string) string {
	if c.agent == "" {
		return path
	}
	return path + "?" + url.Values{"agent_key": {c.agent}}.Encode()
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newJSONRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Detail string `json:"detail"`
	}
	detail := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
		detail = body.Detail
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: detail}
}

// StreamReader yields the items of one streaming run.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newStreamReader(body io.ReadCloser) *StreamReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	return &StreamReader{body: body, scanner: sc}
}

// Recv returns the next message or token. It returns io.EOF after the
// terminal frame and ErrUnexpectedEOF if the connection ends first.
func (r *StreamReader) Recv() (Item, error) {
	if r.done {
		return Item{}, io.EOF
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := ParseLine(line)
		if err != nil {
			return Item{}, err
		}
		switch item.Kind {
		case ItemSkip:
			continue
		case ItemDone:
			r.done = true
			return Item{}, io.EOF
		default:
			return item, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Item{}, err
	}
	return Item{}, ErrUnexpectedEOF
}

func (r *StreamReader) Close() error {
	return r.body.Close()
}

// Collect drains the stream and returns its messages and the concatenated
// tokens.
func (r *StreamReader) Collect() ([]messagex.ChatMessage, string, error) {
	var (
		msgs   []messagex.ChatMessage
		tokens strings.Builder
	)
	for {
		item, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return msgs, tokens.String(), nil
		}
		if err != nil {
			return msgs, tokens.String(), err
		}
		switch item.Kind {
		case ItemMessage:
			msgs = append(msgs, item.Message)
		case ItemToken:
			tokens.WriteString(item.Token)
		}
	}
}
