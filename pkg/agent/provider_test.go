package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIChunk(text string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gemma2:27b","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, text)
}

func newOpenAIServer(t *testing.T, deltas []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: %s\n\n", openAIChunk(d))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestProviderFactory(t *testing.T) {
	f := &ProviderFactory{}

	p, err := f.NewProvider(ProviderConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Provider())

	p, err = f.NewProvider(ProviderConfig{Provider: ""})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Provider())

	p, err = f.NewProvider(ProviderConfig{Provider: "anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Provider())

	_, err = f.NewProvider(ProviderConfig{Provider: "gemini"})
	assert.Error(t, err)
}

func TestOpenAIProviderStream(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, []string{"Hel", "lo <function cmd=\"cat\">", "ü</function>"}, &body)
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: srv.URL + "/v1", APIKey: "ollama"})

	var out bytes.Buffer
	resp, err := p.Stream(context.Background(), LLMRequest{
		Model:        "gemma2:27b",
		SystemPrompt: "be terse",
		Messages: []Message{
			{Role: "user", Content: "earlier"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "now"},
		},
		MaxTokens: 64,
	}, &out)
	require.NoError(t, err)

	want := "Hello <function cmd=\"cat\">ü</function>"
	assert.Equal(t, want, out.String())
	assert.Equal(t, want, resp.Content)

	assert.Equal(t, "gemma2:27b", body["model"])
	assert.Equal(t, true, body["stream"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("stdout closed")
}

func TestOpenAIProviderWriteFailureAborts(t *testing.T) {
	srv := newOpenAIServer(t, []string{"a", "b"}, nil)
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: srv.URL})
	resp, err := p.Stream(context.Background(), LLMRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}}, failWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout closed")
	assert.Equal(t, "a", resp.Content)
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: srv.URL})
	_, err := p.Stream(context.Background(), LLMRequest{Model: "missing", Messages: []Message{{Role: "user", Content: "x"}}}, io.Discard)
	assert.Error(t, err)
}

func TestAnthropicProviderStream(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "text/event-stream")
		events := []struct{ name, data string }{
			{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`},
			{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
			{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi "}}`},
			{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"there"}}`},
			{"content_block_stop", `{"type":"content_block_stop","index":0}`},
			{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":3}}`},
			{"message_stop", `{"type":"message_stop"}`},
		}
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{BaseURL: srv.URL, APIKey: "sk-ant-test"})

	var out bytes.Buffer
	resp, err := p.Stream(context.Background(), LLMRequest{
		Model:        "claude-sonnet-4",
		SystemPrompt: "be terse",
		Messages:     []Message{{Role: "user", Content: "hello"}},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "Hi there", out.String())
	assert.Equal(t, "Hi there", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	assert.Equal(t, float64(defaultAnthropicMaxTokens), body["max_tokens"])
	assert.Equal(t, true, body["stream"])
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryableError(errors.New("429 Too Many Requests")))
	assert.True(t, IsRetryableError(errors.New("503 Service Unavailable")))
	assert.False(t, IsRetryableError(errors.New("invalid api key")))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(nil))
	assert.Equal(t, 1, EstimateTokens([]Message{{Content: "abc"}}))
	assert.Equal(t, 3, EstimateTokens([]Message{{Content: "abcd"}, {Content: "abcdefgh"}}))
}
