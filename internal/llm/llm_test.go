package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physicalai/tbrag/internal/ollama"
)

type mockGenerator struct {
	generateFn func(ctx context.Context, req Request) (string, error)
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	return m.generateFn(ctx, req)
}

func TestWithTimeout_CancelsSlowProvider(t *testing.T) {
	g := WithTimeout(&mockGenerator{generateFn: func(ctx context.Context, _ Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}, 20*time.Millisecond, nil)

	_, err := g.Generate(context.Background(), Request{User: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithTimeout_EmptyResponse(t *testing.T) {
	g := WithTimeout(&mockGenerator{generateFn: func(context.Context, Request) (string, error) {
		return "", nil
	}}, time.Second, nil)

	_, err := g.Generate(context.Background(), Request{User: "q"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAI_SendsSystemAndUser(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ROS 2 uses DDS."}}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAI(srv.URL, "sk-test", "gpt-4o-mini").Generate(context.Background(), Request{
		System: "You are a tutor.", User: "What does ROS 2 use?", Temperature: 0.7, MaxTokens: 800,
	})
	require.NoError(t, err)
	assert.Equal(t, "ROS 2 uses DDS.", out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 800, got.MaxTokens)
}

func TestOpenAI_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL, "", "m")
	o.backoff = time.Millisecond
	out, err := o.Generate(context.Background(), Request{User: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAI_GivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOpenAI(srv.URL, "", "m")
	o.backoff = time.Millisecond
	_, err := o.Generate(context.Background(), Request{User: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAI_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "", "m").Generate(context.Background(), Request{User: "q"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOllama_MapsRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"message":{"role":"assistant","content":"Hallo"}}`))
	}))
	defer srv.Close()

	out, err := NewOllama(ollama.New(srv.URL), "llama3.2").Generate(context.Background(), Request{
		System: "translate", User: "Hello", Temperature: 0.3, MaxTokens: 4000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo", out)

	msgs := body["messages"].([]any)
	assert.Len(t, msgs, 2)
	opts := body["options"].(map[string]any)
	assert.Equal(t, 0.3, opts["temperature"])
	assert.Equal(t, float64(4000), opts["num_predict"])
}

func TestAnthropic_SplitsSystemPrompt(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"Balance "},{"type":"text","text":"matters."}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":3}}`))
	}))
	defer srv.Close()

	out, err := NewAnthropic("sk-ant", "claude-3-5-haiku-latest", srv.URL).Generate(context.Background(), Request{
		System: "You are a tutor.", User: "Why?", Temperature: 0.7, MaxTokens: 800,
	})
	require.NoError(t, err)
	assert.Equal(t, "Balance matters.", out)

	assert.Equal(t, float64(800), body["max_tokens"])
	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "You are a tutor.", system[0].(map[string]any)["text"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestGemini_ReadsFirstCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Bonjour"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "key", "gemini-2.0-flash", srv.URL)
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), Request{System: "translate", User: "Hello", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Settings{Provider: "palm"}, nil)
	assert.Error(t, err)
}

func TestNew_DefaultsToOpenAI(t *testing.T) {
	g, err := New(context.Background(), Settings{Model: "gpt-4o-mini", Timeout: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", g.Name())
}
