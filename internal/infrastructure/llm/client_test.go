package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "deepseek-chat",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.LLMConfig{
		BaseURL:    server.URL + "/",
		Model:      "deepseek-chat",
		APIKey:     "sk-test",
		Attempts:   3,
		RetryDelay: time.Millisecond,
		MaxJitter:  time.Millisecond,
	}, nil)
}

func TestCallModelSendsTaskPrompt(t *testing.T) {
	t.Parallel()

	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("  全球土壤湿度数据集  ")))
	})

	out := c.CallModel(context.Background(), "A global soil moisture dataset", domain.TaskTranslate)
	assert.Equal(t, "全球土壤湿度数据集", out)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, translatorRole, got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "A global soil moisture dataset")
	assert.Equal(t, "deepseek-chat", got.Model)
}

func TestCallModelRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":{"message":"busy"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("生态学。")))
	})

	out := c.CallModel(context.Background(), "Foo", domain.TaskClassify)
	assert.Equal(t, "生态学", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallModelGivesUpWithEmptyString(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
	})

	assert.Equal(t, "", c.CallModel(context.Background(), "Foo", domain.TaskInterpret))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallModelClassifyFallsBackToCatchAll(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("Quantum chromodynamics")))
	})

	assert.Equal(t, domain.SubjectOther, c.CallModel(context.Background(), "Foo", domain.TaskClassify))
}

func TestCallModelWithoutKeyOrText(t *testing.T) {
	t.Parallel()

	c := NewClient(config.LLMConfig{Model: "deepseek-chat"}, nil)
	assert.Equal(t, "", c.CallModel(context.Background(), "Foo", domain.TaskTranslate))

	var nilClient *Client
	assert.Equal(t, "", nilClient.CallModel(context.Background(), "Foo", domain.TaskTranslate))

	keyed := NewClient(config.LLMConfig{Model: "m", APIKey: "k"}, nil)
	assert.Equal(t, "", keyed.CallModel(context.Background(), "  ", domain.TaskTranslate))
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	system, prompt, err := buildPrompt(domain.TaskClassify, "Foo")
	require.NoError(t, err)
	assert.Equal(t, classifierRole, system)
	assert.Contains(t, prompt, "生态学")
	assert.True(t, strings.HasSuffix(prompt, "\nFoo"))

	_, _, err = buildPrompt(domain.Task("summarize"), "Foo")
	assert.Error(t, err)
}
