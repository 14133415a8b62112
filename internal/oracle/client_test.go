package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotbrain/internal/config"
	"robotbrain/internal/state"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.Config{
		OracleBaseURL:  server.URL,
		OracleModel:    "qwen-plus",
		OracleAPIKey:   "test-key",
		OracleTimeoutS: 5,
	})
}

func TestDecideSendsChatRequest(t *testing.T) {
	var captured map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"content": `{"type": "CONTINUE", "reason": "ok"}`},
				"finish_reason": "stop",
			}},
		})
	})

	raw, err := client.Decide(context.Background(),
		[]state.Message{{Role: "user", Content: "go to kitchen"}},
		"[Observation - iteration 1]", "Available skills: ...")
	require.NoError(t, err)
	assert.Contains(t, raw, "CONTINUE")

	assert.Equal(t, "qwen-plus", captured["model"])
	messages := captured["messages"].([]any)
	// system prompt + registry summary + history + observation
	assert.GreaterOrEqual(t, len(messages), 4)
	last := messages[len(messages)-1].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Contains(t, last["content"], "Observation")
}

func TestDecideHTTPError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Decide(context.Background(), nil, "obs", "skills")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDecideAPIErrorBody(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth"},
		})
	})

	_, err := client.Decide(context.Background(), nil, "obs", "skills")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestDecideNoChoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Decide(context.Background(), nil, "obs", "skills")
	assert.Error(t, err)
}

func TestMockScriptPlayback(t *testing.T) {
	m := NewMock("first", "second")
	ctx := context.Background()

	r1, _ := m.Decide(ctx, nil, "", "")
	r2, _ := m.Decide(ctx, nil, "", "")
	r3, _ := m.Decide(ctx, nil, "", "")

	assert.Equal(t, "first", r1)
	assert.Equal(t, "second", r2)
	assert.Equal(t, "second", r3)
	assert.Equal(t, 3, m.Calls())
}

func TestMockDefaultContinues(t *testing.T) {
	raw, err := NewMock().Decide(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.Contains(t, raw, "CONTINUE")
}
