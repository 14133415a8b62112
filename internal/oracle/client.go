package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"robotbrain/internal/config"
	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

const systemPrompt = `You are the decision maker of a home service robot.

You receive the robot's current observation, the chat history and the
available skill catalog. Decide the next step and answer with a single
JSON object, nothing else:

{
  "type": "CONTINUE|REPLAN|RETRY|SWITCH_TASK|ASK_HUMAN|FINISH|ABORT",
  "reason": "short reply shown to the user",
  "ops": [{"skill": "SkillName", "params": {...}}],
  "new_tasks": [{"type": "navigate", "target": "zone_name"}]
}

Rules:
- "回来", "回去", "回家" all mean: navigate to charging_station.
- Decompose compound goals into new_tasks, one navigation each.
- Use CONTINUE while a dispatched skill is still running.
- Use FINISH once the active goal is reached.
- Output JSON only.`

// Client speaks the OpenAI-compatible chat completions API. The default
// endpoint is the DashScope compatible mode used by the qwen models.
type Client struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewClient constructs the HTTP oracle from runtime config.
func NewClient(cfg *config.Config) *Client {
	timeout := 60 * time.Second
	if cfg.OracleTimeoutS > 0 {
		timeout = time.Duration(cfg.OracleTimeoutS) * time.Second
	}
	return &Client{
		model:       cfg.OracleModel,
		apiKey:      cfg.OracleAPIKey,
		baseURL:     strings.TrimRight(cfg.OracleBaseURL, "/"),
		temperature: cfg.OracleTemperature,
		maxTokens:   cfg.OracleMaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logging.NewComponentLogger("oracle"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) Decide(ctx context.Context, messages []state.Message, observation string, registrySummary string) (string, error) {
	chat := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "system", Content: registrySummary},
	}
	// Keep a bounded window of the chat log; old turns carry little
	// signal once their results are in the observation.
	history := messages
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	for _, m := range history {
		chat = append(chat, chatMessage{Role: m.Role, Content: m.Content})
	}
	chat = append(chat, chatMessage{Role: "user", Content: observation})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    chat,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal oracle request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s messages=%d", endpoint, c.model, len(chat))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("oracle error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}
	content := parsed.Choices[0].Message.Content
	c.logger.Debug("oracle response (%d bytes)", len(content))
	return content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
