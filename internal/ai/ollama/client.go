// Package ollama talks to a local Ollama server through its native chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qpg-app/qpg/internal/ai"
)

// DefaultBaseURL is where a local Ollama listens by default.
const DefaultBaseURL = "http://127.0.0.1:11434"

// Client implements AIProvider for Ollama
type Client struct {
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Ollama client. An empty baseURL uses DefaultBaseURL.
func NewClient(model, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type chatRequest struct {
	Model    string       `json:"model"`
	Messages []ai.Message `json:"messages"`
	Stream   bool         `json:"stream"`
	Format   string       `json:"format,omitempty"`
}

type chatResponse struct {
	Message ai.Message `json:"message"`
	Done    bool       `json:"done"`
	Error   string     `json:"error"`
}

// Chat sends the conversation and returns the assistant's reply
func (c *Client) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	jsonBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var respData chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if respData.Error != "" {
		return "", fmt.Errorf("ollama error: %s", respData.Error)
	}

	c.logger.Debug("ollama chat",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return respData.Message.Content, nil
}
