package preferences

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qpg-app/qpg/internal/channel"
	"github.com/qpg-app/qpg/internal/handshake"
)

// Remote is the preference service as seen by the Store.
type Remote interface {
	Fetch(ctx context.Context, session *handshake.Session, username string) (*Set, error)
	Push(ctx context.Context, session *handshake.Session, username string, set *Set) error
}

type updateRequest struct {
	Username    string `json:"username"`
	Preferences *Set   `json:"preferences"`
}

// RemoteClient talks to the preference service over HTTP, sealing every
// payload with the channel.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRemoteClient creates a client for the service at baseURL.
func NewRemoteClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch downloads and decrypts the user's preference set.
func (c *RemoteClient) Fetch(ctx context.Context, session *handshake.Session, username string) (*Set, error) {
	if session == nil || session.Offline {
		return nil, channel.ErrOffline
	}

	endpoint := fmt.Sprintf("%s/preferences/%s?%s",
		c.baseURL,
		url.PathEscape(username),
		url.Values{"client_id": {session.ClientID}}.Encode(),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var envelope channel.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	plaintext, err := channel.Decrypt(session, &envelope)
	if err != nil {
		return nil, err
	}

	set, err := Parse(plaintext)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched preferences",
		zap.String("username", username),
		zap.Int("settings", set.Len()),
	)
	return set, nil
}

// Push uploads the full preference set for username.
func (c *RemoteClient) Push(ctx context.Context, session *handshake.Session, username string, set *Set) error {
	payload, err := json.Marshal(updateRequest{Username: username, Preferences: set})
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	envelope, err := channel.Encrypt(session, payload)
	if err != nil {
		return err
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/preferences/update", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return err
	}
	c.logger.Debug("pushed preferences", zap.String("username", username))
	return nil
}

func (c *RemoteClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
