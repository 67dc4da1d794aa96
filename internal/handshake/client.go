// Package handshake establishes a shared secret with the preference
// service using a key encapsulation mechanism.
//
// The client sends a fresh identifier to the initiate endpoint, receives
// the server's public encapsulation key, encapsulates locally and sends
// the ciphertext to the complete endpoint. Every failure along the way is
// reported as ErrHandshakeFailed so callers can fall back to an offline
// session.
package handshake

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/google/uuid"
	"go.uber.org/zap"

	qerrors "github.com/qpg-app/qpg/internal/errors"
)

// ErrHandshakeFailed matches every handshake failure.
var ErrHandshakeFailed = qerrors.New(qerrors.CodeHandshakeFailed, "handshake failed")

func wrapFailure(step string, cause error) error {
	return qerrors.Wrap(qerrors.CodeHandshakeFailed, step, cause)
}

// Encapsulator is the KEM capability: it derives a shared secret and the
// ciphertext to send back from a recipient's public key.
type Encapsulator interface {
	Encapsulate(publicKey []byte) (sharedSecret, ciphertext []byte, err error)
}

// MLKEM512 encapsulates against ML-KEM-512 public keys.
type MLKEM512 struct {
	scheme kem.Scheme
}

// NewMLKEM512 returns the default Encapsulator.
func NewMLKEM512() *MLKEM512 {
	return &MLKEM512{scheme: mlkem512.Scheme()}
}

// Encapsulate implements Encapsulator.
func (m *MLKEM512) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	pk, err := m.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid public key: %w", err)
	}
	ct, ss, err := m.scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("encapsulate: %w", err)
	}
	return ss, ct, nil
}

type initiateRequest struct {
	ClientID string `json:"client_id"`
}

type initiateResponse struct {
	PublicKeyB64 string `json:"public_key_b64"`
}

type completeRequest struct {
	ClientID      string `json:"client_id"`
	CiphertextB64 string `json:"ciphertext_b64"`
}

// Client runs the handshake against one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	kem        Encapsulator
	logger     *zap.Logger
	newID      func() string
}

// NewClient creates a handshake client. A nil encapsulator uses ML-KEM-512.
func NewClient(baseURL string, timeout time.Duration, encapsulator Encapsulator, logger *zap.Logger) *Client {
	if encapsulator == nil {
		encapsulator = NewMLKEM512()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		kem:        encapsulator,
		logger:     logger,
		newID:      func() string { return uuid.New().String() },
	}
}

// Establish performs one handshake attempt. It is not retried.
func (c *Client) Establish(ctx context.Context) (*Session, error) {
	clientID := c.newID()
	logger := c.logger.With(zap.String("client_id", clientID))

	publicKey, err := c.initiate(ctx, clientID)
	if err != nil {
		return nil, err
	}
	logger.Debug("received encapsulation key", zap.Int("bytes", len(publicKey)))

	secret, ciphertext, err := c.kem.Encapsulate(publicKey)
	if err != nil {
		return nil, wrapFailure("encapsulate", err)
	}

	if err := c.complete(ctx, clientID, ciphertext); err != nil {
		return nil, err
	}

	return &Session{
		ClientID:      clientID,
		SharedSecret:  secret,
		EstablishedAt: time.Now(),
	}, nil
}

func (c *Client) initiate(ctx context.Context, clientID string) ([]byte, error) {
	body, err := c.post(ctx, "/kem/initiate", initiateRequest{ClientID: clientID})
	if err != nil {
		return nil, wrapFailure("initiate", err)
	}

	var resp initiateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapFailure("initiate", fmt.Errorf("failed to decode response: %w", err))
	}
	if resp.PublicKeyB64 == "" {
		return nil, wrapFailure("initiate", fmt.Errorf("public_key_b64 not found in response"))
	}

	key, err := base64.StdEncoding.DecodeString(resp.PublicKeyB64)
	if err != nil {
		return nil, wrapFailure("initiate", fmt.Errorf("failed to decode public key: %w", err))
	}
	return key, nil
}

func (c *Client) complete(ctx context.Context, clientID string, ciphertext []byte) error {
	_, err := c.post(ctx, "/kem/complete", completeRequest{
		ClientID:      clientID,
		CiphertextB64: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return wrapFailure("complete", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
