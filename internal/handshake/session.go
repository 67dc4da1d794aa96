package handshake

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session is the result of a key exchange. It lives for the process and
// is never written to disk.
type Session struct {
	ClientID      string
	SharedSecret  []byte
	EstablishedAt time.Time

	// Offline marks a session created without a reachable server. It
	// carries no secret and the channel refuses to encrypt under it.
	Offline bool
}

// OfflineSession returns the explicit session used when no handshake
// could be completed.
func OfflineSession() *Session {
	return &Session{
		ClientID:      "offline",
		EstablishedAt: time.Now(),
		Offline:       true,
	}
}

// Establisher runs a handshake.
type Establisher interface {
	Establish(ctx context.Context) (*Session, error)
}

// Holder owns the process-wide Session and creates it on first use.
// Concurrent first callers wait for the single handshake attempt.
type Holder struct {
	mu          sync.Mutex
	session     *Session
	establisher Establisher
	logger      *zap.Logger
}

// NewHolder creates a Holder. A nil establisher yields an offline session.
func NewHolder(establisher Establisher, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{
		establisher: establisher,
		logger:      logger,
	}
}

// Get returns the shared Session, running the handshake if none exists.
// A failed handshake resolves to the offline session; Get never fails.
func (h *Holder) Get(ctx context.Context) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.session != nil {
		return h.session
	}

	if h.establisher == nil {
		h.logger.Info("no preference server configured, running offline")
		h.session = OfflineSession()
		return h.session
	}

	session, err := h.establisher.Establish(ctx)
	if err != nil {
		if !errors.Is(err, ErrHandshakeFailed) {
			err = wrapFailure("handshake", err)
		}
		h.logger.Warn("handshake failed, falling back to offline session", zap.Error(err))
		h.session = OfflineSession()
		return h.session
	}

	h.logger.Info("secure session established", zap.String("client_id", session.ClientID))
	h.session = session
	return h.session
}

// Current returns the session if one has been created, without
// triggering a handshake.
func (h *Holder) Current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}
