// Package channel turns a handshake Session into authenticated
// encryption for preference traffic.
//
// Envelopes are sealed with ChaCha20-Poly1305. The AEAD key is derived
// from the session's shared secret with HKDF-SHA256, salted with the
// client id, and the client id is bound as additional authenticated data
// so an envelope cannot be replayed under another session. Every call to
// Encrypt draws a fresh random nonce.
package channel

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	qerrors "github.com/qpg-app/qpg/internal/errors"
	"github.com/qpg-app/qpg/internal/handshake"
)

// KeySize is the size of the derived AEAD key.
const KeySize = chacha20poly1305.KeySize

// hkdfInfo separates channel keys from any other use of the shared secret.
var hkdfInfo = []byte("qpg.channel.v1")

var (
	// ErrDecryptionFailed matches every failure to open an envelope.
	ErrDecryptionFailed = qerrors.New(qerrors.CodeDecryptionFailed, "decryption failed")

	// ErrOffline is returned for sessions that carry no shared secret.
	ErrOffline = qerrors.New(qerrors.CodeChannelOffline, "offline session has no secure channel")
)

// Envelope is the wire form of an encrypted payload.
type Envelope struct {
	CiphertextB64 string `json:"ciphertext_b64"`
	NonceB64      string `json:"nonce_b64"`
	ClientID      string `json:"client_id"`
}

func decryptionFailed(message string, cause error) error {
	return qerrors.Wrap(qerrors.CodeDecryptionFailed, message, cause)
}

func deriveKey(session *handshake.Session) ([]byte, error) {
	if session == nil || session.Offline {
		return nil, ErrOffline
	}
	if len(session.SharedSecret) == 0 {
		return nil, fmt.Errorf("session %s has an empty shared secret", session.ClientID)
	}

	key := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, session.SharedSecret, []byte(session.ClientID), hkdfInfo)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("deriving channel key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under the session.
func Encrypt(session *handshake.Session, plaintext []byte) (*Envelope, error) {
	key, err := deriveKey(session)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating ChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, []byte(session.ClientID))

	return &Envelope{
		CiphertextB64: base64.StdEncoding.EncodeToString(ciphertext),
		NonceB64:      base64.StdEncoding.EncodeToString(nonce),
		ClientID:      session.ClientID,
	}, nil
}

// Decrypt opens an envelope sealed under the session. It never returns
// partially decrypted or unauthenticated plaintext.
func Decrypt(session *handshake.Session, envelope *Envelope) ([]byte, error) {
	key, err := deriveKey(session)
	if err != nil {
		return nil, err
	}
	if envelope == nil {
		return nil, decryptionFailed("missing envelope", nil)
	}
	if envelope.ClientID != "" && envelope.ClientID != session.ClientID {
		return nil, decryptionFailed(fmt.Sprintf("envelope for client %q, session is %q", envelope.ClientID, session.ClientID), nil)
	}

	nonce, err := base64.StdEncoding.DecodeString(envelope.NonceB64)
	if err != nil {
		return nil, decryptionFailed("malformed nonce encoding", err)
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, decryptionFailed(fmt.Sprintf("nonce is %d bytes, want %d", len(nonce), chacha20poly1305.NonceSize), nil)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.CiphertextB64)
	if err != nil {
		return nil, decryptionFailed("malformed ciphertext encoding", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating ChaCha20-Poly1305 cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(session.ClientID))
	if err != nil {
		return nil, decryptionFailed("authentication failed (wrong key or tampered data)", err)
	}
	return plaintext, nil
}
