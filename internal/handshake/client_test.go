package handshake

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem512"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// kemServer is a minimal initiate/complete endpoint pair that records the
// secret it decapsulates for each client.
type kemServer struct {
	t       *testing.T
	scheme  kem.Scheme
	mu      sync.Mutex
	keys    map[string]kem.PrivateKey
	secrets map[string][]byte

	initiateStatus int
	completeStatus int
	publicKeyB64   *string
}

func newKEMServer(t *testing.T) *kemServer {
	return &kemServer{
		t:              t,
		scheme:         mlkem512.Scheme(),
		keys:           make(map[string]kem.PrivateKey),
		secrets:        make(map[string][]byte),
		initiateStatus: http.StatusOK,
		completeStatus: http.StatusOK,
	}
}

func (s *kemServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/kem/initiate":
		var req initiateRequest
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		if s.initiateStatus != http.StatusOK {
			w.WriteHeader(s.initiateStatus)
			return
		}
		pk, sk, err := s.scheme.GenerateKeyPair()
		require.NoError(s.t, err)
		raw, err := pk.MarshalBinary()
		require.NoError(s.t, err)

		s.mu.Lock()
		s.keys[req.ClientID] = sk
		s.mu.Unlock()

		encoded := base64.StdEncoding.EncodeToString(raw)
		if s.publicKeyB64 != nil {
			encoded = *s.publicKeyB64
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"public_key_b64": encoded})
	case "/kem/complete":
		var req completeRequest
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		if s.completeStatus != http.StatusOK {
			w.WriteHeader(s.completeStatus)
			return
		}
		ct, err := base64.StdEncoding.DecodeString(req.CiphertextB64)
		require.NoError(s.t, err)

		s.mu.Lock()
		defer s.mu.Unlock()
		ss, err := s.scheme.Decapsulate(s.keys[req.ClientID], ct)
		require.NoError(s.t, err)
		s.secrets[req.ClientID] = ss
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	default:
		http.NotFound(w, r)
	}
}

func TestClient_Establish(t *testing.T) {
	fake := newKEMServer(t)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil, zaptest.NewLogger(t))
	session, err := client.Establish(context.Background())
	require.NoError(t, err)

	assert.False(t, session.Offline)
	assert.NotEmpty(t, session.ClientID)
	assert.Len(t, session.SharedSecret, 32)
	assert.Equal(t, fake.secrets[session.ClientID], session.SharedSecret)
}

func TestClient_Establish_FreshClientIDs(t *testing.T) {
	srv := httptest.NewServer(newKEMServer(t))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil, nil)
	first, err := client.Establish(context.Background())
	require.NoError(t, err)
	second, err := client.Establish(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ClientID, second.ClientID)
}

type failingKEM struct{}

func (failingKEM) Encapsulate([]byte) ([]byte, []byte, error) {
	return nil, nil, errors.New("bad key")
}

func TestClient_Establish_Failures(t *testing.T) {
	empty := ""
	garbage := "not base64!!"

	tests := []struct {
		name  string
		setup func(s *kemServer)
		kem   Encapsulator
	}{
		{"initiate status", func(s *kemServer) { s.initiateStatus = http.StatusInternalServerError }, nil},
		{"complete status", func(s *kemServer) { s.completeStatus = http.StatusBadRequest }, nil},
		{"missing key", func(s *kemServer) { s.publicKeyB64 = &empty }, nil},
		{"malformed key", func(s *kemServer) { s.publicKeyB64 = &garbage }, nil},
		{"encapsulation", func(s *kemServer) {}, failingKEM{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newKEMServer(t)
			tt.setup(fake)
			srv := httptest.NewServer(fake)
			defer srv.Close()

			client := NewClient(srv.URL, 5*time.Second, tt.kem, nil)
			_, err := client.Establish(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrHandshakeFailed)
		})
	}
}

func TestClient_Establish_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, nil, nil)
	_, err := client.Establish(context.Background())
	assert.ErrorIs(t, err, ErrHandshakeFailed)
}

type countingEstablisher struct {
	calls   atomic.Int32
	session *Session
	err     error
}

func (c *countingEstablisher) Establish(context.Context) (*Session, error) {
	c.calls.Add(1)
	time.Sleep(10 * time.Millisecond)
	return c.session, c.err
}

func TestHolder_EstablishesOnce(t *testing.T) {
	est := &countingEstablisher{session: &Session{ClientID: "abc", SharedSecret: make([]byte, 32)}}
	holder := NewHolder(est, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "abc", holder.Get(context.Background()).ClientID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), est.calls.Load())
}

func TestHolder_FallsBackToOffline(t *testing.T) {
	est := &countingEstablisher{err: errors.New("connection refused")}
	holder := NewHolder(est, nil)

	assert.Nil(t, holder.Current())
	session := holder.Get(context.Background())
	assert.True(t, session.Offline)
	assert.Empty(t, session.SharedSecret)

	// The offline session is kept for the process; no retry.
	holder.Get(context.Background())
	assert.Equal(t, int32(1), est.calls.Load())
}

func TestHolder_NilEstablisherIsOffline(t *testing.T) {
	holder := NewHolder(nil, nil)
	assert.True(t, holder.Get(context.Background()).Offline)
}
