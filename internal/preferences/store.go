// Package preferences models accessibility preferences and keeps the
// client-side cache of them in sync with the preference service.
//
// A Store holds three views: the full Set as fetched (or the bundled
// defaults), the Set filtered to the active environment's commands, and
// the single-entry snippet last chosen for a prompt. The Store's lock is
// never held across network calls.
package preferences

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	qerrors "github.com/qpg-app/qpg/internal/errors"
	"github.com/qpg-app/qpg/internal/handshake"
	"github.com/qpg-app/qpg/internal/matcher"
	"github.com/qpg-app/qpg/internal/platform"
)

var (
	// ErrUpdateFailed is returned when a local update could not be pushed.
	ErrUpdateFailed = qerrors.New(qerrors.CodePreferenceUpdateFailed, "preference update failed")

	// ErrLoadFailed is returned when neither the service nor the defaults
	// yield a preference set.
	ErrLoadFailed = qerrors.New(qerrors.CodePreferenceLoadFailed, "preference load failed")
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// DefaultsFile overrides the bundled fallback document.
	DefaultsFile string

	// ConfirmRemote commits an update locally only after the service
	// accepted it. By default the local cache is updated first and a
	// failed push leaves the new value in place.
	ConfirmRemote bool

	Logger *zap.Logger
}

// Store is the client-local cache of the user's preferences.
type Store struct {
	remote        Remote
	defaultsFile  string
	confirmRemote bool
	logger        *zap.Logger
	loads         singleflight.Group

	// pushMu orders updates end to end: a push carries the whole set, so
	// the copy and its push must not interleave with another update.
	// It is never acquired while mu is held.
	pushMu sync.Mutex

	mu       sync.Mutex
	full     *Set
	filtered *Set
	snippet  *Set
	env      platform.Environment
}

// NewStore creates an empty Store. A nil remote serves the defaults and
// keeps updates local.
func NewStore(remote Remote, opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		remote:        remote,
		defaultsFile:  opts.DefaultsFile,
		confirmRemote: opts.ConfirmRemote,
		logger:        logger,
	}
}

// Load returns the set filtered for env, fetching it on first use.
// Concurrent first loads share one fetch.
func (s *Store) Load(ctx context.Context, session *handshake.Session, username string, env platform.Environment) (*Set, error) {
	s.mu.Lock()
	if s.full != nil {
		s.refilterLocked(env)
		filtered := s.filtered.Clone()
		s.mu.Unlock()
		return filtered, nil
	}
	s.mu.Unlock()

	_, err, _ := s.loads.Do(username, func() (any, error) {
		s.mu.Lock()
		loaded := s.full != nil
		s.mu.Unlock()
		if loaded {
			return nil, nil
		}

		set, err := s.fetch(ctx, session, username)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.full == nil {
			s.full = set
			s.filtered = nil
		}
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refilterLocked(env)
	return s.filtered.Clone(), nil
}

func (s *Store) fetch(ctx context.Context, session *handshake.Session, username string) (*Set, error) {
	if s.remote != nil {
		set, err := s.remote.Fetch(ctx, session, username)
		if err == nil {
			s.logger.Info("loaded preferences from service", zap.Int("settings", set.Len()))
			return set, nil
		}
		s.logger.Warn("preference fetch failed, using defaults", zap.Error(err))
	}

	set, err := LoadDefaults(s.defaultsFile)
	if err != nil && s.defaultsFile != "" {
		s.logger.Warn("defaults file unusable, using bundled defaults",
			zap.String("path", s.defaultsFile),
			zap.Error(err),
		)
		set, err = LoadDefaults("")
	}
	if err != nil {
		return nil, qerrors.Wrap(qerrors.CodePreferenceLoadFailed, "no usable preference set", err)
	}
	return set, nil
}

func (s *Store) refilterLocked(env platform.Environment) {
	if s.filtered != nil && env == s.env {
		return
	}
	s.env = env
	s.filtered = Filter(s.full, env)
	s.snippet = nil
}

// Update sets the current value of the setting whose template for the
// active environment equals baseCommand, then pushes the full set. It
// reports whether a setting matched; no match is not an error. Concurrent
// updates run one after another, so the last push always holds every
// committed value.
func (s *Store) Update(ctx context.Context, session *handshake.Session, username, baseCommand, value string) (bool, error) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	if s.full == nil {
		s.mu.Unlock()
		s.logger.Debug("update before load ignored", zap.String("command", baseCommand))
		return false, nil
	}

	key, ok := s.full.FindByTemplate(s.env, baseCommand)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("no setting for command", zap.String("command", baseCommand))
		return false, nil
	}

	updated := s.full.Clone()
	setting, _ := updated.Get(key)
	setting.Apply(value)
	current := setting.Current

	if !s.confirmRemote {
		s.commitLocked(key, current)
	}
	s.mu.Unlock()

	logger := s.logger.With(zap.String("setting", key), zap.String("value", current.String()))

	if s.remote != nil {
		if err := s.remote.Push(ctx, session, username, updated); err != nil {
			err = qerrors.Wrap(qerrors.CodePreferenceUpdateFailed, "failed to persist "+key, err)
			if s.confirmRemote {
				logger.Warn("preference push failed, local value unchanged", zap.Error(err))
				return false, err
			}
			logger.Warn("preference push failed, keeping local value", zap.Error(err))
			return true, err
		}
	}

	if s.confirmRemote {
		s.mu.Lock()
		s.commitLocked(key, current)
		s.mu.Unlock()
	}
	logger.Info("preference updated")
	return true, nil
}

func (s *Store) commitLocked(key string, current Scalar) {
	setting, ok := s.full.Get(key)
	if !ok {
		return
	}
	setting.Current = current
	s.filtered = Filter(s.full, s.env)
	if s.snippet.Len() == 1 {
		s.snippet = s.filtered.Restrict(s.snippet.Keys()[0])
	}
}

// BestMatch returns the single-setting snippet for prompt and caches it.
// When nothing matches, the previous snippet is reused, and failing that
// the whole filtered set is returned.
func (s *Store) BestMatch(prompt string) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filtered == nil {
		return NewSet()
	}
	if key, ok := matcher.BestMatch(prompt, s.filtered.Matchable(s.env)); ok {
		s.snippet = s.filtered.Restrict(key)
		return s.snippet.Clone()
	}
	if s.snippet != nil {
		return s.snippet.Clone()
	}
	return s.filtered.Clone()
}

// Snapshot returns a copy of the full set and the environment it was last
// filtered for. The set is nil before the first Load.
func (s *Store) Snapshot() (*Set, platform.Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full == nil {
		return nil, s.env
	}
	return s.full.Clone(), s.env
}

// Filtered returns a copy of the environment-filtered set, or nil before
// the first Load.
func (s *Store) Filtered() *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filtered == nil {
		return nil
	}
	return s.filtered.Clone()
}
