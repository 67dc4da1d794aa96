package security

import (
	"strings"

	"github.com/qpg-app/qpg/internal/platform"
	"github.com/qpg-app/qpg/internal/preferences"
)

// Allowlist is a set of normalized base commands.
type Allowlist map[string]struct{}

// NewAllowlist builds an Allowlist from entries, trimming each and
// skipping empty ones.
func NewAllowlist(entries ...string) Allowlist {
	allowlist := make(Allowlist, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			allowlist[entry] = struct{}{}
		}
	}
	return allowlist
}

// AllowlistFor derives the base commands legal in env from a preference
// snapshot.
func AllowlistFor(set *preferences.Set, env platform.Environment) Allowlist {
	return NewAllowlist(set.Templates(env)...)
}

// Contains reports whether base is an entry.
func (a Allowlist) Contains(base string) bool {
	_, ok := a[base]
	return ok
}
