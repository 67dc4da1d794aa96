// Package platform identifies the local user and desktop environment.
package platform

import (
	"os"
	"os/user"
	"runtime"
	"strings"
	"sync"
)

// UnknownUser is reported when the current user cannot be resolved.
const UnknownUser = "unknown_user"

// Environment is the tag of the user's OS or desktop shell. It selects
// which command template of a preference applies.
type Environment string

const (
	EnvGNOME        Environment = "gnome"
	EnvMacOS        Environment = "macos"
	EnvWindows      Environment = "windows"
	EnvLinuxUnknown Environment = "linux-unknown"
)

// CommandKey returns the key under a preference's "commands" object that
// holds this environment's template, or "" when the environment has none.
func (e Environment) CommandKey() string {
	switch {
	case strings.Contains(string(e), "gnome"):
		return string(EnvGNOME)
	case e == EnvMacOS:
		return string(EnvMacOS)
	case e == EnvWindows:
		return string(EnvWindows)
	default:
		return ""
	}
}

// Detect returns the environment tag for the running process.
func Detect() Environment {
	return detect(runtime.GOOS, os.Getenv)
}

func detect(goos string, getenv func(string) string) Environment {
	switch goos {
	case "darwin":
		return EnvMacOS
	case "windows":
		return EnvWindows
	}

	for _, name := range []string{"XDG_CURRENT_DESKTOP", "DESKTOP_SESSION"} {
		desktop := getenv(name)
		if desktop == "" {
			continue
		}
		if strings.Contains(strings.ToLower(desktop), "gnome") {
			return EnvGNOME
		}
		return Environment("linux-" + desktop)
	}

	return EnvLinuxUnknown
}

// CurrentUsername returns the login name of the current user.
func CurrentUsername() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return UnknownUser
	}
	return u.Username
}

// Identity caches the username and environment tag. Each value is computed
// once; concurrent first readers wait for the single initialization.
type Identity struct {
	username    func() string
	environment func() Environment
}

// NewIdentity returns an Identity backed by the given lookups. Nil lookups
// default to CurrentUsername and Detect.
func NewIdentity(username func() string, environment func() Environment) *Identity {
	if username == nil {
		username = CurrentUsername
	}
	if environment == nil {
		environment = Detect
	}
	return &Identity{
		username:    sync.OnceValue(username),
		environment: sync.OnceValue(environment),
	}
}

// Fixed returns an Identity that always reports the given values.
func Fixed(username string, env Environment) *Identity {
	return NewIdentity(
		func() string { return username },
		func() Environment { return env },
	)
}

// Username returns the cached username.
func (i *Identity) Username() string {
	return i.username()
}

// Environment returns the cached environment tag.
func (i *Identity) Environment() Environment {
	return i.environment()
}
