package security

import (
	"fmt"
	"slices"
	"strings"

	qerrors "github.com/qpg-app/qpg/internal/errors"
)

// DetachedMarker must end a startup application command line.
const DetachedMarker = " &"

var (
	// ErrUnauthorized matches every rejection of a base command.
	ErrUnauthorized = qerrors.New(qerrors.CodeUnauthorizedCommand, "unauthorized command")

	// ErrMalformed matches every command line of the wrong shape.
	ErrMalformed = qerrors.New(qerrors.CodeMalformedCommand, "malformed command")
)

// Decision is an approved command.
type Decision struct {
	Program string
	Args    []string

	// Base is the command without its trailing value; Value is that value.
	// Both are empty for startup applications.
	Base  string
	Value string

	// Detached is set for startup applications.
	Detached bool

	// Level is the confirmation the policy asks for before running.
	Level ConfirmLevel
}

// CommandLine returns the approved command as one string.
func (d *Decision) CommandLine() string {
	line := strings.Join(append([]string{d.Program}, d.Args...), " ")
	if d.Detached {
		line += DetachedMarker
	}
	return line
}

// Authorizer approves or rejects candidate command lines.
type Authorizer struct {
	policy *SecurityPolicy
}

// NewAuthorizer creates an Authorizer. A nil policy uses DefaultPolicy.
func NewAuthorizer(policy *SecurityPolicy) *Authorizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Authorizer{policy: policy}
}

// Authorize checks commandLine against allowlist. It returns an error
// matching ErrMalformed or ErrUnauthorized when the command must not run.
func (a *Authorizer) Authorize(commandLine string, allowlist Allowlist) (*Decision, error) {
	parts := strings.Fields(commandLine)
	if len(parts) < 2 {
		return nil, qerrors.Wrap(qerrors.CodeMalformedCommand,
			fmt.Sprintf("%q must be a base command followed by one value", commandLine), nil)
	}

	base := strings.Join(parts[:len(parts)-1], " ")
	if !allowlist.Contains(base) {
		return nil, qerrors.Wrap(qerrors.CodeUnauthorizedCommand,
			fmt.Sprintf("base command %q is not allowed", base), nil)
	}

	return &Decision{
		Program: parts[0],
		Args:    parts[1:],
		Base:    base,
		Value:   parts[len(parts)-1],
		Level:   a.level(),
	}, nil
}

// AuthorizeStartupApp checks a startup application launch. The command
// line must end with the detached marker and name, with no arguments, an
// executable from the policy's startup allowlist.
func (a *Authorizer) AuthorizeStartupApp(commandLine string) (*Decision, error) {
	if !strings.HasSuffix(commandLine, DetachedMarker) {
		return nil, qerrors.Wrap(qerrors.CodeMalformedCommand,
			fmt.Sprintf("startup command %q must end with %q", commandLine, DetachedMarker), nil)
	}

	app := strings.TrimSpace(strings.TrimSuffix(commandLine, DetachedMarker))
	if app == "" || !slices.Contains(a.policy.StartupApps, app) {
		return nil, qerrors.Wrap(qerrors.CodeUnauthorizedCommand,
			fmt.Sprintf("startup application %q is not allowed", app), nil)
	}

	return &Decision{
		Program:  app,
		Detached: true,
		Level:    a.level(),
	}, nil
}

func (a *Authorizer) level() ConfirmLevel {
	switch a.policy.CommandLevel {
	case ConfirmAlways, ConfirmQueue:
		return a.policy.CommandLevel
	default:
		return ConfirmNever
	}
}
