package security

// SecurityPolicy defines the security configuration.
type SecurityPolicy struct {
	// CommandLevel determines what happens to an authorized command.
	// "always" - ask the user before running it
	// "queue"  - hold it for approval in the task queue
	// "never"  - run it right away
	CommandLevel ConfirmLevel `mapstructure:"command_level"`

	// StartupApps lists the bare executable names that may be launched
	// detached at login.
	StartupApps []string `mapstructure:"startup_apps"`
}

// ConfirmLevel represents the command confirmation level.
type ConfirmLevel string

const (
	ConfirmAlways ConfirmLevel = "always"
	ConfirmQueue  ConfirmLevel = "queue"
	ConfirmNever  ConfirmLevel = "never"
)

// DefaultStartupApps are the applications allowed at login out of the box.
var DefaultStartupApps = []string{"gnome-tweaks", "mousepad"}

// DefaultPolicy returns the default security policy.
func DefaultPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		CommandLevel: ConfirmNever,
		StartupApps:  append([]string(nil), DefaultStartupApps...),
	}
}
