package preferences

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"

	"github.com/qpg-app/qpg/internal/platform"
)

// Setting is one accessibility preference.
type Setting struct {
	LowerBound *float64
	UpperBound *float64
	Default    Scalar
	Current    Scalar

	// Commands maps an environment's command key ("gnome", "macos",
	// "windows") to the command template that applies a value.
	Commands map[string]string
}

type settingWire struct {
	LowerBound *float64          `json:"lower_bound"`
	UpperBound *float64          `json:"upper_bound"`
	Default    json.RawMessage   `json:"default,omitempty"`
	Current    json.RawMessage   `json:"current,omitempty"`
	Commands   map[string]string `json:"commands"`
}

// Template returns the trimmed command template for env, or "".
func (s *Setting) Template(env platform.Environment) string {
	key := env.CommandKey()
	if key == "" {
		return ""
	}
	return strings.TrimSpace(s.Commands[key])
}

// CommandLine returns the template for env followed by the current value,
// or "" when env has no template.
func (s *Setting) CommandLine(env platform.Environment) string {
	template := s.Template(env)
	if template == "" {
		return ""
	}
	return template + " " + s.Current.String()
}

// Apply sets the current value from text, coerced into the variant of the
// existing current value.
func (s *Setting) Apply(text string) {
	s.Current = Coerce(text, s.Current.Kind())
}

func (s *Setting) clone() *Setting {
	c := *s
	if s.LowerBound != nil {
		v := *s.LowerBound
		c.LowerBound = &v
	}
	if s.UpperBound != nil {
		v := *s.UpperBound
		c.UpperBound = &v
	}
	c.Commands = maps.Clone(s.Commands)
	return &c
}

// MarshalJSON implements json.Marshaler.
func (s *Setting) MarshalJSON() ([]byte, error) {
	def, err := json.Marshal(s.Default)
	if err != nil {
		return nil, err
	}
	cur, err := json.Marshal(s.Current)
	if err != nil {
		return nil, err
	}
	commands := s.Commands
	if commands == nil {
		commands = map[string]string{}
	}
	return json.Marshal(settingWire{
		LowerBound: s.LowerBound,
		UpperBound: s.UpperBound,
		Default:    def,
		Current:    cur,
		Commands:   commands,
	})
}

// UnmarshalJSON decodes the default first and uses its variant for the
// current value. Without a default, the current value's own variant is used.
func (s *Setting) UnmarshalJSON(data []byte) error {
	var wire settingWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	hasDefault := len(wire.Default) > 0 && string(wire.Default) != "null"
	hasCurrent := len(wire.Current) > 0 && string(wire.Current) != "null"

	var def, cur Scalar
	switch {
	case hasDefault:
		if err := def.UnmarshalJSON(wire.Default); err != nil {
			return err
		}
		cur = def
		if hasCurrent {
			var err error
			if cur, err = decodeAs(wire.Current, def.Kind()); err != nil {
				return err
			}
		}
	case hasCurrent:
		if err := cur.UnmarshalJSON(wire.Current); err != nil {
			return err
		}
		def = cur
	default:
		return errors.New("setting has neither a default nor a current value")
	}

	*s = Setting{
		LowerBound: wire.LowerBound,
		UpperBound: wire.UpperBound,
		Default:    def,
		Current:    cur,
		Commands:   wire.Commands,
	}
	if s.Commands == nil {
		s.Commands = map[string]string{}
	}
	return nil
}
