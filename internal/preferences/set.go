package preferences

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qpg-app/qpg/internal/platform"
)

// Set is an insertion-ordered collection of settings keyed by name.
// The zero value is an empty set ready to use.
type Set struct {
	keys     []string
	settings map[string]*Setting
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{settings: make(map[string]*Setting)}
}

// Put stores setting under key. A key that already exists keeps its position.
func (s *Set) Put(key string, setting *Setting) {
	if s.settings == nil {
		s.settings = make(map[string]*Setting)
	}
	if _, ok := s.settings[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.settings[key] = setting
}

// Get returns the setting stored under key.
func (s *Set) Get(key string) (*Setting, bool) {
	if s == nil {
		return nil, false
	}
	setting, ok := s.settings[key]
	return setting, ok
}

// Keys returns the keys in insertion order.
func (s *Set) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Len returns the number of settings.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	c := NewSet()
	if s == nil {
		return c
	}
	for _, key := range s.keys {
		c.Put(key, s.settings[key].clone())
	}
	return c
}

// Filter derives the set seen from env: every setting keeps only the
// command template under env's command key.
func Filter(s *Set, env platform.Environment) *Set {
	filtered := NewSet()
	if s == nil {
		return filtered
	}
	commandKey := env.CommandKey()
	for _, key := range s.keys {
		setting := s.settings[key].clone()
		commands := make(map[string]string, 1)
		if template, ok := setting.Commands[commandKey]; ok && commandKey != "" {
			commands[commandKey] = template
		}
		setting.Commands = commands
		filtered.Put(key, setting)
	}
	return filtered
}

// Restrict returns a set holding only key, or an empty set.
func (s *Set) Restrict(key string) *Set {
	restricted := NewSet()
	if setting, ok := s.Get(key); ok {
		restricted.Put(key, setting.clone())
	}
	return restricted
}

// Matchable returns, in order, the keys that have a non-empty command
// template for env.
func (s *Set) Matchable(env platform.Environment) []string {
	if s == nil {
		return nil
	}
	var keys []string
	for _, key := range s.keys {
		if s.settings[key].Template(env) != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Templates returns the distinct non-empty command templates for env.
func (s *Set) Templates(env platform.Environment) []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var templates []string
	for _, key := range s.keys {
		template := s.settings[key].Template(env)
		if template == "" {
			continue
		}
		if _, dup := seen[template]; dup {
			continue
		}
		seen[template] = struct{}{}
		templates = append(templates, template)
	}
	return templates
}

// FindByTemplate returns the first key whose template for env equals the
// trimmed base command exactly.
func (s *Set) FindByTemplate(env platform.Environment, baseCommand string) (string, bool) {
	if s == nil {
		return "", false
	}
	base := strings.TrimSpace(baseCommand)
	if base == "" {
		return "", false
	}
	for _, key := range s.keys {
		if s.settings[key].Template(env) == base {
			return key, true
		}
	}
	return "", false
}

// MarshalJSON writes the settings as a JSON object in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if s != nil {
		for i, key := range s.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(s.settings[key])
			if err != nil {
				return nil, fmt.Errorf("setting %q: %w", key, err)
			}
			buf.Write(name)
			buf.WriteByte(':')
			buf.Write(value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping its key order.
func (s *Set) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("preferences must be a JSON object, got %v", tok)
	}

	decoded := NewSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var setting Setting
		if err := dec.Decode(&setting); err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
		decoded.Put(key, &setting)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = *decoded
	return nil
}

// Parse decodes a preference document. A document with a top-level
// "preferences" key (exact case) is unwrapped to that key's object first.
func Parse(data []byte) (*Set, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err == nil {
		if wrapped, ok := top["preferences"]; ok {
			inner := bytes.TrimSpace(wrapped)
			if len(inner) > 0 && inner[0] == '{' {
				data = inner
			}
		}
	}

	set := NewSet()
	if err := json.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return set, nil
}
