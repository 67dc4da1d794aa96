package preferences

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qpg-app/qpg/internal/platform"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind Kind
		want Scalar
	}{
		{"float", "48", KindFloat, Float(48)},
		{"fractional float", "1.25", KindFloat, Float(1.25)},
		{"float downgrade", "big", KindFloat, String("big")},
		{"infinity downgrades", "inf", KindFloat, String("inf")},
		{"bool true", "true", KindBool, Bool(true)},
		{"bool false", "false", KindBool, Bool(false)},
		{"bool downgrade", "yes", KindBool, String("yes")},
		{"string", "Cantarell 14", KindString, String("Cantarell 14")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.text, tt.kind))
		})
	}
}

func TestScalar_String(t *testing.T) {
	assert.Equal(t, "24", Float(24.0).String())
	assert.Equal(t, "1.5", Float(1.5).String())
	assert.Equal(t, "false", Bool(false).String())
	assert.Equal(t, "'Cantarell 11'", String("'Cantarell 11'").String())
}

func TestSetting_DefaultDrivesCurrent(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Scalar
	}{
		{"string true stays string", `{"default":"on","current":"true"}`, String("true")},
		{"numeric string into float", `{"default":1.0,"current":"2.5"}`, Float(2.5)},
		{"bool string into bool", `{"default":false,"current":"true"}`, Bool(true)},
		{"mismatch downgrades", `{"default":1.0,"current":true}`, String("true")},
		{"missing current uses default", `{"default":24.0}`, Float(24)},
		{"missing default sniffs current", `{"current":false}`, Bool(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Setting
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &s))
			assert.Equal(t, tt.want, s.Current)
		})
	}

	var s Setting
	assert.Error(t, json.Unmarshal([]byte(`{"commands":{}}`), &s))
}

func TestSet_PreservesOrder(t *testing.T) {
	doc := `{"zeta":{"default":1},"alpha":{"default":true},"mid":{"default":"x"}}`

	set, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, set.Keys())

	out, err := json.Marshal(set)
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, set.Keys(), again.Keys())
}

func TestParse_UnwrapsPreferences(t *testing.T) {
	set, err := Parse([]byte(`{"preferences":{"zoom":{"default":1.0,"current":2.0}}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zoom"}, set.Keys())

	zoom, _ := set.Get("zoom")
	assert.Equal(t, Float(2), zoom.Current)
}

func TestParse_RejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	set, err := LoadDefaults("")
	require.NoError(t, err)

	assert.Equal(t, "zoom", set.Keys()[0])
	assert.Equal(t, 8, set.Len())

	cursor, ok := set.Get("cursor_size")
	require.True(t, ok)
	assert.Equal(t, Float(24), cursor.Current)
	assert.Equal(t, "gsettings set org.gnome.desktop.interface cursor-size 24", cursor.CommandLine(platform.EnvGNOME))
	assert.Empty(t, cursor.CommandLine(platform.EnvMacOS))
}

func TestFilter(t *testing.T) {
	set, err := LoadDefaults("")
	require.NoError(t, err)

	gnome := Filter(set, platform.EnvGNOME)
	zoom, _ := gnome.Get("zoom")
	assert.Equal(t, map[string]string{"gnome": "gsettings set org.gnome.desktop.interface text-scaling-factor"}, zoom.Commands)

	other := Filter(set, platform.Environment("linux-KDE"))
	zoom, _ = other.Get("zoom")
	assert.Empty(t, zoom.Commands)
	assert.Empty(t, other.Matchable(platform.Environment("linux-KDE")))

	// The source set is untouched.
	original, _ := set.Get("zoom")
	assert.Len(t, original.Commands, 3)
}

func TestSet_Templates(t *testing.T) {
	set, err := LoadDefaults("")
	require.NoError(t, err)

	templates := set.Templates(platform.Environment("ubuntu:gnome"))
	assert.Len(t, templates, 8)
	assert.Contains(t, templates, "gsettings set org.gnome.desktop.a11y.magnifier mag-factor")
	assert.Empty(t, set.Templates(platform.EnvWindows))
}

func TestSet_FindByTemplate(t *testing.T) {
	set, err := LoadDefaults("")
	require.NoError(t, err)

	key, ok := set.FindByTemplate(platform.EnvGNOME, "  gsettings set org.gnome.desktop.interface cursor-size ")
	assert.True(t, ok)
	assert.Equal(t, "cursor_size", key)

	_, ok = set.FindByTemplate(platform.EnvGNOME, "gsettings set org.gnome.desktop.interface cursor")
	assert.False(t, ok)
	_, ok = set.FindByTemplate(platform.EnvGNOME, "")
	assert.False(t, ok)
}

func TestSet_CloneIsDeep(t *testing.T) {
	set, err := LoadDefaults("")
	require.NoError(t, err)

	clone := set.Clone()
	zoom, _ := clone.Get("zoom")
	zoom.Apply("2")
	zoom.Commands["gnome"] = "changed"
	*zoom.LowerBound = 0

	original, _ := set.Get("zoom")
	assert.Equal(t, Float(1), original.Current)
	assert.Equal(t, "gsettings set org.gnome.desktop.interface text-scaling-factor", original.Commands["gnome"])
	assert.Equal(t, 0.5, *original.LowerBound)
}

func TestParse_WrapperKeyIsCaseSensitive(t *testing.T) {
	for _, key := range []string{"Preferences", "PREFERENCES"} {
		t.Run(key, func(t *testing.T) {
			doc := `{"` + key + `":{"default":1.0,"current":2.0},"zoom":{"default":1.0,"current":1.5}}`

			set, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, []string{key, "zoom"}, set.Keys())

			setting, ok := set.Get(key)
			require.True(t, ok)
			assert.Equal(t, Float(2), setting.Current)
		})
	}
}
