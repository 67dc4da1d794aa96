package preferences

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

//go:embed defaults.json
var bundledDefaults []byte

// LoadDefaults returns the fallback preference set. A non-empty path
// replaces the bundled document with a JSON or JSONC file.
func LoadDefaults(path string) (*Set, error) {
	data := bundledDefaults
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read defaults file: %w", err)
		}
	}

	set, err := Parse(jsonc.ToJSON(data))
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("defaults document %q holds no settings", path)
	}
	return set, nil
}
