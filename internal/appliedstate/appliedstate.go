// Package appliedstate reads and writes the applied modpack version marker
// (spec §4.8): a one-line JSON string, defaulting to "0.0.0" when absent,
// tolerating and reproducing surrounding quotes.
package appliedstate

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/caedis/modengine/internal/config"
)

const defaultVersion = "0.0.0"

// Load reads the applied version marker, defaulting to "0.0.0" if the file
// is absent. Surrounding quotes are tolerated whether or not the content is
// valid JSON (spec §4.8).
func Load(p config.Paths) (string, error) {
	data, err := os.ReadFile(p.VersionFile())
	if os.IsNotExist(err) {
		return defaultVersion, nil
	}
	if err != nil {
		return "", err
	}

	var s string
	if jsonErr := json.Unmarshal(data, &s); jsonErr == nil {
		if s == "" {
			return defaultVersion, nil
		}
		return s, nil
	}

	trimmed := strings.TrimSpace(string(data))
	trimmed = strings.Trim(trimmed, `"`)
	if trimmed == "" {
		return defaultVersion, nil
	}
	return trimmed, nil
}

// Save atomically writes the applied version marker as a quoted JSON
// string.
func Save(p config.Paths, version string) error {
	data, err := json.Marshal(version)
	if err != nil {
		return err
	}
	return config.AtomicWriteFile(p.VersionFile(), data)
}
