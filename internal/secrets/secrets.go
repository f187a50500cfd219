// Package secrets resolves secret values from configuration or files.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Load returns the secret named name, preferring the file over the inline
// value. The result is always trimmed. Both sources empty is an error.
func Load(name, file, inline string) (string, error) {
	if name = strings.TrimSpace(name); name == "" {
		name = "secret"
	}

	if file = strings.TrimSpace(file); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}

		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(inline); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s is not configured", name)
}
