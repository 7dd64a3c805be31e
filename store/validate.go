package store

import (
	"fmt"
	"unicode"
)

// maxNameLength bounds application names to fit the name column comfortably.
const maxNameLength = 255

// ValidateName checks a candidate application name against the naming rules:
// non-empty, at most 255 bytes, starting with a letter or digit, and
// containing only letters, digits, hyphens, and underscores. The first failed
// rule wins. Every write path runs this before touching storage.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalidName, maxNameLength)
	}

	runes := []rune(name)
	if !unicode.IsLetter(runes[0]) && !unicode.IsDigit(runes[0]) {
		return fmt.Errorf("%w: name must start with alphanumeric character", ErrInvalidName)
	}
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("%w: name can only contain alphanumeric characters, hyphens, and underscores", ErrInvalidName)
	}
	return nil
}
