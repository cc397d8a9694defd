package procfile

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const maxNameLen = 128

var errEmptyName = errors.New("empty process label")

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errEmptyName
	}
	if len(name) > maxNameLen {
		return "", fmt.Errorf("label %q is too long (max %d characters)", name, maxNameLen)
	}
	for _, r := range name {
		if isAllowedNameRune(r) {
			continue
		}
		return "", fmt.Errorf("label %q contains invalid character %q", name, r)
	}
	return name, nil
}

// Labels are shown in the tab bar, so brackets and control runes are out.
func isAllowedNameRune(r rune) bool {
	if unicode.IsControl(r) {
		return false
	}
	switch r {
	case '[', ']':
		return false
	default:
		return true
	}
}
