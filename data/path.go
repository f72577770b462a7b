package data

import (
	"fmt"
	"path"
	"strings"
)

// CleanKey ensures the key always starts with a leading slash and contains
// no empty, "." or ".." elements.
func CleanKey(key string) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.ContainsRune(key, 0) {
		return "", fmt.Errorf("%w: '%s' contains NUL", ErrInvalidKey, key)
	}

	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}

	return path.Clean(key), nil
}

// ParentKey returns the grouping key of a member, which is the directory
// containing it. The root directory is its own parent.
func ParentKey(key string) string {
	return path.Dir(key)
}

// IsRoot reports whether key addresses the root directory.
func IsRoot(key string) bool {
	return key == "/"
}

// HasPrefix checks if key lies under prefix.
// Both values should be cleaned before calling.
func HasPrefix(key, prefix string) bool {
	// Root matches everything
	if prefix == "" || prefix == "/" {
		return true
	}

	if key == prefix {
		return true
	}

	return strings.HasPrefix(key, strings.TrimSuffix(prefix, "/")+"/")
}
