package auth

import (
	"fmt"
	"strings"
)

// parsePairs parses "left:right,left:right" lists. Only the first colon of
// an entry separates the halves, so bcrypt hashes survive intact.
func parsePairs(kind, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: config must not be empty", kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%s auth: invalid entry format", kind)
		}

		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s auth: entry halves must not be empty", kind)
		}

		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", kind)
	}

	return pairs, nil
}
