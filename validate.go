package kiln

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// reservedKeys are names that collide with the accessor and container
// surface; registering them would make factory code ambiguous to read.
var reservedKeys = map[string]bool{
	"get":     true,
	"resolve": true,
	"preload": true,
	"dispose": true,
	"reset":   true,
}

// buildRegistry validates a registration batch and normalizes every value
// into a Factory. This runs once at New; the resolution path never
// re-validates.
func buildRegistry(factories Factories) (map[string]Factory, error) {
	registry := make(map[string]Factory, len(factories))

	for key, v := range factories {
		if key == "" {
			return nil, fmt.Errorf("registration: empty key")
		}
		if reservedKeys[key] {
			return nil, fmt.Errorf("registration: key %q is reserved", key)
		}
		if v == nil {
			return nil, fmt.Errorf("registration: key %q has nil value", key)
		}

		f := wrapFactory(v)
		if f.fn == nil {
			return nil, fmt.Errorf("registration: key %q has nil factory function", key)
		}
		registry[key] = f
	}

	return registry, nil
}

// suggestThreshold is the maximum edit distance for a fuzzy suggestion.
const suggestThreshold = 3

// closestKey returns the registered key closest to the unknown key, or ""
// when nothing scores within the threshold.
func closestKey(key string, candidates []string) string {
	best := ""
	bestDist := suggestThreshold + 1

	for _, cand := range candidates {
		d := levenshtein.ComputeDistance(key, cand)
		if d < bestDist {
			best = cand
			bestDist = d
		}
	}

	// A suggestion further away than the key is long is noise.
	if bestDist > len(key) {
		return ""
	}
	return best
}
