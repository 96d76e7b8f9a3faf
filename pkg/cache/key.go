package cache

import (
	"fmt"
	"sort"
	"strings"
)

const keyPrefix = "storesync"

// Key identifies one cached value.
type Key struct {
	// Store namespaces the key (base URL or tenant id).
	Store string

	// Kind is the kind of reference data (e.g. "category-tree").
	Kind string

	// Params distinguish values of the same kind (e.g. attribute code).
	Params map[string]string
}

// String generates a deterministic key string.
// Format: storesync:store:kind:param1=val1:param2=val2
//
// Example:
//
//	storesync:shop.example.com:attribute-options:attribute=manufacturer
func (k Key) String() string {
	parts := []string{keyPrefix}

	if store := strings.TrimSpace(k.Store); store != "" {
		parts = append(parts, store)
	}
	if kind := strings.Trim(k.Kind, ":"); kind != "" {
		parts = append(parts, kind)
	}

	// Params sorted for determinism.
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	return strings.Join(parts, ":")
}
