// Package enums holds the string enums shared by the database models and
// the HTTP payloads.
package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of set equal to value.
func parse[T ~string](set []T, value, kind string) (T, error) {
	if i := slices.Index(set, T(value)); i >= 0 {
		return set[i], nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
