// semver.go provides package version normalization and ordering used when listing
// and unlisting the versions of a package registration.
package validation

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
)

// NormalizeVersion returns the canonical form of a version ("1.0" -> "1.0.0", "v2.1.0" -> "2.1.0").
// Unparseable input is returned lower-cased and trimmed.
func NormalizeVersion(versionStr string) string {
	v, err := version.NewVersion(versionStr)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(versionStr))
	}
	return v.String()
}

// SortVersionsDescending orders items newest first by the version returned from key.
// Unparseable versions sort after every valid one, in lexical order.
func SortVersionsDescending[T any](items []T, key func(T) string) {
	parsed := make(map[string]*version.Version, len(items))
	for _, it := range items {
		k := key(it)
		if _, seen := parsed[k]; seen {
			continue
		}
		v, err := version.NewVersion(k)
		if err != nil {
			v = nil
		}
		parsed[k] = v
	}

	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := key(items[i]), key(items[j])
		vi, vj := parsed[ki], parsed[kj]
		switch {
		case vi != nil && vj != nil:
			return vi.GreaterThan(vj)
		case vi != nil:
			return true
		case vj != nil:
			return false
		default:
			return ki < kj
		}
	})
}
