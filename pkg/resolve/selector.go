// Package resolve implements the version-selection and dependency
// resolution engine: expanding a requested set of add-ons into a full
// installation plan against a target platform, with conflict and
// incompatibility findings.
package resolve

import (
	"errors"
	"slices"

	"github.com/modman-dev/modman/pkg/catalog"
)

// ErrNoVersion is returned by Select when no candidate survives the
// mandatory platform filters.
var ErrNoVersion = errors.New("no version matches the requested filters")

// Filter narrows version selection. Empty fields skip their stage.
type Filter struct {
	Loader      string
	GameVersion string

	// RequireRelease prefers release-tier versions, but falls back to the
	// unfiltered set when a project has published no releases at all for
	// the platform: stability is a soft preference, never a reason to fail
	// on its own.
	RequireRelease bool
}

// Select picks the single best version from candidates: filter by game
// version, then loader, then soft-filter by release tier, and finally take
// the most recently published survivor. Select is a pure function of its
// inputs; candidates are never mutated.
func Select(candidates []*catalog.Version, f Filter) (*catalog.Version, error) {
	result := slices.Clone(candidates)

	if f.GameVersion != "" {
		kept := result[:0:0]
		for _, v := range result {
			if v.SupportsGameVersion(f.GameVersion) {
				kept = append(kept, v)
			}
		}
		result = kept
	}
	if f.Loader != "" {
		kept := result[:0:0]
		for _, v := range result {
			if v.SupportsLoader(f.Loader) {
				kept = append(kept, v)
			}
		}
		result = kept
	}
	if len(result) == 0 {
		return nil, ErrNoVersion
	}

	if f.RequireRelease {
		releases := result[:0:0]
		for _, v := range result {
			if v.Channel == catalog.ChannelRelease {
				releases = append(releases, v)
			}
		}
		if len(releases) > 0 {
			result = releases
		}
	}

	slices.SortStableFunc(result, func(a, b *catalog.Version) int {
		return b.DatePublished.Compare(a.DatePublished)
	})
	return result[0], nil
}
