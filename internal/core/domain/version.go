package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Version is a concrete package version.
//
// Ordering is delegated to github.com/Masterminds/semver/v3. The original text is kept so that
// a lockfile writes back exactly what it read ("1.1" stays "1.1", not "1.1.0"), and the number
// of release segments is kept because pessimistic bumps depend on it.
type Version struct {
	v        *semver.Version
	raw      string
	segments int
}

// ParseVersion parses a version string such as "1", "1.2" or "1.2.3-beta.1".
func ParseVersion(raw string) (Version, error) {
	text := strings.TrimSpace(raw)
	v, err := semver.NewVersion(text)
	if err != nil {
		return Version{}, zerr.With(zerr.Wrap(ErrInvalidVersion, err.Error()), "version", raw)
	}
	return Version{v: v, raw: text, segments: countSegments(text)}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for tests and constants.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func countSegments(text string) int {
	core := strings.TrimPrefix(strings.TrimPrefix(text, "v"), "V")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	n := strings.Count(core, ".") + 1
	return min(n, 3)
}

// String returns the version as originally written.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v.v == nil
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.v == nil && o.v == nil:
		return 0
	case v.v == nil:
		return -1
	case o.v == nil:
		return 1
	}
	return v.v.Compare(o.v)
}

// release drops any prerelease tag.
func (v Version) release() Version {
	if v.v == nil || v.v.Prerelease() == "" {
		return v
	}
	r := semver.New(v.v.Major(), v.v.Minor(), v.v.Patch(), "", "")
	return Version{v: r, raw: r.String(), segments: v.segments}
}

// bump returns the exclusive upper bound of a pessimistic "~>" clause: the last release segment
// is dropped (when there is more than one) and the new last segment is incremented.
// 1 -> 2, 1.2 -> 2, 1.2.3 -> 1.3.
func (v Version) bump() Version {
	if v.v == nil {
		return v
	}
	var next semver.Version
	if v.segments >= 3 {
		next = v.v.IncMinor()
	} else {
		next = v.v.IncMajor()
	}
	return Version{v: &next, raw: next.String(), segments: v.segments}
}
