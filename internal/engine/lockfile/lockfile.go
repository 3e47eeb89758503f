// Package lockfile compiles resolutions to lockfile text and parses them back.
//
// The format is line based and meant to be read and diffed by humans:
//
//	PATH
//	  remote: ./vendor
//	  specs:
//	    butter (1.1)
//	    jam (1.2)
//	      butter (>= 1.0)
//
//	DEPENDENCIES
//	  jam (~> 1.2)
//
// Source blocks come in source type order, then by source identity. Everything inside a block is
// sorted by name, so equal resolutions always produce equal text.
package lockfile

import (
	"strings"

	"go.trai.ch/larder/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	dependenciesMarker = "DEPENDENCIES"
	specsMarker        = "specs"
	remoteOption       = "remote"

	optionIndent     = "  "
	manifestIndent   = "    "
	dependencyIndent = "      "
)

// Lockfile compiles and parses lockfile text for a fixed list of source types.
type Lockfile struct {
	types []domain.SourceType
}

// New creates a Lockfile. The order of types is the order of source blocks in compiled text.
func New(types []domain.SourceType) *Lockfile {
	return &Lockfile{types: append([]domain.SourceType(nil), types...)}
}

func (l *Lockfile) typeIndex(lockName string) int {
	for i, t := range l.types {
		if t.LockName == lockName {
			return i
		}
	}
	return -1
}

// Save compiles r and checks that parsing and recompiling the text reproduces it exactly.
// A mismatch fails with ErrRoundTrip and no text is returned.
func (l *Lockfile) Save(r *domain.Resolution) (string, error) {
	text, err := l.Compile(r)
	if err != nil {
		return "", err
	}
	parsed, err := l.Parse(text)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrRoundTrip, "compiled lockfile does not parse"), "cause", err.Error())
	}
	again, err := l.Compile(parsed)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrRoundTrip, "parsed lockfile does not compile"), "cause", err.Error())
	}
	if again != text {
		return "", zerr.With(zerr.Wrap(domain.ErrRoundTrip, "recompiled lockfile differs"),
			"line", firstDifference(text, again))
	}
	return text, nil
}

// Load parses lockfile text into a Resolution.
func (l *Lockfile) Load(text string) (*domain.Resolution, error) {
	return l.Parse(text)
}

// firstDifference returns the 1-based number of the first line where a and b differ.
func firstDifference(a, b string) int {
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")
	for i := range min(len(al), len(bl)) {
		if al[i] != bl[i] {
			return i + 1
		}
	}
	return min(len(al), len(bl)) + 1
}

func lineError(sentinel error, msg string, lineNo int, line string) error {
	return zerr.With(zerr.With(zerr.Wrap(sentinel, msg), "line", lineNo), "text", line)
}
