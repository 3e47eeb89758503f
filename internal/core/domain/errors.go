package domain

import "go.trai.ch/zerr"

var (
	// ErrInvalidName is returned when a dependency or manifest name is empty or carries
	// leading/trailing whitespace.
	ErrInvalidName = zerr.New("invalid name")

	// ErrInvalidVersion is returned when a version string cannot be parsed.
	ErrInvalidVersion = zerr.New("invalid version")

	// ErrInvalidRequirement is returned when a requirement clause cannot be parsed.
	ErrInvalidRequirement = zerr.New("invalid requirement")

	// ErrCycleDetected is returned when a graph that must be acyclic contains a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrInconsistentResolution is returned when the resolver produced an assignment that does
	// not satisfy its own dependencies. It indicates a bug in the engine, not bad input.
	ErrInconsistentResolution = zerr.New("inconsistent resolution")

	// ErrResolutionFailed is returned by workflows when no consistent assignment exists.
	ErrResolutionFailed = zerr.New("could not resolve dependencies")

	// ErrUnresolved is returned when a failed resolution is asked for its manifests.
	ErrUnresolved = zerr.New("resolution has no manifests")

	// ErrParse is returned for malformed lockfile text.
	ErrParse = zerr.New("malformed lockfile")

	// ErrMissingDependenciesMarker is returned when the DEPENDENCIES block is absent or misplaced.
	ErrMissingDependenciesMarker = zerr.New("expected DEPENDENCIES marker")

	// ErrUnknownSourceType is returned when a lockfile block header names no registered source type.
	ErrUnknownSourceType = zerr.New("unknown source type")

	// ErrUnserializable is returned when a resolution holds a value the lockfile format cannot
	// represent, such as a manifest without a version or a source without a remote.
	ErrUnserializable = zerr.New("value cannot be written to the lockfile")

	// ErrRoundTrip is returned when compiled lockfile text changes after a parse/recompile cycle.
	ErrRoundTrip = zerr.New("lockfile round trip mismatch")

	// ErrLockfileNotFound is returned when a workflow needs a lockfile that does not exist.
	ErrLockfileNotFound = zerr.New("lockfile not found")

	// ErrLockfileOutdated is returned by check when the lockfile no longer satisfies the specfile.
	ErrLockfileOutdated = zerr.New("lockfile does not satisfy the specfile")

	// ErrNotLocked is returned when update names a package the lockfile does not hold.
	ErrNotLocked = zerr.New("package is not in the lockfile")
)
