package location

// ErrorKind classifies sensing failures. Permission pending is a bootstrap
// condition, not a hard error: the UI should run its permission flow while
// the watcher stays alive.
type ErrorKind string

const (
	KindPermissionPending ErrorKind = "permission_pending"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindUnavailable       ErrorKind = "unavailable"
	KindTimeout           ErrorKind = "timeout"
)

// Error is a sensing failure delivered through the watcher.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

// Hard reports whether the failure should surface as a gps_error state.
// Permission pending is bootstrap, not failure.
func (e *Error) Hard() bool {
	return e.Kind != KindPermissionPending
}

// Recoverable reports whether the watcher keeps retrying on its own.
// Permission denied is terminal until the user changes device settings.
func (e *Error) Recoverable() bool {
	return e.Kind != KindPermissionDenied
}

// ParseKind maps a wire string onto an ErrorKind.
func ParseKind(s string) (ErrorKind, bool) {
	switch ErrorKind(s) {
	case KindPermissionPending, KindPermissionDenied, KindUnavailable, KindTimeout:
		return ErrorKind(s), true
	}
	return "", false
}
