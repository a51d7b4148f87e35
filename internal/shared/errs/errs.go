// Package errs defines the error taxonomy shared by tree builders and the persister.
//
// Structural errors (bad paths, name collisions) are returned as typed errors so callers
// can match them with errors.As. Expected outcomes such as a failed verification are
// represented by sentinels carried in results rather than returned as errors.
package errs

import (
	"errors"
	"fmt"
)

// ErrPersistVerificationFailed reports that a verification signal resolved false and the
// destination file was removed.
var ErrPersistVerificationFailed = errors.New("persist verification failed")

// InvalidPathError is returned for empty or malformed paths.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid path %q", e.Path)
	}
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// ActionCanceledError is returned when a picker or selection produced no result.
type ActionCanceledError struct {
	Action string
}

func (e *ActionCanceledError) Error() string {
	return e.Action + ": action canceled"
}

// UnsupportedPlatformError is returned when a capability has no implementation for the
// current environment. It is never retried.
type UnsupportedPlatformError struct {
	Capability string
	Platform   string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("%s is not supported on %s", e.Capability, e.Platform)
}

// NameCollisionError is returned when two children of one folder share a name.
type NameCollisionError struct {
	Parent string
	Name   string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("duplicate entry %q in folder %q", e.Name, e.Parent)
}

// InvalidPath is a shorthand constructor.
func InvalidPath(path, reason string) error {
	return &InvalidPathError{Path: path, Reason: reason}
}

// IsCanceled reports whether err is an ActionCanceledError.
func IsCanceled(err error) bool {
	var target *ActionCanceledError
	return errors.As(err, &target)
}

// IsUnsupported reports whether err is an UnsupportedPlatformError.
func IsUnsupported(err error) bool {
	var target *UnsupportedPlatformError
	return errors.As(err, &target)
}
