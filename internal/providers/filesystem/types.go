package filesystem

import (
	"context"
	"os"
)

// Lister returns the immediate entries of a directory, sorted by name.
type Lister interface {
	ReadDir(ctx context.Context, dir string) ([]os.FileInfo, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context, dir string) ([]os.FileInfo, error)

// ReadDir calls f.
func (f ListerFunc) ReadDir(ctx context.Context, dir string) ([]os.FileInfo, error) {
	return f(ctx, dir)
}

// ScopeAccessor grants access to a directory tree for the duration of a mount. The
// returned release func is called exactly once when the mount finishes.
type ScopeAccessor interface {
	Acquire(ctx context.Context, dir string) (release func(), err error)
}
