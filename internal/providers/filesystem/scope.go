package filesystem

import (
	"context"
	"runtime"

	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
)

// NoScope grants access unconditionally. It is the default for platforms without
// sandboxed directory access.
type NoScope struct{}

// Acquire always succeeds.
func (NoScope) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// SandboxScope models security-scoped resource access as found on sandboxed desktop
// platforms. No such mechanism exists for this build, so every acquisition fails.
type SandboxScope struct {
	// Platform overrides the reported platform name.
	Platform string
}

// Acquire reports *errs.UnsupportedPlatformError.
func (s SandboxScope) Acquire(context.Context, string) (func(), error) {
	platform := s.Platform
	if platform == "" {
		platform = runtime.GOOS
	}
	return nil, &errs.UnsupportedPlatformError{Capability: "security-scoped directory access", Platform: platform}
}
