// Package renderer is the boundary to the external poster generator. A
// Renderer is treated as an opaque blocking call: given a validated spec and
// a destination path, it either produces the file or fails. Bounding how
// many renders run at once is the worker pool's job, not the renderer's.
package renderer

import (
	"context"

	"posterforge/internal/poster"
)

// Renderer produces a poster file at destPath. Implementations must honor
// ctx cancellation where the underlying mechanism allows it and must never
// be invoked concurrently with the same destPath (callers guarantee one
// unique destination per job).
type Renderer interface {
	Render(ctx context.Context, spec poster.Spec, destPath string) error
}

// Func adapts a function to the Renderer interface. Used in tests.
type Func func(ctx context.Context, spec poster.Spec, destPath string) error

func (f Func) Render(ctx context.Context, spec poster.Spec, destPath string) error {
	return f(ctx, spec, destPath)
}
