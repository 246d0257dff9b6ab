// Package tryon provides the virtual try-on rendering boundary.
//
// The rendering provider is slow and asynchronous: a render is
// submitted, then its status is polled until completion. Callers see a
// single awaited Render call; submit/poll mechanics stay inside the
// adapter.
package tryon

import (
	"context"
)

// Renderer renders a garment onto a model image, returning the result
// image references.
type Renderer interface {
	Render(ctx context.Context, modelImage, garmentImage string) ([]string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, modelImage, garmentImage string) ([]string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, modelImage, garmentImage string) ([]string, error) {
	return f(ctx, modelImage, garmentImage)
}
