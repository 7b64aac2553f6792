//go:build !manifold

// Package manifold binds the Manifold mesh boolean library. Without the
// "manifold" build tag only this stub is compiled and New reports
// ErrUnavailable, so callers fall back to the poly or sdfx kernel.
package manifold

import (
	"errors"

	"github.com/chazu/resin/pkg/kernel"
)

// ErrUnavailable is returned by New when built without -tags=manifold.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrUnavailable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
