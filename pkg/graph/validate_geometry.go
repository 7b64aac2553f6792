package graph

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Geometric checks
// ---------------------------------------------------------------------------

func validateGeometry(t *Tree, lim Limits) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validatePillarHeights(t, lim)...)
	errs = append(errs, validateBridges(t, lim)...)
	return errs
}

// OnGround reports whether p ends on the ground level of t.
func (t *Tree) OnGround(p Pillar) bool {
	return !p.OnModel() && math.Abs(p.End.Z-t.GroundLevel) < 1e-6
}

// validatePillarHeights checks that tall ground pillars are braced: more
// than the solo height needs one link, more than the dual height two.
func validatePillarHeights(t *Tree, lim Limits) []ValidationError {
	var errs []ValidationError
	for _, p := range t.pillars {
		h := p.Height()
		if h < -Tolerance {
			errs = append(errs, ValidationError{
				Element:  ElementPillar,
				ID:       int(p.ID),
				Message:  fmt.Sprintf("top lies %.4f below the end", -h),
				Severity: SeverityError,
			})
			continue
		}
		if !t.OnGround(p) {
			continue
		}
		need := 0
		switch {
		case h > lim.MaxDualPillarHeight:
			need = 2
		case h > lim.MaxSoloPillarHeight:
			need = 1
		}
		if p.Links < need {
			errs = append(errs, ValidationError{
				Element:  ElementPillar,
				ID:       int(p.ID),
				Message:  fmt.Sprintf("height %.3f needs %d links, has %d", h, need, p.Links),
				Severity: SeverityError,
			})
		}
		if !p.HasBase {
			errs = append(errs, ValidationError{
				Element:  ElementPillar,
				ID:       int(p.ID),
				Message:  "stands on the ground without a base",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateBridges checks the slope band and the length bounds. Crossbridge
// length is bounded by the link distance stretched by the slope.
func validateBridges(t *Tree, lim Limits) []ValidationError {
	var errs []ValidationError
	crossMax := lim.MaxPillarLinkDistance / math.Cos(lim.BridgeSlope)
	for _, b := range t.bridges {
		l := b.Length()
		if l == 0 {
			errs = append(errs, ValidationError{
				Element:  ElementBridge,
				ID:       int(b.ID),
				Message:  "has zero length",
				Severity: SeverityWarning,
			})
			continue
		}
		if s := math.Abs(b.Slope()); s < lim.BridgeSlope-Tolerance {
			errs = append(errs, ValidationError{
				Element:  ElementBridge,
				ID:       int(b.ID),
				Message:  fmt.Sprintf("slope %.4f rad is inside the forbidden band below %.4f", s, lim.BridgeSlope),
				Severity: SeverityError,
			})
		}
		max := lim.MaxBridgeLength
		if b.Kind == Crossbridge {
			max = crossMax
		}
		if l > max+Tolerance {
			errs = append(errs, ValidationError{
				Element:  ElementBridge,
				ID:       int(b.ID),
				Message:  fmt.Sprintf("%s bridge length %.4f exceeds %.4f", b.Kind, l, max),
				Severity: SeverityError,
			})
		}
	}
	return errs
}
