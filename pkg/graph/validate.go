package graph

import "fmt"

// ValidationSeverity indicates whether a finding makes the tree unusable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // tree violates a constraint
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ElementKind names the arena slice a finding refers to.
type ElementKind int

const (
	ElementTree ElementKind = iota
	ElementHead
	ElementPillar
	ElementBridge
	ElementJunction
	ElementAnchor
)

func (k ElementKind) String() string {
	switch k {
	case ElementTree:
		return "tree"
	case ElementHead:
		return "head"
	case ElementPillar:
		return "pillar"
	case ElementBridge:
		return "bridge"
	case ElementJunction:
		return "junction"
	case ElementAnchor:
		return "anchor"
	default:
		return fmt.Sprintf("ElementKind(%d)", int(k))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Element  ElementKind        // which arena the element lives in
	ID       int                // handle of the element, -1 for tree level findings
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Element == ElementTree {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s %d: %s", e.Severity, e.Element, e.ID, e.Message)
}

// Limits are the mechanical bounds a finished tree must respect.
type Limits struct {
	MaxSoloPillarHeight    float64
	MaxDualPillarHeight    float64
	PillarCascadeNeighbors int
	MaxBridgesOnPillar     int
	BridgeSlope            float64 // radians from horizontal
	MaxBridgeLength        float64
	MaxPillarLinkDistance  float64
}

// Tolerance absorbs rounding in the geometric comparisons.
const Tolerance = 1e-9

// Validate runs the structural and geometric checks and returns every
// finding. An empty slice means the tree is sound. The tree is not
// modified.
func Validate(t *Tree, lim Limits) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateReferences(t)...)
	errs = append(errs, validateCounters(t, lim)...)
	errs = append(errs, validateGeometry(t, lim)...)
	return errs
}

// Errors filters findings down to those with SeverityError.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Structural checks
// ---------------------------------------------------------------------------

func (t *Tree) validPillar(id PillarID) bool { return id >= 0 && int(id) < len(t.pillars) }
func (t *Tree) validHead(id HeadID) bool     { return id >= 0 && int(id) < len(t.heads) }
func (t *Tree) validBridge(id BridgeID) bool { return id >= 0 && int(id) < len(t.bridges) }

// validateReferences reports handles that point outside the arena.
func validateReferences(t *Tree) []ValidationError {
	var errs []ValidationError
	dangling := func(kind ElementKind, id int, format string, args ...any) {
		errs = append(errs, ValidationError{
			Element:  kind,
			ID:       id,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	for _, h := range t.heads {
		if h.PillarID != NoPillar && !t.validPillar(h.PillarID) {
			dangling(ElementHead, int(h.ID), "references non-existent pillar %d", h.PillarID)
		}
		if h.BridgeID != NoBridge && !t.validBridge(h.BridgeID) {
			dangling(ElementHead, int(h.ID), "references non-existent bridge %d", h.BridgeID)
		}
	}
	for _, p := range t.pillars {
		if p.StartsFromHead && !t.validHead(p.HeadID) {
			dangling(ElementPillar, int(p.ID), "starts from non-existent head %d", p.HeadID)
		}
		if p.Anchor != NoAnchor && (p.Anchor < 0 || int(p.Anchor) >= len(t.anchors)) {
			dangling(ElementPillar, int(p.ID), "references non-existent anchor %d", p.Anchor)
		}
		for _, bid := range p.BridgeIDs {
			if !t.validBridge(bid) {
				dangling(ElementPillar, int(p.ID), "references non-existent bridge %d", bid)
			}
		}
	}
	for _, b := range t.bridges {
		if b.From != NoPillar && !t.validPillar(b.From) {
			dangling(ElementBridge, int(b.ID), "starts at non-existent pillar %d", b.From)
		}
		if b.To != NoPillar && !t.validPillar(b.To) {
			dangling(ElementBridge, int(b.ID), "ends at non-existent pillar %d", b.To)
		}
		if b.HeadID != NoHead && !t.validHead(b.HeadID) {
			dangling(ElementBridge, int(b.ID), "leaves non-existent head %d", b.HeadID)
		}
		if b.Kind == Crossbridge && (b.From == NoPillar || b.To == NoPillar) {
			dangling(ElementBridge, int(b.ID), "crossbridge is missing a pillar")
		}
		if b.Kind == Crossbridge && t.validPillar(b.From) && t.validPillar(b.To) {
			if gf, gt := t.pillars[b.From].Group, t.pillars[b.To].Group; gf != gt {
				dangling(ElementBridge, int(b.ID), "joins pillars of groups %d and %d", gf, gt)
			}
		}
	}
	for _, a := range t.anchors {
		if !t.validPillar(a.PillarID) {
			dangling(ElementAnchor, int(a.ID), "references non-existent pillar %d", a.PillarID)
		}
	}
	return errs
}

// validateCounters checks the per pillar link and bridge caps.
func validateCounters(t *Tree, lim Limits) []ValidationError {
	var errs []ValidationError
	for _, p := range t.pillars {
		if p.Links > lim.PillarCascadeNeighbors {
			errs = append(errs, ValidationError{
				Element:  ElementPillar,
				ID:       int(p.ID),
				Message:  fmt.Sprintf("has %d links, limit is %d", p.Links, lim.PillarCascadeNeighbors),
				Severity: SeverityError,
			})
		}
		if p.Bridges > lim.MaxBridgesOnPillar {
			errs = append(errs, ValidationError{
				Element:  ElementPillar,
				ID:       int(p.ID),
				Message:  fmt.Sprintf("carries %d bridges, limit is %d", p.Bridges, lim.MaxBridgesOnPillar),
				Severity: SeverityError,
			})
		}
	}
	return errs
}
