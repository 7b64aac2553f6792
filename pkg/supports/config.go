package supports

import (
	"fmt"
	"math"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/graph"
)

// Config holds the mechanical parameters of a support tree. Lengths are in
// millimetres, angles in radians.
type Config struct {
	// Pinhead geometry.
	HeadFrontRadius float64
	HeadBackRadius  float64
	HeadWidth       float64
	// HeadPenetration pushes the tip into the model. A negative value
	// keeps the whole tree that far away from the model surface.
	HeadPenetration float64

	PillarRadius   float64
	BridgeRadius   float64
	BaseRadius     float64
	BaseHeight     float64
	SafetyDistance float64

	// NormalCutoffAngle is the largest polar angle away from straight down
	// a surface normal may have and still receive a head.
	NormalCutoffAngle float64

	MaxSoloPillarHeight    float64
	MaxDualPillarHeight    float64
	PillarCascadeNeighbors int
	MaxBridgesOnPillar     int

	// BridgeSlope is the smallest angle a bridge may have to the
	// horizontal plane.
	BridgeSlope           float64
	MaxBridgeLength       float64
	MaxPillarLinkDistance float64

	ObjectElevation float64
}

// DefaultConfig matches the defaults of config.SLADefs.
func DefaultConfig() Config {
	return Config{
		HeadFrontRadius:        0.2,
		HeadBackRadius:         0.5,
		HeadWidth:              1.0,
		HeadPenetration:        0.5,
		PillarRadius:           0.5,
		BridgeRadius:           0.5,
		BaseRadius:             2.0,
		BaseHeight:             1.0,
		SafetyDistance:         0.5,
		NormalCutoffAngle:      150 * math.Pi / 180,
		MaxSoloPillarHeight:    15,
		MaxDualPillarHeight:    35,
		PillarCascadeNeighbors: 3,
		MaxBridgesOnPillar:     3,
		BridgeSlope:            math.Pi / 4,
		MaxBridgeLength:        10,
		MaxPillarLinkDistance:  10,
		ObjectElevation:        10,
	}
}

// ConfigFromStore reads the support settings from an option store.
// Diameters in the store become radii; angles are stored in degrees.
func ConfigFromStore(s *config.Store) (Config, error) {
	bridge, err := s.AbsValue(config.KeyBridgeDiameter)
	if err != nil {
		return Config{}, fmt.Errorf("support config: %w", err)
	}
	deg := func(key string) float64 { return s.Float(key) * math.Pi / 180 }
	return Config{
		HeadFrontRadius:        s.Float(config.KeyHeadFrontDiameter) / 2,
		HeadBackRadius:         s.Float(config.KeyHeadBackDiameter) / 2,
		HeadWidth:              s.Float(config.KeyHeadWidth),
		HeadPenetration:        s.Float(config.KeyHeadPenetration),
		PillarRadius:           s.Float(config.KeyPillarDiameter) / 2,
		BridgeRadius:           bridge / 2,
		BaseRadius:             s.Float(config.KeyBaseDiameter) / 2,
		BaseHeight:             s.Float(config.KeyBaseHeight),
		SafetyDistance:         s.Float(config.KeyBaseSafetyDistance),
		NormalCutoffAngle:      deg(config.KeyNormalCutoffAngle),
		MaxSoloPillarHeight:    s.Float(config.KeyMaxSoloPillarHeight),
		MaxDualPillarHeight:    s.Float(config.KeyMaxDualPillarHeight),
		PillarCascadeNeighbors: s.Int(config.KeyPillarCascadeNeighbors),
		MaxBridgesOnPillar:     s.Int(config.KeyMaxBridgesOnPillar),
		BridgeSlope:            deg(config.KeyCriticalAngle),
		MaxBridgeLength:        s.Float(config.KeyMaxBridgeLength),
		MaxPillarLinkDistance:  s.Float(config.KeyMaxPillarLinkDistance),
		ObjectElevation:        s.Float(config.KeyObjectElevation),
	}, nil
}

// Validate lists every violated constraint. It does not look at any
// geometry.
func (c Config) Validate() []string {
	var v []string
	positive := func(name string, f float64) {
		if !(f > 0) {
			v = append(v, fmt.Sprintf("%s must be positive, got %g", name, f))
		}
	}
	positive("head front radius", c.HeadFrontRadius)
	positive("head back radius", c.HeadBackRadius)
	positive("head width", c.HeadWidth)
	positive("pillar radius", c.PillarRadius)
	positive("bridge radius", c.BridgeRadius)
	positive("base height", c.BaseHeight)
	positive("max bridge length", c.MaxBridgeLength)
	positive("max pillar link distance", c.MaxPillarLinkDistance)
	positive("max solo pillar height", c.MaxSoloPillarHeight)

	if c.BaseRadius < c.PillarRadius {
		v = append(v, fmt.Sprintf("base radius %g is smaller than the pillar radius %g", c.BaseRadius, c.PillarRadius))
	}
	if c.BridgeRadius > c.PillarRadius {
		v = append(v, fmt.Sprintf("bridge radius %g exceeds the pillar radius %g", c.BridgeRadius, c.PillarRadius))
	}
	if c.SafetyDistance < 0 {
		v = append(v, fmt.Sprintf("safety distance must not be negative, got %g", c.SafetyDistance))
	}
	if c.ObjectElevation < 0 {
		v = append(v, fmt.Sprintf("object elevation must not be negative, got %g", c.ObjectElevation))
	}
	if c.NormalCutoffAngle <= 0 || c.NormalCutoffAngle > math.Pi {
		v = append(v, fmt.Sprintf("normal cutoff angle must be in (0, pi], got %g", c.NormalCutoffAngle))
	}
	if c.BridgeSlope <= 0 || c.BridgeSlope >= math.Pi/2 {
		v = append(v, fmt.Sprintf("bridge slope must be in (0, pi/2), got %g", c.BridgeSlope))
	}
	if c.MaxDualPillarHeight < c.MaxSoloPillarHeight {
		v = append(v, fmt.Sprintf("max dual pillar height %g is below the solo height %g", c.MaxDualPillarHeight, c.MaxSoloPillarHeight))
	}
	if c.PillarCascadeNeighbors < 2 {
		v = append(v, fmt.Sprintf("pillar cascade neighbors must be at least 2, got %d", c.PillarCascadeNeighbors))
	}
	if c.MaxBridgesOnPillar < 0 {
		v = append(v, fmt.Sprintf("max bridges on pillar must not be negative, got %d", c.MaxBridgesOnPillar))
	}
	return v
}

// Limits returns the bounds a tree built with c must respect.
func (c Config) Limits() graph.Limits {
	return graph.Limits{
		MaxSoloPillarHeight:    c.MaxSoloPillarHeight,
		MaxDualPillarHeight:    c.MaxDualPillarHeight,
		PillarCascadeNeighbors: c.PillarCascadeNeighbors,
		MaxBridgesOnPillar:     c.MaxBridgesOnPillar,
		BridgeSlope:            c.BridgeSlope,
		MaxBridgeLength:        c.MaxBridgeLength,
		MaxPillarLinkDistance:  c.MaxPillarLinkDistance,
	}
}

// linksNeeded is the number of cascade partners a ground pillar of height
// h must have.
func (c Config) linksNeeded(h float64) int {
	switch {
	case h > c.MaxDualPillarHeight:
		return 2
	case h > c.MaxSoloPillarHeight:
		return 1
	}
	return 0
}
