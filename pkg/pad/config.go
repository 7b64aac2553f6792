package pad

import (
	"fmt"
	"math"

	"github.com/chazu/resin/pkg/config"
)

// minBrimSize is the narrowest brim a pad may have, in millimetres.
const minBrimSize = 0.1

// EmbedObject configures a pad that wraps around the model instead of
// lying beneath it.
type EmbedObject struct {
	Enabled bool
	// Everywhere extends the pad around the whole object footprint, not
	// only under the supports.
	Everywhere bool
	// ObjectGap is the clearance kept between the pad and the model.
	ObjectGap float64
	// Connector sticks bridge the gap every StickStride millimetres of
	// the model outline. A zero stride disables them.
	StickStride      float64
	StickWidth       float64
	StickPenetration float64
}

// Config describes the pad. Lengths are in millimetres, the slope is in
// radians from the horizontal.
type Config struct {
	// WallThickness is the floor thickness and the width of the wall top.
	WallThickness float64
	WallHeight    float64
	WallSlope     float64
	BrimSize      float64
	// MaxMergeDist joins islands closer than this into one pad.
	MaxMergeDist float64
	EmbedObject  EmbedObject
}

// DefaultConfig matches the defaults of config.SLADefs.
func DefaultConfig() Config {
	return Config{
		WallThickness: 2,
		WallHeight:    0,
		WallSlope:     math.Pi / 2,
		BrimSize:      1.6,
		MaxMergeDist:  50,
		EmbedObject: EmbedObject{
			ObjectGap:        1,
			StickStride:      10,
			StickWidth:       0.5,
			StickPenetration: 0.3,
		},
	}
}

// ConfigFromStore reads the pad settings from an option store.
func ConfigFromStore(s *config.Store) Config {
	return Config{
		WallThickness: s.Float(config.KeyPadWallThickness),
		WallHeight:    s.Float(config.KeyPadWallHeight),
		WallSlope:     s.Float(config.KeyPadWallSlope) * math.Pi / 180,
		BrimSize:      s.Float(config.KeyPadBrimSize),
		MaxMergeDist:  s.Float(config.KeyPadMaxMergeDistance),
		EmbedObject: EmbedObject{
			Enabled:          s.Bool(config.KeyPadAroundObject),
			Everywhere:       s.Bool(config.KeyPadAroundObjectEverywhere),
			ObjectGap:        s.Float(config.KeyPadObjectGap),
			StickStride:      s.Float(config.KeyPadConnectorStride),
			StickWidth:       s.Float(config.KeyPadConnectorWidth),
			StickPenetration: s.Float(config.KeyPadConnectorPenetration),
		},
	}
}

// FullHeight is the vertical extent of the pad.
func (c Config) FullHeight() float64 {
	return c.WallHeight + c.WallThickness
}

// WingDistance is the horizontal run of the sloped inner wall.
func (c Config) WingDistance() float64 {
	return c.WallHeight / math.Tan(c.WallSlope)
}

// BottomOffset is how far a full height wall at the configured slope
// reaches outward at its foot.
func (c Config) BottomOffset() float64 {
	return c.FullHeight() / math.Tan(c.WallSlope)
}

// Validate lists every violated constraint.
func (c Config) Validate() []string {
	var v []string
	if !(c.WallThickness > 0) {
		v = append(v, fmt.Sprintf("pad wall thickness must be positive, got %g", c.WallThickness))
	}
	if c.WallHeight < 0 {
		v = append(v, fmt.Sprintf("pad wall height must not be negative, got %g", c.WallHeight))
	}
	if !(c.WallSlope > 0 && c.WallSlope <= math.Pi/2) {
		v = append(v, fmt.Sprintf("pad wall slope must be in (0, pi/2], got %g", c.WallSlope))
	} else if c.BrimSize < minBrimSize || c.BottomOffset() > c.BrimSize+c.WingDistance() {
		v = append(v, "pad brim size is too small for the current configuration")
	}
	if c.MaxMergeDist < 0 {
		v = append(v, fmt.Sprintf("pad max merge distance must not be negative, got %g", c.MaxMergeDist))
	}
	if e := c.EmbedObject; e.Enabled {
		if e.ObjectGap < 0 {
			v = append(v, fmt.Sprintf("pad object gap must not be negative, got %g", e.ObjectGap))
		}
		if e.StickStride < 0 {
			v = append(v, fmt.Sprintf("connector stride must not be negative, got %g", e.StickStride))
		}
		if e.StickStride > 0 && !(e.StickWidth > 0) {
			v = append(v, fmt.Sprintf("connector width must be positive, got %g", e.StickWidth))
		}
		if e.StickPenetration < 0 {
			v = append(v, fmt.Sprintf("connector penetration must not be negative, got %g", e.StickPenetration))
		}
	}
	return v
}
