package config

import (
	"math"
	"sort"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Def describes one option.
type Def struct {
	Key      string
	Kind     Kind
	Default  Value
	Label    string
	Tooltip  string
	Category string
	Unit     string

	// Min and Max bound numeric values and every element of numeric lists.
	Min, Max float64

	// EnumLabels names the enum values by index.
	EnumLabels []string

	// RatioOver names the Float option a FloatOrPercent percentage is
	// taken of.
	RatioOver string
}

// Defs is a registry of option definitions.
type Defs struct {
	byKey map[string]*Def
	order []string
}

// NewDefs builds a registry. Unset Min/Max are widened to the full range.
func NewDefs(defs ...Def) *Defs {
	r := &Defs{byKey: make(map[string]*Def, len(defs))}
	for _, d := range defs {
		r.Add(d)
	}
	return r
}

// Add registers d, replacing any definition with the same key.
func (r *Defs) Add(d Def) {
	if d.Min == 0 && d.Max == 0 {
		d.Min, d.Max = math.Inf(-1), math.Inf(1)
	}
	if _, ok := r.byKey[d.Key]; !ok {
		r.order = append(r.order, d.Key)
	}
	def := d
	r.byKey[d.Key] = &def
}

// Get returns the definition for key.
func (r *Defs) Get(key string) (*Def, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// Keys returns the keys in sorted order.
func (r *Defs) Keys() []string {
	keys := append([]string(nil), r.order...)
	sort.Strings(keys)
	return keys
}

// Len returns the number of definitions.
func (r *Defs) Len() int {
	return len(r.order)
}

// inRange checks numeric values against the bounds.
func (d *Def) inRange(v Value) bool {
	check := func(f float64) bool { return f >= d.Min && f <= d.Max }
	switch v.Kind {
	case KindFloat, KindPercent:
		return check(v.Float)
	case KindFloatOrPercent:
		return v.Percent || check(v.Float)
	case KindInt:
		return check(float64(v.Int))
	case KindFloats:
		for _, f := range v.Floats {
			if !check(f) {
				return false
			}
		}
	case KindInts:
		for _, n := range v.Ints {
			if !check(float64(n)) {
				return false
			}
		}
	}
	return true
}

// Option keys of the SLA option set.
const (
	KeySupportsEnable            = "supports_enable"
	KeyHeadFrontDiameter         = "support_head_front_diameter"
	KeyHeadPenetration           = "support_head_penetration"
	KeyHeadWidth                 = "support_head_width"
	KeyHeadBackDiameter          = "support_head_back_diameter"
	KeyPillarDiameter            = "support_pillar_diameter"
	KeyBridgeDiameter            = "support_bridge_diameter"
	KeyBaseDiameter              = "support_base_diameter"
	KeyBaseHeight                = "support_base_height"
	KeyBaseSafetyDistance        = "support_base_safety_distance"
	KeyCriticalAngle             = "support_critical_angle"
	KeyMaxBridgeLength           = "support_max_bridge_length"
	KeyMaxPillarLinkDistance     = "support_max_pillar_link_distance"
	KeyObjectElevation           = "support_object_elevation"
	KeyMaxBridgesOnPillar        = "support_max_bridges_on_pillar"
	KeyPillarCascadeNeighbors    = "support_pillar_cascade_neighbors"
	KeyMaxSoloPillarHeight       = "support_max_solo_pillar_height"
	KeyMaxDualPillarHeight       = "support_max_dual_pillar_height"
	KeyNormalCutoffAngle         = "support_normal_cutoff_angle"
	KeyPointsDensityRelative     = "support_points_density_relative"
	KeyPointsMinimalDistance     = "support_points_minimal_distance"
	KeySelfSupportAngle          = "support_self_support_angle"
	KeyPadEnable                 = "pad_enable"
	KeyPadWallThickness          = "pad_wall_thickness"
	KeyPadWallHeight             = "pad_wall_height"
	KeyPadWallSlope              = "pad_wall_slope"
	KeyPadBrimSize               = "pad_brim_size"
	KeyPadMaxMergeDistance       = "pad_max_merge_distance"
	KeyPadAroundObject           = "pad_around_object"
	KeyPadAroundObjectEverywhere = "pad_around_object_everywhere"
	KeyPadObjectGap              = "pad_object_gap"
	KeyPadConnectorStride        = "pad_object_connector_stride"
	KeyPadConnectorWidth         = "pad_object_connector_width"
	KeyPadConnectorPenetration   = "pad_object_connector_penetration"
	KeyDisplayWidth              = "display_width"
	KeyDisplayHeight             = "display_height"
	KeyDisplayPixelsX            = "display_pixels_x"
	KeyDisplayPixelsY            = "display_pixels_y"
	KeyDisplayMirrorX            = "display_mirror_x"
	KeyDisplayMirrorY            = "display_mirror_y"
	KeyDisplayOrientation        = "display_orientation"
	KeyGammaCorrection           = "gamma_correction"
	KeyRasterFormat              = "raster_format"
	KeyRelativeCorrection        = "relative_correction"
	KeyBedShape                  = "bed_shape"
	KeyLayerHeight               = "layer_height"
	KeySliceClosingRadius        = "slice_closing_radius"
	KeyExposureTime              = "exposure_time"
	KeyInitialExposureTime       = "initial_exposure_time"
	KeyPrinterModel              = "printer_model"
	KeyCompatiblePrinters        = "compatible_printers"
)

// Enum labels.
var (
	OrientationLabels  = []string{"landscape", "portrait"}
	RasterFormatLabels = []string{"png", "raw"}
)

// SLADefs returns the option set used by support, pad and raster
// generation.
func SLADefs() *Defs {
	d := func(key string, kind Kind, def Value, cat, unit, label string, lo, hi float64) Def {
		return Def{Key: key, Kind: kind, Default: def, Category: cat, Unit: unit, Label: label, Min: lo, Max: hi}
	}
	lo0, hiInf := 0.0, math.Inf(1)
	free, freeHi := math.Inf(-1), math.Inf(1)

	defs := NewDefs(
		d(KeySupportsEnable, KindBool, Bool(true), "supports", "", "Generate supports", free, freeHi),
		d(KeyHeadFrontDiameter, KindFloat, Float(0.4), "supports", "mm", "Pinhead front diameter", lo0, hiInf),
		d(KeyHeadPenetration, KindFloat, Float(0.5), "supports", "mm", "Head penetration", free, freeHi),
		d(KeyHeadWidth, KindFloat, Float(1.0), "supports", "mm", "Pinhead width", lo0, hiInf),
		d(KeyHeadBackDiameter, KindFloat, Float(1.0), "supports", "mm", "Pinhead back diameter", lo0, hiInf),
		d(KeyPillarDiameter, KindFloat, Float(1.0), "supports", "mm", "Pillar diameter", lo0, hiInf),
		d(KeyBaseDiameter, KindFloat, Float(4.0), "supports", "mm", "Support base diameter", lo0, hiInf),
		d(KeyBaseHeight, KindFloat, Float(1.0), "supports", "mm", "Support base height", lo0, hiInf),
		d(KeyBaseSafetyDistance, KindFloat, Float(0.5), "supports", "mm", "Support base safety distance", lo0, hiInf),
		d(KeyCriticalAngle, KindFloat, Float(45), "supports", "°", "Critical angle", 0, 90),
		d(KeyMaxBridgeLength, KindFloat, Float(10), "supports", "mm", "Max bridge length", lo0, hiInf),
		d(KeyMaxPillarLinkDistance, KindFloat, Float(10), "supports", "mm", "Max pillar linking distance", lo0, hiInf),
		d(KeyObjectElevation, KindFloat, Float(10), "supports", "mm", "Object elevation", lo0, 150),
		d(KeyMaxBridgesOnPillar, KindInt, Int(3), "supports", "", "Max bridges on a pillar", lo0, 50),
		d(KeyPillarCascadeNeighbors, KindInt, Int(3), "supports", "", "Pillar cascade neighbors", lo0, 50),
		d(KeyMaxSoloPillarHeight, KindFloat, Float(15), "supports", "mm", "Max solo pillar height", lo0, hiInf),
		d(KeyMaxDualPillarHeight, KindFloat, Float(35), "supports", "mm", "Max dual pillar height", lo0, hiInf),
		d(KeyNormalCutoffAngle, KindFloat, Float(150), "supports", "°", "Normal cutoff angle", 0, 180),
		d(KeyPointsDensityRelative, KindInt, Int(100), "supports", "%", "Support points density", 0, 10000),
		d(KeyPointsMinimalDistance, KindFloat, Float(1), "supports", "mm", "Minimal distance of support points", lo0, hiInf),
		d(KeySelfSupportAngle, KindFloat, Float(45), "supports", "°", "Self supporting angle", 0, 90),

		d(KeyPadEnable, KindBool, Bool(true), "pad", "", "Use pad", free, freeHi),
		d(KeyPadWallThickness, KindFloat, Float(2), "pad", "mm", "Pad wall thickness", lo0, 30),
		d(KeyPadWallHeight, KindFloat, Float(0), "pad", "mm", "Pad wall height", lo0, 30),
		d(KeyPadWallSlope, KindFloat, Float(90), "pad", "°", "Pad wall slope", 45, 90),
		d(KeyPadBrimSize, KindFloat, Float(1.6), "pad", "mm", "Pad brim size", lo0, 30),
		d(KeyPadMaxMergeDistance, KindFloat, Float(50), "pad", "mm", "Max merge distance", lo0, hiInf),
		d(KeyPadAroundObject, KindBool, Bool(false), "pad", "", "Pad around object", free, freeHi),
		d(KeyPadAroundObjectEverywhere, KindBool, Bool(false), "pad", "", "Pad around object everywhere", free, freeHi),
		d(KeyPadObjectGap, KindFloat, Float(1), "pad", "mm", "Pad object gap", lo0, 10),
		d(KeyPadConnectorStride, KindFloat, Float(10), "pad", "mm", "Pad object connector stride", lo0, hiInf),
		d(KeyPadConnectorWidth, KindFloat, Float(0.5), "pad", "mm", "Pad object connector width", lo0, hiInf),
		d(KeyPadConnectorPenetration, KindFloat, Float(0.3), "pad", "mm", "Pad object connector penetration", lo0, hiInf),

		d(KeyDisplayWidth, KindFloat, Float(120), "printer", "mm", "Display width", lo0, hiInf),
		d(KeyDisplayHeight, KindFloat, Float(68), "printer", "mm", "Display height", lo0, hiInf),
		d(KeyDisplayPixelsX, KindInt, Int(2560), "printer", "", "Display pixels X", 1, 1<<16),
		d(KeyDisplayPixelsY, KindInt, Int(1440), "printer", "", "Display pixels Y", 1, 1<<16),
		d(KeyDisplayMirrorX, KindBool, Bool(true), "printer", "", "Mirror horizontally", free, freeHi),
		d(KeyDisplayMirrorY, KindBool, Bool(false), "printer", "", "Mirror vertically", free, freeHi),
		d(KeyGammaCorrection, KindFloat, Float(1), "printer", "", "Printer gamma correction", 0, 1),
		d(KeyRelativeCorrection, KindFloats, Floats(1, 1), "printer", "", "Printer scaling correction", lo0, hiInf),
		d(KeyBedShape, KindPoints, Points(
			v2.Vec{X: 0, Y: 0}, v2.Vec{X: 120, Y: 0}, v2.Vec{X: 120, Y: 68}, v2.Vec{X: 0, Y: 68},
		), "printer", "", "Bed shape", free, freeHi),
		d(KeyPrinterModel, KindString, String("SL1"), "printer", "", "Printer model", free, freeHi),
		d(KeyCompatiblePrinters, KindStrings, Strings(), "printer", "", "Compatible printers", free, freeHi),

		d(KeyLayerHeight, KindFloat, Float(0.05), "print", "mm", "Layer height", 0.001, 1),
		d(KeySliceClosingRadius, KindFloat, Float(0.049), "print", "mm", "Slice closing radius", lo0, hiInf),
		d(KeyExposureTime, KindFloat, Float(10), "material", "s", "Exposure time", lo0, hiInf),
		d(KeyInitialExposureTime, KindFloat, Float(15), "material", "s", "Initial exposure time", lo0, hiInf),
	)

	defs.Add(Def{
		Key:       KeyBridgeDiameter,
		Kind:      KindFloatOrPercent,
		Default:   FloatOrPercent(100, true),
		Category:  "supports",
		Unit:      "mm or %",
		Label:     "Bridge diameter",
		Tooltip:   "Absolute diameter or a percentage of the pillar diameter.",
		RatioOver: KeyPillarDiameter,
		Min:       0,
		Max:       math.Inf(1),
	})
	defs.Add(Def{
		Key:        KeyDisplayOrientation,
		Kind:       KindEnum,
		Default:    Enum(0),
		Category:   "printer",
		Label:      "Display orientation",
		EnumLabels: OrientationLabels,
	})
	defs.Add(Def{
		Key:        KeyRasterFormat,
		Kind:       KindEnum,
		Default:    Enum(0),
		Category:   "output",
		Label:      "Layer image format",
		EnumLabels: RasterFormatLabels,
	})
	return defs
}
