package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/resin/pkg/config"
	"github.com/chazu/resin/pkg/mesh"
	"github.com/chazu/resin/pkg/pipeline"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms job script source before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: wall-height -> wall_height
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters is rewritten, never
		// the minus operator.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpMesh wraps a mesh built by box, cylinder, translate or union.
type sexpMesh struct {
	m *mesh.TriangleMesh
}

func (s *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %q %d faces)", s.m.Name, s.m.FaceCount())
}
func (s *sexpMesh) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_png) and plain strings ("png").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

func toMesh(s zygo.Sexp) (*mesh.TriangleMesh, error) {
	if m, ok := s.(*sexpMesh); ok {
		return m.m, nil
	}
	return nil, fmt.Errorf("expected mesh, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// optionText renders a script value in the serialized form of option d.
func optionText(d *config.Def, s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return strconv.FormatInt(v.Val, 10), nil
	case *zygo.SexpFloat:
		return strconv.FormatFloat(v.Val, 'g', -1, 64), nil
	case *zygo.SexpBool:
		if v.Val {
			return "1", nil
		}
		return "0", nil
	case *zygo.SexpStr:
		return toKeywordString(v)
	case *zygo.SexpPair, *zygo.SexpArray:
		items, err := sexpListToSlice(v)
		if err != nil {
			return "", err
		}
		sep := ","
		if d.Kind == config.KindStrings {
			sep = ";"
		}
		parts := make([]string, len(items))
		for i, item := range items {
			if parts[i], err = optionText(d, item); err != nil {
				return "", err
			}
		}
		return strings.Join(parts, sep), nil
	}
	return "", fmt.Errorf("unsupported value %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// optionSection maps the keywords of one settings builtin to option keys.
// Keywords not listed in alias become prefix + keyword with hyphens
// replaced by underscores.
type optionSection struct {
	prefix string
	alias  map[string]string
}

var sections = map[string]optionSection{
	"config": {},
	"support": {prefix: "support_", alias: map[string]string{
		"enable": config.KeySupportsEnable,
	}},
	"pad": {prefix: "pad_"},
	"display": {prefix: "display_", alias: map[string]string{
		"gamma":  config.KeyGammaCorrection,
		"format": config.KeyRasterFormat,
	}},
}

func (sec optionSection) key(kw string) string {
	if k, ok := sec.alias[kw]; ok {
		return k
	}
	return sec.prefix + strings.ReplaceAll(kw, "-", "_")
}

// registerBuiltins installs the job script builtins into a zygomys
// environment. Settings are checked against scratch as they are made so a
// bad value is reported at its line.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, job *Job, scratch *config.Store) {

	// -----------------------------------------------------------------------
	// (config :layer-height 0.05 "exposure_time" 8)
	// (support :enable true :object-elevation 5)
	// (pad :wall-height 3)
	// (display :pixels-x 1440 :orientation :portrait :format :png)
	// -----------------------------------------------------------------------
	for name, sec := range sections {
		env.AddFunction(name, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args)%2 != 0 {
				return zygo.SexpNull, fmt.Errorf("%s: expected key value pairs, got %d arguments", name, len(args))
			}
			for i := 0; i < len(args); i += 2 {
				var key string
				if kw, ok := isKW(args[i]); ok {
					key = sec.key(kw)
				} else {
					s, err := toString(args[i])
					if err != nil {
						return zygo.SexpNull, fmt.Errorf("%s: key: %w", name, err)
					}
					key = s
				}
				d, ok := scratch.Defs().Get(key)
				if !ok {
					return zygo.SexpNull, fmt.Errorf("%s: %w: %s", name, config.ErrUnknownKey, key)
				}
				text, err := optionText(d, args[i+1])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %s: %w", name, key, err)
				}
				if err := scratch.SetDeserialize(key, text); err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
				}
				job.Settings = append(job.Settings, key+"="+text)
			}
			return zygo.SexpNull, nil
		})
	}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 20 10 5)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("box requires a size along x, y and z, got %d arguments", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %c: %w", "xyz"[i], err)
			}
			if f <= 0 {
				return zygo.SexpNull, fmt.Errorf("box: %c size must be positive, got %g", "xyz"[i], f)
			}
			c[i] = f
		}
		return &sexpMesh{m: mesh.Box(v3.Vec{}, v3.Vec{X: c[0], Y: c[1], Z: c[2]})}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder 5 20 :sides 32)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("cylinder requires a radius and a height")
		}
		r, err := toFloat64(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		h, err := toFloat64(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		if r <= 0 || h <= 0 {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius and height must be positive")
		}
		sides := 64
		if v, ok := pa.kw["sides"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder: sides: %w", err)
			}
			sides = int(f)
		}
		return &sexpMesh{m: mesh.Cylinder(r, h, sides)}, nil
	})

	// -----------------------------------------------------------------------
	// (translate (box 1 1 1) (vec3 0 0 5))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a mesh and an offset")
		}
		m, err := toMesh(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		d, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		return &sexpMesh{m: m.Clone().Translate(d)}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("union requires at least one mesh")
		}
		out := mesh.New("union")
		for i, a := range args {
			m, err := toMesh(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("union: part %d: %w", i, err)
			}
			out.Merge(m)
		}
		return &sexpMesh{m: out}, nil
	})

	// -----------------------------------------------------------------------
	// (model "part.stl")
	// (model (box 10 10 10))
	// -----------------------------------------------------------------------
	env.AddFunction("model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("model requires a file name or a mesh")
		}
		for _, a := range args {
			switch v := a.(type) {
			case *zygo.SexpStr:
				if v.S == "" {
					return zygo.SexpNull, fmt.Errorf("model: empty file name")
				}
				job.ModelFiles = append(job.ModelFiles, v.S)
			case *sexpMesh:
				job.Parts = append(job.Parts, v.m.Clone())
			default:
				return zygo.SexpNull, fmt.Errorf("model: expected file name or mesh, got %T (%s)", a, a.SexpString(nil))
			}
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (output :dir "out" :name "bracket" :formats (list :zip :stl))
	// -----------------------------------------------------------------------
	env.AddFunction("output", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("output takes keyword arguments only")
		}
		for kw, v := range pa.kw {
			switch kw {
			case "dir":
				s, err := toString(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("output: dir: %w", err)
				}
				job.OutputDir = s
			case "name":
				s, err := toString(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("output: name: %w", err)
				}
				job.Name = s
			case "formats":
				items, err := sexpListToSlice(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("output: formats: %w", err)
				}
				job.Formats = job.Formats[:0]
				for _, item := range items {
					f, err := toKeywordString(item)
					if err != nil {
						return zygo.SexpNull, fmt.Errorf("output: formats: %w", err)
					}
					if !pipeline.KnownFormat(f) {
						return zygo.SexpNull, fmt.Errorf("output: unknown format %q", f)
					}
					job.Formats = append(job.Formats, f)
				}
			default:
				return zygo.SexpNull, fmt.Errorf("output: unknown keyword :%s", kw)
			}
		}
		return zygo.SexpNull, nil
	})
}
