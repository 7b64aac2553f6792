// Package config is a typed key-value option store. Each option has a
// definition (kind, default, range, enum labels) and a value held in the
// closed Value variant. Values round trip through the slicer style text
// form used by config files and the command line.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindFloat Kind = iota
	KindFloats
	KindInt
	KindInts
	KindString
	KindStrings
	KindPercent
	KindFloatOrPercent
	KindPoint
	KindPoints
	KindBool
	KindBools
	KindEnum
)

var kindNames = [...]string{
	KindFloat:          "float",
	KindFloats:         "floats",
	KindInt:            "int",
	KindInts:           "ints",
	KindString:         "string",
	KindStrings:        "strings",
	KindPercent:        "percent",
	KindFloatOrPercent: "float_or_percent",
	KindPoint:          "point",
	KindPoints:         "points",
	KindBool:           "bool",
	KindBools:          "bools",
	KindEnum:           "enum",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Value is a tagged variant. Only the fields belonging to Kind are
// meaningful.
type Value struct {
	Kind Kind

	Float   float64 // Float, Percent, FloatOrPercent
	Percent bool    // FloatOrPercent holds a percentage
	Int     int     // Int, Enum
	Str     string
	Point   v2.Vec
	Bool    bool

	Floats []float64
	Ints   []int
	Strs   []string
	Points []v2.Vec
	Bools  []bool
}

func Float(f float64) Value      { return Value{Kind: KindFloat, Float: f} }
func Floats(fs ...float64) Value { return Value{Kind: KindFloats, Floats: fs} }
func Int(i int) Value            { return Value{Kind: KindInt, Int: i} }
func Ints(is ...int) Value       { return Value{Kind: KindInts, Ints: is} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Strings(ss ...string) Value { return Value{Kind: KindStrings, Strs: ss} }
func Percent(p float64) Value    { return Value{Kind: KindPercent, Float: p} }
func Point(x, y float64) Value   { return Value{Kind: KindPoint, Point: v2.Vec{X: x, Y: y}} }
func Points(ps ...v2.Vec) Value  { return Value{Kind: KindPoints, Points: ps} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Bools(bs ...bool) Value     { return Value{Kind: KindBools, Bools: bs} }
func Enum(i int) Value           { return Value{Kind: KindEnum, Int: i} }

func FloatOrPercent(f float64, pct bool) Value {
	return Value{Kind: KindFloatOrPercent, Float: f, Percent: pct}
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	c := v
	c.Floats = append([]float64(nil), v.Floats...)
	c.Ints = append([]int(nil), v.Ints...)
	c.Strs = append([]string(nil), v.Strs...)
	c.Points = append([]v2.Vec(nil), v.Points...)
	c.Bools = append([]bool(nil), v.Bools...)
	return c
}

// Equal compares the serialized forms.
func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Serialize(nil) == o.Serialize(nil)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Serialize returns the text form of v. Enum labels come from d; with a
// nil definition enums serialize as their index.
func (v Value) Serialize(d *Def) string {
	switch v.Kind {
	case KindFloat:
		return formatFloat(v.Float)
	case KindFloats:
		parts := make([]string, len(v.Floats))
		for i, f := range v.Floats {
			parts[i] = formatFloat(f)
		}
		return strings.Join(parts, ",")
	case KindInt:
		return strconv.Itoa(v.Int)
	case KindInts:
		parts := make([]string, len(v.Ints))
		for i, n := range v.Ints {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ",")
	case KindString:
		return escapeString(v.Str)
	case KindStrings:
		parts := make([]string, len(v.Strs))
		for i, s := range v.Strs {
			parts[i] = quoteItem(s)
		}
		return strings.Join(parts, ";")
	case KindPercent:
		return formatFloat(v.Float) + "%"
	case KindFloatOrPercent:
		if v.Percent {
			return formatFloat(v.Float) + "%"
		}
		return formatFloat(v.Float)
	case KindPoint:
		return formatFloat(v.Point.X) + "x" + formatFloat(v.Point.Y)
	case KindPoints:
		parts := make([]string, len(v.Points))
		for i, p := range v.Points {
			parts[i] = formatFloat(p.X) + "x" + formatFloat(p.Y)
		}
		return strings.Join(parts, ",")
	case KindBool:
		return formatBool(v.Bool)
	case KindBools:
		parts := make([]string, len(v.Bools))
		for i, b := range v.Bools {
			parts[i] = formatBool(b)
		}
		return strings.Join(parts, ",")
	case KindEnum:
		if d != nil && v.Int >= 0 && v.Int < len(d.EnumLabels) {
			return d.EnumLabels[v.Int]
		}
		return strconv.Itoa(v.Int)
	}
	return ""
}

// Deserialize parses s as a value of the given kind. Enum labels are
// resolved through d.
func Deserialize(kind Kind, s string, d *Def) (Value, error) {
	s = strings.TrimSpace(s)
	bad := func(err error) (Value, error) {
		return Value{}, fmt.Errorf("%w: %s %q: %v", ErrBadValue, kind, s, err)
	}
	switch kind {
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bad(err)
		}
		return Float(f), nil
	case KindFloats:
		var fs []float64
		for _, part := range splitList(s, ",") {
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return bad(err)
			}
			fs = append(fs, f)
		}
		return Floats(fs...), nil
	case KindInt:
		n, err := parseInt(s)
		if err != nil {
			return bad(err)
		}
		return Int(n), nil
	case KindInts:
		var ns []int
		for _, part := range splitList(s, ",") {
			n, err := parseInt(part)
			if err != nil {
				return bad(err)
			}
			ns = append(ns, n)
		}
		return Ints(ns...), nil
	case KindString:
		return String(unescapeString(s)), nil
	case KindStrings:
		items, err := splitQuoted(s)
		if err != nil {
			return bad(err)
		}
		return Strings(items...), nil
	case KindPercent:
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return bad(err)
		}
		return Percent(f), nil
	case KindFloatOrPercent:
		pct := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return bad(err)
		}
		return FloatOrPercent(f, pct), nil
	case KindPoint:
		p, err := parsePoint(s)
		if err != nil {
			return bad(err)
		}
		return Value{Kind: KindPoint, Point: p}, nil
	case KindPoints:
		var ps []v2.Vec
		for _, part := range splitList(s, ",") {
			p, err := parsePoint(part)
			if err != nil {
				return bad(err)
			}
			ps = append(ps, p)
		}
		return Points(ps...), nil
	case KindBool:
		b, err := parseBool(s)
		if err != nil {
			return bad(err)
		}
		return Bool(b), nil
	case KindBools:
		var bs []bool
		for _, part := range splitList(s, ",") {
			b, err := parseBool(part)
			if err != nil {
				return bad(err)
			}
			bs = append(bs, b)
		}
		return Bools(bs...), nil
	case KindEnum:
		if d != nil {
			for i, l := range d.EnumLabels {
				if l == s {
					return Enum(i), nil
				}
			}
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return bad(fmt.Errorf("unknown label"))
		}
		if d != nil && (n < 0 || n >= len(d.EnumLabels)) {
			return bad(fmt.Errorf("index out of range"))
		}
		return Enum(n), nil
	}
	return Value{}, fmt.Errorf("%w: unknown kind %d", ErrBadValue, int(kind))
}

// parseInt also accepts integral float forms such as "3.0".
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	return int(f), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

func parsePoint(s string) (v2.Vec, error) {
	x, y, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return v2.Vec{}, fmt.Errorf("want XxY")
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
	if err != nil {
		return v2.Vec{}, err
	}
	py, err := strconv.ParseFloat(strings.TrimSpace(y), 64)
	if err != nil {
		return v2.Vec{}, err
	}
	return v2.Vec{X: px, Y: py}, nil
}

func splitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}

func unescapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// quoteItem quotes a list item when it would not survive splitting.
func quoteItem(s string) string {
	if s != "" && !strings.ContainsAny(s, ";\"\\\n\r") && strings.TrimSpace(s) == s {
		return s
	}
	return strconv.Quote(s)
}

// splitQuoted splits a ';' separated list whose items may be quoted.
func splitQuoted(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var items []string
	for len(s) > 0 {
		s = strings.TrimLeft(s, " ")
		if strings.HasPrefix(s, `"`) {
			end := 1
			for end < len(s) && s[end] != '"' {
				if s[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(s) {
				return nil, fmt.Errorf("unterminated quote")
			}
			item, err := strconv.Unquote(s[:end+1])
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			s = strings.TrimLeft(s[end+1:], " ")
			if s == "" {
				break
			}
			if s[0] != ';' {
				return nil, fmt.Errorf("expected ';' after quoted item")
			}
			s = s[1:]
			if s == "" {
				items = append(items, "")
			}
			continue
		}
		item, rest, found := strings.Cut(s, ";")
		items = append(items, strings.TrimSpace(item))
		if !found {
			break
		}
		s = rest
		if s == "" {
			items = append(items, "")
		}
	}
	return items, nil
}
