package config

import (
	"fmt"
	"sort"
)

// Store holds option values keyed by name. A dynamic store creates an
// option the first time a defined key is set; a fixed store only holds
// the keys it was created with.
type Store struct {
	defs   *Defs
	values map[string]Value
	fixed  bool
}

// NewStore returns an empty dynamic store.
func NewStore(defs *Defs) *Store {
	return &Store{defs: defs, values: make(map[string]Value)}
}

// Defaults returns a dynamic store holding the default of every option.
func Defaults(defs *Defs) *Store {
	s := NewStore(defs)
	for _, k := range defs.Keys() {
		d, _ := defs.Get(k)
		s.values[k] = d.Default.Clone()
	}
	return s
}

// NewFixedStore returns a store limited to keys, each set to its default.
func NewFixedStore(defs *Defs, keys ...string) (*Store, error) {
	s := &Store{defs: defs, values: make(map[string]Value, len(keys)), fixed: true}
	for _, k := range keys {
		d, ok := defs.Get(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		s.values[k] = d.Default.Clone()
	}
	return s, nil
}

// Defs returns the definition registry.
func (s *Store) Defs() *Defs {
	return s.defs
}

// Has reports whether the store holds a value for key.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the held keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) def(key string) (*Def, error) {
	d, ok := s.defs.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return d, nil
}

// Get returns the value for key. A defined key that is not held yields
// its default.
func (s *Store) Get(key string) (Value, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	d, err := s.def(key)
	if err != nil {
		return Value{}, err
	}
	return d.Default, nil
}

// Set stores v under key after checking its kind and range.
func (s *Store) Set(key string, v Value) error {
	d, err := s.def(key)
	if err != nil {
		return err
	}
	if s.fixed && !s.Has(key) {
		return fmt.Errorf("%w: %s", ErrNonexistentOption, key)
	}
	if v.Kind != d.Kind {
		return fmt.Errorf("%w: %s is %s, got %s", ErrKindMismatch, key, d.Kind, v.Kind)
	}
	if !d.inRange(v) {
		return fmt.Errorf("%w: %s = %s outside [%g, %g]", ErrBadValue, key, v.Serialize(d), d.Min, d.Max)
	}
	if v.Kind == KindEnum && (v.Int < 0 || v.Int >= len(d.EnumLabels)) {
		return fmt.Errorf("%w: %s enum index %d", ErrBadValue, key, v.Int)
	}
	s.values[key] = v.Clone()
	return nil
}

// SetDeserialize parses text in the option's serialized form and stores
// it.
func (s *Store) SetDeserialize(key, text string) error {
	d, err := s.def(key)
	if err != nil {
		return err
	}
	v, err := Deserialize(d.Kind, text, d)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return s.Set(key, v)
}

// Serialize returns the text form of the value for key.
func (s *Store) Serialize(key string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	d, _ := s.defs.Get(key)
	return v.Serialize(d), nil
}

// Apply copies every value held by other into s through its serialized
// form. Keys s cannot hold fail with ErrNonexistentOption unless
// ignoreNonexistent is set.
func (s *Store) Apply(other *Store, ignoreNonexistent bool) error {
	for _, k := range other.Keys() {
		_, defined := s.defs.Get(k)
		if !defined || (s.fixed && !s.Has(k)) {
			if ignoreNonexistent {
				continue
			}
			return fmt.Errorf("%w: %s", ErrNonexistentOption, k)
		}
		text, err := other.Serialize(k)
		if err != nil {
			return err
		}
		if err := s.SetDeserialize(k, text); err != nil {
			return err
		}
	}
	return nil
}

// AbsValue resolves a FloatOrPercent option to an absolute value. A
// percentage is taken of the option named by the definition's RatioOver.
func (s *Store) AbsValue(key string) (float64, error) {
	d, err := s.def(key)
	if err != nil {
		return 0, err
	}
	v, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case KindFloat:
		return v.Float, nil
	case KindFloatOrPercent:
		if !v.Percent {
			return v.Float, nil
		}
		if d.RatioOver == "" {
			return 0, fmt.Errorf("%w: %s has no ratio_over option", ErrBadValue, key)
		}
		base, err := s.AbsValue(d.RatioOver)
		if err != nil {
			return 0, fmt.Errorf("ratio_over option not found: %w", err)
		}
		return base * v.Float / 100, nil
	}
	return 0, fmt.Errorf("%w: %s is %s, not float_or_percent", ErrKindMismatch, key, v.Kind)
}

// Diff returns the keys whose values differ between s and other, held by
// either.
func (s *Store) Diff(other *Store) []string {
	seen := make(map[string]bool)
	var diff []string
	for _, k := range append(s.Keys(), other.Keys()...) {
		if seen[k] {
			continue
		}
		seen[k] = true
		a, errA := s.Get(k)
		b, errB := other.Get(k)
		if errA != nil || errB != nil || !a.Equal(b) {
			diff = append(diff, k)
		}
	}
	sort.Strings(diff)
	return diff
}

// Clone returns a deep copy sharing the definitions.
func (s *Store) Clone() *Store {
	c := &Store{defs: s.defs, values: make(map[string]Value, len(s.values)), fixed: s.fixed}
	for k, v := range s.values {
		c.values[k] = v.Clone()
	}
	return c
}

// Typed getters. They read the held value or the default and return the
// zero value for unknown keys or a different kind.

// Float returns a Float, Percent or FloatOrPercent option.
func (s *Store) Float(key string) float64 {
	v, err := s.Get(key)
	if err != nil {
		return 0
	}
	switch v.Kind {
	case KindFloat, KindPercent, KindFloatOrPercent:
		return v.Float
	case KindInt:
		return float64(v.Int)
	}
	return 0
}

// Int returns an Int or Enum option.
func (s *Store) Int(key string) int {
	v, err := s.Get(key)
	if err != nil || (v.Kind != KindInt && v.Kind != KindEnum) {
		return 0
	}
	return v.Int
}

// Bool returns a Bool option.
func (s *Store) Bool(key string) bool {
	v, err := s.Get(key)
	if err != nil || v.Kind != KindBool {
		return false
	}
	return v.Bool
}

// String returns a String option.
func (s *Store) String(key string) string {
	v, err := s.Get(key)
	if err != nil || v.Kind != KindString {
		return ""
	}
	return v.Str
}

// EnumLabel returns the label of an Enum option.
func (s *Store) EnumLabel(key string) string {
	text, err := s.Serialize(key)
	if err != nil {
		return ""
	}
	return text
}
