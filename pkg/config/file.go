package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load builds a store with priority defaults < file < overrides. An empty
// path skips the file.
func Load(defs *Defs, path string, overrides []string) (*Store, error) {
	s := Defaults(defs)
	if path != "" {
		if err := LoadFile(s, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	if err := ApplyOverrides(s, overrides); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile merges the options in a YAML, TOML or INI file into s.
func LoadFile(s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw := make(map[string]any)
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return err
		}
		return applyRaw(s, raw)
	case ".toml":
		raw := make(map[string]any)
		if err := toml.Unmarshal(data, &raw); err != nil {
			return err
		}
		return applyRaw(s, raw)
	case ".ini", ".cfg":
		return ReadINI(strings.NewReader(string(data)), s)
	}
	return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

func applyRaw(s *Store, raw map[string]any) error {
	assigns, err := Assignments(s.Defs(), raw)
	if err != nil {
		return err
	}
	return ApplyOverrides(s, assigns)
}

// Assignments converts decoded YAML or TOML options to "key=value"
// assignments in key order, as taken by ApplyOverrides.
func Assignments(defs *Defs, raw map[string]any) ([]string, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		d, ok := defs.Get(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		text, err := rawText(d, raw[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out = append(out, k+"="+text)
	}
	return out, nil
}

// rawText converts a decoded YAML or TOML value to the option's text form.
func rawText(d *Def, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return formatBool(x), nil
	case int:
		return fmt.Sprint(x), nil
	case int64:
		return fmt.Sprint(x), nil
	case float64:
		return formatFloat(x), nil
	case []any:
		sep := ","
		if d.Kind == KindStrings {
			sep = ";"
		}
		parts := make([]string, len(x))
		for i, item := range x {
			text, err := rawText(d, item)
			if err != nil {
				return "", err
			}
			if d.Kind == KindStrings {
				text = quoteItem(text)
			}
			parts[i] = text
		}
		return strings.Join(parts, sep), nil
	}
	return "", fmt.Errorf("%w: unsupported %T", ErrBadValue, v)
}

// ApplyOverrides sets "key=value" assignments in order.
func ApplyOverrides(s *Store, overrides []string) error {
	for _, o := range overrides {
		k, v, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("%w: override %q is not key=value", ErrBadValue, o)
		}
		if err := s.SetDeserialize(strings.TrimSpace(k), v); err != nil {
			return err
		}
	}
	return nil
}

// yamlValue keeps scalar kinds native so the file stays readable.
func yamlValue(s *Store, key string) any {
	v, _ := s.Get(key)
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return v.Int
	case KindBool:
		return v.Bool
	}
	text, _ := s.Serialize(key)
	return text
}

// MarshalYAML encodes every held option.
func MarshalYAML(s *Store) ([]byte, error) {
	out := make(map[string]any, len(s.values))
	for _, k := range s.Keys() {
		out[k] = yamlValue(s, k)
	}
	return yaml.Marshal(out)
}

// SaveYAML writes the store to path, creating parent directories.
func SaveYAML(s *Store, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := MarshalYAML(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadINI reads "key = value" lines. Blank lines and lines starting with
// '#' or ';' are skipped.
func ReadINI(r io.Reader, s *Store) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == ';' {
			continue
		}
		k, v, ok := strings.Cut(text, "=")
		if !ok {
			return fmt.Errorf("line %d: %w: missing '='", line, ErrBadValue)
		}
		if err := s.SetDeserialize(strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

// WriteINI writes every held option as "key = value", sorted by key.
func WriteINI(w io.Writer, s *Store) error {
	bw := bufio.NewWriter(w)
	for _, k := range s.Keys() {
		text, err := s.Serialize(k)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "%s = %s\n", k, text)
	}
	return bw.Flush()
}
