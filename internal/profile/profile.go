// Package profile loads TOML build profiles.
//
// A profile supplies target settings, option overrides and environment
// variables for the build tools:
//
//	[settings]
//	os = "Linux"
//	compiler = "gcc"
//	"compiler.version" = "9"
//	"compiler.cppstd" = "17"
//
//	[options]
//	tests = true
//
//	[env]
//	CC = "gcc-9"
//
// Nested tables are flattened with dots, so [settings.compiler] with a
// version key is the same as "compiler.version".
package profile

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/goplus/cppkg/recipe"
)

// Profile is a parsed build profile.
type Profile struct {
	Settings map[string]string
	Options  map[string]string
	Env      map[string]string
}

type document struct {
	Settings map[string]any    `toml:"settings"`
	Options  map[string]any    `toml:"options"`
	Env      map[string]string `toml:"env"`
}

// Load parses the profile at path.
func Load(path string) (*Profile, error) {
	var doc document
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return fromDocument(path, doc, meta)
}

// Parse parses a profile from data.
func Parse(data string) (*Profile, error) {
	var doc document
	meta, err := toml.Decode(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return fromDocument("profile", doc, meta)
}

func fromDocument(name string, doc document, meta toml.MetaData) (*Profile, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", name, undecoded[0])
	}
	p := &Profile{
		Settings: make(map[string]string),
		Options:  make(map[string]string),
		Env:      make(map[string]string),
	}
	if err := flatten(p.Settings, "", doc.Settings); err != nil {
		return nil, fmt.Errorf("%s: [settings]: %w", name, err)
	}
	if err := flatten(p.Options, "", doc.Options); err != nil {
		return nil, fmt.Errorf("%s: [options]: %w", name, err)
	}
	maps.Copy(p.Env, doc.Env)
	return p, nil
}

func flatten(dst map[string]string, prefix string, src map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(src)) {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := src[k].(type) {
		case map[string]any:
			if err := flatten(dst, key, v); err != nil {
				return err
			}
		case string:
			dst[key] = v
		case bool:
			dst[key] = recipe.False
			if v {
				dst[key] = recipe.True
			}
		case int64:
			dst[key] = strconv.FormatInt(v, 10)
		case float64:
			dst[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Errorf("%s: unsupported value %v", key, v)
		}
	}
	return nil
}

// Apply sets the profile's settings on s.
func (p *Profile) Apply(s *recipe.Settings) error {
	for _, k := range slices.Sorted(maps.Keys(p.Settings)) {
		if err := s.Set(k, p.Settings[k]); err != nil {
			return err
		}
	}
	return nil
}
