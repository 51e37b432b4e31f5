package buildsys

import (
	"context"
	"slices"
	"strings"

	"github.com/goplus/cppkg/recipe"
)

// Define is a single build-system variable. Bool defines render as ON/OFF.
type Define struct {
	Key   string
	Value string
	Bool  bool
}

// Config is the derived flag set handed to a toolchain. It is built once
// and never modified afterwards.
type Config struct {
	Variant recipe.Variant
	defines []Define
}

// NewConfig returns a Config holding defines in the given order.
func NewConfig(variant recipe.Variant, defines ...Define) Config {
	return Config{Variant: variant, defines: slices.Clone(defines)}
}

// Defines returns a copy of the configured defines.
func (c Config) Defines() []Define {
	return slices.Clone(c.defines)
}

// Lookup returns the value of key.
func (c Config) Lookup(key string) (string, bool) {
	for _, d := range c.defines {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

func (c Config) String() string {
	parts := make([]string, len(c.defines))
	for i, d := range c.defines {
		parts[i] = d.Key + "=" + d.Value
	}
	return strings.Join(parts, " ")
}

// BoolDefine returns a boolean define rendered as ON/OFF.
func BoolDefine(key string, on bool) Define {
	if on {
		return Define{Key: key, Value: "ON", Bool: true}
	}
	return Define{Key: key, Value: "OFF", Bool: true}
}

// Handle identifies a configured build tree.
type Handle interface {
	BuildDir() string
}

// TestOutput controls how much test output a toolchain prints.
type TestOutput int

const (
	// OutputOnFailure prints the output of failing tests only.
	OutputOnFailure TestOutput = iota
	// OutputAlways prints the output of every test.
	OutputAlways
	// OutputNever suppresses test output.
	OutputNever
)

// Toolchain captures the configure/build/test/install lifecycle of a native
// build system (CMake, etc).
type Toolchain interface {
	// Configure prepares a build tree for layout using cfg.
	Configure(ctx context.Context, cfg Config, layout *recipe.Layout) (Handle, error)

	Build(ctx context.Context, h Handle) error
	Test(ctx context.Context, h Handle, output TestOutput) error
	// Install copies build results into the package directory.
	Install(ctx context.Context, h Handle) error
}
