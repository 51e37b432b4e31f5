// Package recipe defines the data model shared by every stage of a recipe
// build: the recipe itself, target settings, options and the staged layout.
package recipe

import (
	"fmt"
	"slices"
)

// Variant selects how a recipe obtains its sources.
type Variant int

const (
	// Upstream stages an extracted checkout into a canonical subfolder.
	Upstream Variant = iota
	// Local builds in place against the sibling source tree.
	Local
)

func (v Variant) String() string {
	switch v {
	case Upstream:
		return "upstream"
	case Local:
		return "local"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// Dependency is a name/version pair declared by a recipe.
type Dependency struct {
	Name    string
	Version string
}

func (d Dependency) String() string {
	return d.Name + "/" + d.Version
}

// BuildPolicy holds the fixed per-recipe build flags.
type BuildPolicy struct {
	// Prefix of the project's CMake variables, e.g. "CPPSERVER".
	Prefix string
	// Module forces the "library is itself a reusable module" flag.
	Module bool
}

// StageSpec lists the entries of a raw checkout that belong to the
// canonical source subfolder. Paths are relative to the checkout root.
type StageSpec struct {
	// Sources are moved into the source subfolder.
	Sources []string
	// RecipeDir is where the recipe's own files live inside the checkout.
	RecipeDir string
}

// Recipe is the declarative description of one buildable library.
type Recipe struct {
	Name        string
	Version     string
	License     string
	Homepage    string
	URL         string
	Description string
	Topics      []string

	Variant  Variant
	Requires []Dependency
	// TestRequires are appended to Requires only when tests are enabled.
	TestRequires []Dependency

	Options []OptionDecl

	MinStandard    string
	CompilerPolicy map[string]string

	Build BuildPolicy
	Stage StageSpec
	// Headers are file patterns copied from the staged include directory
	// into the package after install.
	Headers []string

	// SystemLibs and Defines are keyed by target OS.
	SystemLibs map[string][]string
	Defines    map[string][]string
}

// Ref returns "name/version".
func (r *Recipe) Ref() string {
	return r.Name + "/" + r.Version
}

// Clone returns a deep copy of r.
func (r *Recipe) Clone() *Recipe {
	c := *r
	c.Topics = slices.Clone(r.Topics)
	c.Requires = slices.Clone(r.Requires)
	c.TestRequires = slices.Clone(r.TestRequires)
	c.Options = make([]OptionDecl, len(r.Options))
	for i, o := range r.Options {
		c.Options[i] = o.clone()
	}
	c.Stage.Sources = slices.Clone(r.Stage.Sources)
	c.Headers = slices.Clone(r.Headers)
	c.CompilerPolicy = cloneMap(r.CompilerPolicy)
	c.SystemLibs = cloneListMap(r.SystemLibs)
	c.Defines = cloneListMap(r.Defines)
	return &c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneListMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
