// Package recipes holds the built-in recipe registry.
package recipes

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goplus/cppkg/pkgs/version"
	"github.com/goplus/cppkg/recipe"
)

// ErrNotFound is returned when no recipe matches a reference.
var ErrNotFound = errors.New("recipe not found")

// Registry indexes recipes by name and version.
type Registry struct {
	byName map[string][]*recipe.Recipe
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string][]*recipe.Recipe)}
}

// Default returns a registry with the built-in recipes.
func Default() *Registry {
	r := New()
	for _, rcp := range builtin() {
		if err := r.Register(rcp); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds rcp. A name/version pair can only be registered once.
func (r *Registry) Register(rcp *recipe.Recipe) error {
	if rcp.Name == "" || rcp.Version == "" {
		return fmt.Errorf("register recipe %q: name and version are required", rcp.Ref())
	}
	for _, have := range r.byName[rcp.Name] {
		if have.Version == rcp.Version {
			return fmt.Errorf("register recipe %s: already registered", rcp.Ref())
		}
	}
	r.byName[rcp.Name] = append(r.byName[rcp.Name], rcp.Clone())
	return nil
}

// Names returns the sorted recipe names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the known versions of name in ascending order.
func (r *Registry) Versions(name string) []string {
	var vers []string
	for _, rcp := range r.byName[name] {
		vers = append(vers, rcp.Version)
	}
	version.Sort(vers)
	return vers
}

// Lookup selects the recipe for ref ("name" or "name/version") and returns
// a copy configured for variant. Without a version the latest one wins.
func (r *Registry) Lookup(ref string, variant recipe.Variant) (*recipe.Recipe, error) {
	name, ver, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	cands := r.byName[name]
	if len(cands) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if ver == "" {
		ver = version.Latest(r.Versions(name))
	}
	i := slices.IndexFunc(cands, func(rcp *recipe.Recipe) bool { return rcp.Version == ver })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s/%s (known versions: %s)", ErrNotFound, name, ver, strings.Join(r.Versions(name), ", "))
	}
	rcp := cands[i].Clone()
	rcp.Variant = variant
	return rcp, nil
}

// ParseRef splits "name[/version]".
func ParseRef(ref string) (name, ver string, err error) {
	name, ver, _ = strings.Cut(ref, "/")
	if name == "" || strings.Contains(ver, "/") {
		return "", "", fmt.Errorf("invalid recipe reference %q: want name[/version]", ref)
	}
	return name, ver, nil
}
