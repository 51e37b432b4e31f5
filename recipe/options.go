package recipe

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Well-known option names.
const (
	OptFPIC   = "fPIC"
	OptShared = "shared"
	OptTests  = "tests"
)

// Canonical boolean values.
const (
	True  = "True"
	False = "False"
)

// OptionKind is the value domain of an option.
type OptionKind int

const (
	Bool OptionKind = iota
	Enum
)

// OptionDecl declares an option, its domain and when it stops applying.
type OptionDecl struct {
	Name    string
	Kind    OptionKind
	Values  []string // Enum only
	Default string

	// DisabledOn lists target OSes on which the option is not applicable.
	DisabledOn []string
	// ImpliedBy names a boolean option which, when True, makes this
	// option not applicable.
	ImpliedBy string
}

func (d OptionDecl) clone() OptionDecl {
	d.Values = slices.Clone(d.Values)
	d.DisabledOn = slices.Clone(d.DisabledOn)
	return d
}

func (d OptionDecl) allowed() []string {
	if d.Kind == Bool {
		return []string{True, False}
	}
	return d.Values
}

// normalize maps value into the declared domain.
func (d OptionDecl) normalize(value string) (string, bool) {
	if d.Kind == Bool {
		switch strings.ToLower(value) {
		case "true", "1", "on", "yes":
			return True, true
		case "false", "0", "off", "no":
			return False, true
		}
		return "", false
	}
	if slices.Contains(d.Values, value) {
		return value, true
	}
	return "", false
}

// InvalidOptionError reports an unknown option or an out-of-domain value.
type InvalidOptionError struct {
	Name    string
	Value   string
	Allowed []string
}

func (e *InvalidOptionError) Error() string {
	if e.Allowed == nil {
		return fmt.Sprintf("invalid option %q: not declared", e.Name)
	}
	return fmt.Sprintf("invalid option %s=%q: allowed values are %s",
		e.Name, e.Value, strings.Join(e.Allowed, ", "))
}

// Option is either Applicable with a value or NotApplicable.
type Option struct {
	Value      string
	Applicable bool
}

// NotApplicable is the value of a pruned option.
var NotApplicable = Option{}

// Applicable wraps value as an applicable option.
func Applicable(value string) Option {
	return Option{Value: value, Applicable: true}
}

// OptionSet is the resolved option state of one recipe instance.
type OptionSet struct {
	opts    map[string]Option
	order   []string
	defines map[string][]string
}

// Derive resolves raw overrides against decls and prunes options that do
// not apply to s. The same inputs always yield the same set.
func Derive(decls []OptionDecl, raw map[string]string, s Settings) (*OptionSet, error) {
	set := &OptionSet{opts: make(map[string]Option, len(decls))}
	byName := make(map[string]OptionDecl, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
		set.order = append(set.order, d.Name)
		v, ok := d.normalize(d.Default)
		if !ok {
			return nil, &InvalidOptionError{Name: d.Name, Value: d.Default, Allowed: d.allowed()}
		}
		set.opts[d.Name] = Applicable(v)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d, ok := byName[name]
		if !ok {
			return nil, &InvalidOptionError{Name: name, Value: raw[name]}
		}
		v, ok := d.normalize(raw[name])
		if !ok {
			return nil, &InvalidOptionError{Name: name, Value: raw[name], Allowed: d.allowed()}
		}
		set.opts[name] = Applicable(v)
	}

	// Platform rules run first, then rules depending on other options.
	for _, d := range decls {
		if slices.Contains(d.DisabledOn, s.OS) {
			set.opts[d.Name] = NotApplicable
		}
	}
	for _, d := range decls {
		if d.ImpliedBy == "" {
			continue
		}
		if on, applicable := set.Bool(d.ImpliedBy); applicable && on {
			set.opts[d.Name] = NotApplicable
		}
	}
	return set, nil
}

// WithDefines attaches per-OS preprocessor macros used by EffectiveDefines.
func (o *OptionSet) WithDefines(defines map[string][]string) *OptionSet {
	o.defines = cloneListMap(defines)
	return o
}

// Get returns the option and whether it was declared.
func (o *OptionSet) Get(name string) (Option, bool) {
	opt, ok := o.opts[name]
	return opt, ok
}

// Has reports whether name is declared and applicable.
func (o *OptionSet) Has(name string) bool {
	opt, ok := o.opts[name]
	return ok && opt.Applicable
}

// Bool returns the boolean value of name and whether it is applicable.
// An undeclared option reads as false and not applicable.
func (o *OptionSet) Bool(name string) (value, applicable bool) {
	opt, ok := o.opts[name]
	if !ok || !opt.Applicable {
		return false, false
	}
	return opt.Value == True, true
}

// Enabled reports whether a boolean option is applicable and True.
func (o *OptionSet) Enabled(name string) bool {
	v, _ := o.Bool(name)
	return v
}

// Names returns declared option names in declaration order.
func (o *OptionSet) Names() []string {
	return slices.Clone(o.order)
}

// EffectiveDefines returns the preprocessor macros injected for the
// target OS of s.
func (o *OptionSet) EffectiveDefines(s Settings) []string {
	return slices.Clone(o.defines[s.OS])
}

func (o *OptionSet) String() string {
	parts := make([]string, 0, len(o.order))
	for _, name := range o.order {
		if opt := o.opts[name]; opt.Applicable {
			parts = append(parts, name+"="+opt.Value)
		}
	}
	return strings.Join(parts, " ")
}
