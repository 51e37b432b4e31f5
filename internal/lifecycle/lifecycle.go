// Package lifecycle drives one recipe through configure, source, build and
// package.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-hclog"

	"github.com/goplus/cppkg/internal/buildcfg"
	"github.com/goplus/cppkg/internal/gate"
	"github.com/goplus/cppkg/internal/packager"
	"github.com/goplus/cppkg/internal/patch"
	"github.com/goplus/cppkg/internal/stage"
	"github.com/goplus/cppkg/pkgs/buildsys"
	"github.com/goplus/cppkg/recipe"
)

// State is a lifecycle state.
type State int

const (
	Unconfigured State = iota
	OptionsResolved
	Validated
	Staged
	Patched
	Built
	Packaged
	Aborted
)

var stateNames = [...]string{
	Unconfigured:    "Unconfigured",
	OptionsResolved: "OptionsResolved",
	Validated:       "Validated",
	Staged:          "Staged",
	Patched:         "Patched",
	Built:           "Built",
	Packaged:        "Packaged",
	Aborted:         "Aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrOutOfOrder is returned when a stage is invoked before its predecessor
// completed.
var ErrOutOfOrder = errors.New("lifecycle stage called out of order")

// AbortedError records the last completed state of an aborted lifecycle.
type AbortedError struct {
	State State
	Err   error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("aborted after %s: %v", e.State, e.Err)
}

func (e *AbortedError) Unwrap() error {
	return e.Err
}

// ToolchainError wraps a failure of an external toolchain step.
type ToolchainError struct {
	Step string
	Err  error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("toolchain %s: %v", e.Step, e.Err)
}

func (e *ToolchainError) Unwrap() error {
	return e.Err
}

// Packager collects build artifacts into a package.
type Packager interface {
	CopyArtifact(pattern, srcRoot, dstCategory string) error
	CollectLibraries() ([]string, error)
}

// PackageInfo is the link metadata of a finished package.
type PackageInfo struct {
	Libs       []string
	SystemLibs []string
	Defines    []string
	Requires   []recipe.Dependency
}

// Config holds everything an Orchestrator needs for one run.
type Config struct {
	Recipe   *recipe.Recipe
	Settings recipe.Settings
	// Options are raw user overrides.
	Options map[string]string
	Roots   stage.Roots

	Toolchain buildsys.Toolchain
	Packager  Packager
	// Patches holds the patch records of every version. Nil means none.
	Patches *patch.Data

	Logger hclog.Logger
}

// Orchestrator runs the lifecycle of a single recipe instance. It is not
// safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	log    hclog.Logger
	state  State
	err    *AbortedError
	opts   *recipe.OptionSet
	reqs   []recipe.Dependency
	layout *recipe.Layout
	config buildsys.Config
	handle buildsys.Handle
	info   *PackageInfo

	advisory string
}

// New returns an Orchestrator in the Unconfigured state.
func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Orchestrator{cfg: cfg, log: log}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Err returns the abort error, if any.
func (o *Orchestrator) Err() error {
	if o.err == nil {
		return nil
	}
	return o.err
}

// Options returns the resolved options; nil before Configure.
func (o *Orchestrator) Options() *recipe.OptionSet {
	return o.opts
}

// Layout returns the staged layout; nil before Source.
func (o *Orchestrator) Layout() *recipe.Layout {
	return o.layout
}

// BuildConfig returns the flags handed to the toolchain.
func (o *Orchestrator) BuildConfig() buildsys.Config {
	return o.config
}

// Advisory returns the compiler gate advisory, if any.
func (o *Orchestrator) Advisory() string {
	return o.advisory
}

// enter checks that the lifecycle is in state from.
func (o *Orchestrator) enter(from State) error {
	if o.err != nil {
		return o.err
	}
	if o.state != from {
		return fmt.Errorf("%w: in state %s, want %s", ErrOutOfOrder, o.state, from)
	}
	return nil
}

func (o *Orchestrator) abort(err error) error {
	o.err = &AbortedError{State: o.state, Err: err}
	o.log.Error("lifecycle aborted", "state", o.state, "error", err)
	o.state = Aborted
	return o.err
}

func (o *Orchestrator) advance(to State) {
	o.log.Debug("state", "from", o.state, "to", to)
	o.state = to
}

// Configure resolves options, declares requirements and validates the
// compiler.
func (o *Orchestrator) Configure(ctx context.Context) error {
	if err := o.enter(Unconfigured); err != nil {
		return err
	}
	r := o.cfg.Recipe
	opts, err := recipe.Derive(r.Options, o.cfg.Options, o.cfg.Settings)
	if err != nil {
		return o.abort(err)
	}
	o.opts = opts.WithDefines(r.Defines)
	o.reqs = slices.Clone(r.Requires)
	if opts.Enabled(recipe.OptTests) {
		o.reqs = append(o.reqs, r.TestRequires...)
	}
	o.log.Info("options resolved", "options", opts.String())
	o.advance(OptionsResolved)

	if err := ctx.Err(); err != nil {
		return o.abort(err)
	}
	res, err := gate.Validate(o.cfg.Settings, r.MinStandard, r.CompilerPolicy)
	if err != nil {
		return o.abort(err)
	}
	if res.Advisory != "" {
		o.advisory = res.Advisory
		o.log.Warn(res.Advisory)
	}
	o.advance(Validated)
	return nil
}

// Requirements returns the dependency list. The test dependency is only
// present when tests are enabled.
func (o *Orchestrator) Requirements() ([]recipe.Dependency, error) {
	if o.err != nil {
		return nil, o.err
	}
	if o.state < Validated {
		return nil, fmt.Errorf("%w: requirements before configure", ErrOutOfOrder)
	}
	return slices.Clone(o.reqs), nil
}

// Source stages the recipe's sources.
func (o *Orchestrator) Source(ctx context.Context) error {
	if err := o.enter(Validated); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return o.abort(err)
	}
	r := o.cfg.Recipe
	layout, err := stage.Stage(r.Variant, o.cfg.Roots, r.Stage, o.opts)
	if err != nil {
		return o.abort(err)
	}
	o.layout = layout
	o.log.Info("sources staged", "variant", r.Variant, "root", layout.Root, "tests", layout.Tests)
	o.advance(Staged)
	return nil
}

// Build applies patches and runs the toolchain's configure, build and,
// when tests are enabled, test steps.
func (o *Orchestrator) Build(ctx context.Context) error {
	if err := o.enter(Staged); err != nil {
		return err
	}
	r := o.cfg.Recipe
	if o.cfg.Patches != nil {
		scope := patch.Package
		if r.Variant == recipe.Local {
			scope = patch.Local
		}
		e := &patch.Engine{Payloads: os.DirFS(o.layout.Root)}
		records := o.cfg.Patches.Records(r.Version)
		if err := e.Apply(patch.DirTree(o.layout.Root), records, scope); err != nil {
			return o.abort(err)
		}
		o.log.Debug("patches applied", "scope", scope, "version", r.Version, "records", len(records))
	}
	o.advance(Patched)

	o.config = buildcfg.Derive(o.opts, r.Variant, r.Build)
	tc := o.cfg.Toolchain
	h, err := tc.Configure(ctx, o.config, o.layout)
	if err != nil {
		return o.abort(&ToolchainError{Step: "configure", Err: err})
	}
	o.handle = h
	if err := tc.Build(ctx, h); err != nil {
		return o.abort(&ToolchainError{Step: "build", Err: err})
	}
	if o.opts.Enabled(recipe.OptTests) {
		if err := tc.Test(ctx, h, buildsys.OutputOnFailure); err != nil {
			return o.abort(&ToolchainError{Step: "test", Err: err})
		}
	}
	o.advance(Built)
	return nil
}

// Package installs the build results and computes the package metadata.
func (o *Orchestrator) Package(ctx context.Context) error {
	if err := o.enter(Built); err != nil {
		return err
	}
	if err := o.cfg.Toolchain.Install(ctx, o.handle); err != nil {
		return o.abort(&ToolchainError{Step: "install", Err: err})
	}
	r := o.cfg.Recipe
	p := o.cfg.Packager
	include := filepath.Join(o.layout.SourceDir, packager.Include)
	for _, pat := range r.Headers {
		if err := p.CopyArtifact(pat, include, packager.Include); err != nil {
			return o.abort(err)
		}
	}
	if err := p.CopyArtifact("LICENSE", o.layout.LicenseDir, packager.Licenses); err != nil {
		return o.abort(err)
	}
	libs, err := p.CollectLibraries()
	if err != nil {
		return o.abort(err)
	}
	s := o.cfg.Settings
	o.info = &PackageInfo{
		Libs:       libs,
		SystemLibs: slices.Clone(r.SystemLibs[s.OS]),
		Defines:    o.opts.EffectiveDefines(s),
		Requires:   slices.Clone(o.reqs),
	}
	o.log.Info("packaged", "libs", libs)
	o.advance(Packaged)
	return nil
}

// PackageInfo returns the package metadata once the lifecycle reached
// Packaged.
func (o *Orchestrator) PackageInfo() (*PackageInfo, error) {
	if o.err != nil {
		return nil, o.err
	}
	if o.state != Packaged {
		return nil, fmt.Errorf("%w: package info in state %s", ErrOutOfOrder, o.state)
	}
	return o.info, nil
}

// Run executes every stage in order.
func (o *Orchestrator) Run(ctx context.Context) (*PackageInfo, error) {
	steps := []func(context.Context) error{o.Configure, o.Source, o.Build, o.Package}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return nil, err
		}
	}
	return o.PackageInfo()
}
