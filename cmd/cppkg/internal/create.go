package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/goplus/cppkg/internal/lifecycle"
	"github.com/goplus/cppkg/internal/logging"
	"github.com/goplus/cppkg/internal/packager"
	"github.com/goplus/cppkg/internal/patch"
	"github.com/goplus/cppkg/internal/profile"
	"github.com/goplus/cppkg/internal/recipes"
	"github.com/goplus/cppkg/internal/stage"
	"github.com/goplus/cppkg/internal/vcs"
	"github.com/goplus/cppkg/internal/workspace"
	"github.com/goplus/cppkg/pkgs/buildsys"
	"github.com/goplus/cppkg/pkgs/buildsys/cmake"
	"github.com/goplus/cppkg/recipe"
)

type createFlags struct {
	sources        []string
	gits           []string
	ref            string
	gitPath        string
	local          bool
	settings       []string
	options        []string
	profile        string
	workspace      string
	generator      string
	cmakeToolchain string
	jobs           int
	parallel       bool
	verbose        bool
}

var createOpts createFlags

var createCmd = &cobra.Command{
	Use:   "create <name>[/<version>]...",
	Short: "Build and package recipes",
	Long: `Create fetches the sources of each recipe into the workspace, stages and
patches them, builds them with CMake and installs the package.

With several recipes, --source and --git take name=LOCATION so every recipe
gets its own checkout. Recipes that depend on each other are built in
dependency order and see each other's packages.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	f := createCmd.Flags()
	f.StringArrayVar(&createOpts.sources, "source", nil, "Source checkout `DIR` (or name=DIR)")
	f.StringArrayVar(&createOpts.gits, "git", nil, "Git `URL` to fetch the sources from (or name=URL)")
	f.StringVar(&createOpts.ref, "ref", "", "Git ref to fetch (default: the tag naming the version, then HEAD)")
	f.StringVar(&createOpts.gitPath, "git-path", "git", "Git executable")
	f.BoolVar(&createOpts.local, "local", false, "Build the local variant in place against --source")
	f.StringArrayVarP(&createOpts.settings, "setting", "s", nil, "Override a setting (key=value)")
	f.StringArrayVarP(&createOpts.options, "option", "o", nil, "Override an option ([name:]key=value)")
	f.StringVar(&createOpts.profile, "profile", "", "TOML profile `FILE` with settings, options and env")
	f.StringVar(&createOpts.workspace, "workspace", "", "Workspace `DIR` (default: user cache dir)")
	f.StringVar(&createOpts.generator, "cmake-generator", "", "CMake generator")
	f.StringVar(&createOpts.cmakeToolchain, "cmake-toolchain", "", "CMake toolchain `FILE`")
	f.IntVarP(&createOpts.jobs, "jobs", "j", 0, "Parallel build level")
	f.BoolVar(&createOpts.parallel, "parallel", false, "Build independent recipes concurrently")
	f.BoolVarP(&createOpts.verbose, "verbose", "v", false, "Show the output of the build tools")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger("cppkg", logLevel, cmd.ErrOrStderr())
	return create(cmd.Context(), cmd.OutOrStdout(), log, args, createOpts)
}

// newToolchain returns the toolchain a job builds with.
var newToolchain = func(installDir string, t *target, opts createFlags, prefixPath []string, out io.Writer) buildsys.Toolchain {
	c := cmake.New(installDir).
		BuildType(t.settings.BuildType).
		Generator(opts.generator).
		Toolchain(opts.cmakeToolchain).
		Jobs(opts.jobs)
	if !opts.verbose {
		out = io.Discard
	}
	c.Output(out, out)
	for _, dir := range prefixPath {
		c.PrefixPath(dir)
	}
	for k, v := range t.env {
		c.Env(k, v)
	}
	return c
}

// target is the build target shared by every recipe of one invocation.
type target struct {
	settings recipe.Settings
	// options are keyed by recipe name; "" applies to every recipe.
	options map[string]map[string]string
	env     map[string]string
}

func loadTarget(profilePath string, settings, options []string) (*target, error) {
	t := &target{
		settings: recipe.DefaultSettings(),
		options:  map[string]map[string]string{},
		env:      map[string]string{},
	}
	if profilePath != "" {
		p, err := profile.Load(profilePath)
		if err != nil {
			return nil, err
		}
		if err := p.Apply(&t.settings); err != nil {
			return nil, fmt.Errorf("%s: %w", profilePath, err)
		}
		for k, v := range p.Options {
			t.setOption(k, v)
		}
		maps.Copy(t.env, p.Env)
	}
	if err := t.settings.Apply(settings); err != nil {
		return nil, err
	}
	for _, pair := range options {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid option %q: want [name:]key=value", pair)
		}
		t.setOption(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return t, nil
}

func (t *target) setOption(key, value string) {
	scope, name, ok := strings.Cut(key, ":")
	if !ok {
		scope, name = "", key
	}
	if t.options[scope] == nil {
		t.options[scope] = map[string]string{}
	}
	t.options[scope][name] = value
}

func (t *target) optionsFor(name string) map[string]string {
	opts := maps.Clone(t.options[""])
	if opts == nil {
		opts = map[string]string{}
	}
	maps.Copy(opts, t.options[name])
	return opts
}

// locationFor picks the entry of values that belongs to the recipe name.
// Entries are "name=LOCATION" or a bare LOCATION, the latter only allowed
// when a single recipe is built.
func locationFor(values []string, name string, known func(string) bool, single bool) (string, error) {
	var bare string
	for _, v := range values {
		if n, loc, ok := strings.Cut(v, "="); ok && known(n) {
			if n == name {
				return loc, nil
			}
			continue
		}
		if !single {
			return "", fmt.Errorf("%q does not name a recipe: use name=LOCATION when building several recipes", v)
		}
		bare = v
	}
	return bare, nil
}

type job struct {
	rcp  *recipe.Recipe
	dir  string
	git  string
	deps []*job

	done     chan struct{}
	pkgDir   string
	info     *lifecycle.PackageInfo
	runID    string
	advisory string
}

func planJobs(reg *recipes.Registry, refs []string, opts createFlags) ([]*job, error) {
	variant := recipe.Upstream
	if opts.local {
		if len(opts.gits) > 0 {
			return nil, errors.New("--local builds against a source tree: use --source, not --git")
		}
		variant = recipe.Local
	}
	known := func(name string) bool { return len(reg.Versions(name)) > 0 }
	single := len(refs) == 1

	byName := map[string]*job{}
	var jobs []*job
	for _, ref := range refs {
		rcp, err := reg.Lookup(ref, variant)
		if err != nil {
			return nil, err
		}
		if byName[rcp.Name] != nil {
			return nil, fmt.Errorf("%s listed twice", rcp.Name)
		}
		j := &job{rcp: rcp, done: make(chan struct{})}
		if j.dir, err = locationFor(opts.sources, rcp.Name, known, single); err != nil {
			return nil, err
		}
		if j.git, err = locationFor(opts.gits, rcp.Name, known, single); err != nil {
			return nil, err
		}
		switch {
		case j.dir == "" && j.git == "":
			return nil, fmt.Errorf("%s: no sources, pass --source or --git", rcp.Ref())
		case j.dir != "" && j.git != "":
			return nil, fmt.Errorf("%s: --source and --git are exclusive", rcp.Ref())
		}
		if j.dir != "" {
			if j.dir, err = filepath.Abs(j.dir); err != nil {
				return nil, err
			}
		}
		byName[rcp.Name] = j
		jobs = append(jobs, j)
	}
	for _, j := range jobs {
		for _, req := range j.rcp.Requires {
			if dep := byName[req.Name]; dep != nil {
				j.deps = append(j.deps, dep)
			}
		}
	}
	return orderJobs(jobs)
}

// orderJobs sorts jobs so that every job follows its dependencies.
func orderJobs(jobs []*job) ([]*job, error) {
	const (
		visiting = 1
		visited  = 2
	)
	mark := map[*job]int{}
	var out []*job
	var visit func(j *job) error
	visit = func(j *job) error {
		switch mark[j] {
		case visiting:
			return fmt.Errorf("dependency cycle at %s", j.rcp.Name)
		case visited:
			return nil
		}
		mark[j] = visiting
		for _, dep := range j.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		mark[j] = visited
		out = append(out, j)
		return nil
	}
	for _, j := range jobs {
		if err := visit(j); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func create(ctx context.Context, out io.Writer, log hclog.Logger, refs []string, opts createFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := loadTarget(opts.profile, opts.settings, opts.options)
	if err != nil {
		return err
	}
	jobs, err := planJobs(recipes.Default(), refs, opts)
	if err != nil {
		return err
	}
	ws := workspace.New(opts.workspace)
	var gitOpts []vcs.GitOption
	if opts.gitPath != "" {
		gitOpts = append(gitOpts, vcs.WithGitPath(opts.gitPath))
	}
	git := vcs.NewGitVCS(gitOpts...)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	if !opts.parallel {
		g.SetLimit(1)
	}
	for _, j := range jobs {
		g.Go(func() error {
			if err := j.run(ctx, ws, git, t, opts, log, out); err != nil {
				return fmt.Errorf("%s: %w", j.rcp.Ref(), err)
			}
			mu.Lock()
			printResult(out, j)
			mu.Unlock()
			close(j.done)
			return nil
		})
	}
	return g.Wait()
}

func (j *job) run(ctx context.Context, ws *workspace.Workspace, git vcs.VCS, t *target, opts createFlags, log hclog.Logger, out io.Writer) error {
	var prefixPath []string
	for _, dep := range j.deps {
		select {
		case <-dep.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		prefixPath = append(prefixPath, dep.pkgDir)
	}

	rcp := j.rcp
	j.runID = uuid.NewString()
	log = log.With("recipe", rcp.Ref(), "variant", rcp.Variant, "run", j.runID)

	run, err := ws.For(rcp)
	if err != nil {
		return err
	}
	unlock, err := run.Lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := run.Reset(); err != nil {
		return err
	}

	roots := stage.Roots{Source: run.Stage, Staging: run.Stage}
	switch {
	case rcp.Variant == recipe.Local:
		recipeDir := rcp.Stage.RecipeDir
		if recipeDir == "" {
			recipeDir = stage.DefaultRecipeDir
		}
		if err := workspace.ExportLocal(j.dir, recipeDir, run.Stage); err != nil {
			return err
		}
		roots.Source = j.dir
	case j.git != "":
		ref, err := vcs.ResolveRef(ctx, git, j.git, opts.ref, rcp.Version)
		if err != nil {
			return err
		}
		log.Info("fetching sources", "remote", j.git, "ref", ref)
		if err := git.Sync(ctx, j.git, ref, run.Stage); err != nil {
			return err
		}
	default:
		log.Info("copying sources", "dir", j.dir)
		if err := workspace.CopySource(j.dir, run.Stage); err != nil {
			return err
		}
	}

	data, err := patch.LoadDataFile(stage.DataPath(rcp.Variant, roots, rcp.Stage))
	if err != nil {
		return err
	}

	o := lifecycle.New(lifecycle.Config{
		Recipe:    rcp,
		Settings:  t.settings,
		Options:   t.optionsFor(rcp.Name),
		Roots:     roots,
		Toolchain: newToolchain(run.Package, t, opts, prefixPath, out),
		Packager:  packager.New(run.Package),
		Patches:   data,
		Logger:    log,
	})
	info, err := o.Run(ctx)
	if err != nil {
		return err
	}
	j.info, j.pkgDir, j.advisory = info, run.Package, o.Advisory()
	return nil
}
