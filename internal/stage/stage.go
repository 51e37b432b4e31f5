// Package stage assembles the canonical, disposable source layout of a
// recipe build.
package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goplus/cppkg/recipe"
)

// Default entries of a raw checkout.
const (
	DefaultRecipeDir = "conan"
	BuildDescription = "CMakeLists.txt"
	TestsDir         = "tests"
	ToolsDir         = "tools"
	PatchesDir       = "patches"
	// LocalDescriptionDir holds the build description of the local variant
	// inside the exported recipe folder.
	LocalDescriptionDir = "local"
	// DataFile holds the per-version patch records of a recipe.
	DataFile = "conandata.yml"
)

// DefaultSources are the entries moved into the source subfolder when a
// recipe does not list its own.
var DefaultSources = []string{"include", "source", BuildDescription}

// Roots names the directories a staging run reads from and writes to.
type Roots struct {
	// Source is the raw checkout (Upstream) or the sibling source tree
	// the recipe lives next to (Local).
	Source string
	// Staging is the disposable directory the layout is built in.
	Staging string
}

// StagingError reports a required entry that is missing or could not be
// staged.
type StagingError struct {
	Variant recipe.Variant
	Path    string
	Err     error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("stage %s sources: %s: %v", e.Variant, e.Path, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// Stage builds the layout of variant from roots. Required entries are
// checked before anything is moved, so a failure leaves roots untouched.
// Given a clean raw tree the result only depends on variant, spec and opts.
func Stage(variant recipe.Variant, roots Roots, spec recipe.StageSpec, opts *recipe.OptionSet) (*recipe.Layout, error) {
	tests := opts.Enabled(recipe.OptTests)
	switch variant {
	case recipe.Upstream:
		return stageUpstream(roots, spec, tests)
	case recipe.Local:
		return stageLocal(roots, spec, tests)
	}
	return nil, &StagingError{Variant: variant, Path: roots.Staging, Err: errors.New("unknown variant")}
}

// DataPath returns where the patch data file of variant is found before
// staging runs.
func DataPath(variant recipe.Variant, roots Roots, spec recipe.StageSpec) string {
	if variant == recipe.Local {
		return filepath.Join(roots.Staging, DataFile)
	}
	recipeDir := spec.RecipeDir
	if recipeDir == "" {
		recipeDir = DefaultRecipeDir
	}
	return filepath.Join(roots.Source, filepath.FromSlash(recipeDir), DataFile)
}

func stageUpstream(roots Roots, spec recipe.StageSpec, tests bool) (*recipe.Layout, error) {
	fail := func(path string, err error) error {
		return &StagingError{Variant: recipe.Upstream, Path: path, Err: err}
	}
	src := func(name string) string { return filepath.Join(roots.Source, filepath.FromSlash(name)) }

	recipeDir := spec.RecipeDir
	if recipeDir == "" {
		recipeDir = DefaultRecipeDir
	}
	sources := spec.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}

	required := append([]string{}, sources...)
	required = append(required, filepath.Join(recipeDir, BuildDescription))
	if tests {
		required = append(required, TestsDir, ToolsDir)
	}
	if err := requireAll(roots.Source, required, fail); err != nil {
		return nil, err
	}

	sub := filepath.Join(roots.Staging, recipe.SourceSubfolder)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return nil, fail(sub, err)
	}

	layout := &recipe.Layout{
		Variant:      recipe.Upstream,
		Root:         roots.Staging,
		SourceDir:    sub,
		ConfigureDir: roots.Staging,
		BuildDir:     filepath.Join(roots.Staging, recipe.BuildSubfolder),
		PatchDir:     filepath.Join(roots.Staging, PatchesDir),
		LicenseDir:   sub,
	}

	if tests {
		layout.Tests, layout.TestsDir = true, filepath.Join(sub, TestsDir)
		if err := copyTree(src(TestsDir), layout.TestsDir); err != nil {
			return nil, fail(TestsDir, err)
		}
		layout.Tools, layout.ToolsDir = true, filepath.Join(sub, ToolsDir)
		if err := move(src(ToolsDir), layout.ToolsDir); err != nil {
			return nil, fail(ToolsDir, err)
		}
	} else {
		for _, name := range []string{TestsDir, ToolsDir} {
			if err := os.RemoveAll(src(name)); err != nil {
				return nil, fail(name, err)
			}
		}
	}

	for _, name := range sources {
		if err := move(src(name), filepath.Join(sub, filepath.FromSlash(name))); err != nil {
			return nil, fail(name, err)
		}
	}

	patches := filepath.Join(recipeDir, PatchesDir)
	if exists(src(patches)) {
		if err := move(src(patches), layout.PatchDir); err != nil {
			return nil, fail(patches, err)
		}
	}
	aux := filepath.Join(recipeDir, BuildDescription)
	if err := move(src(aux), filepath.Join(roots.Staging, BuildDescription)); err != nil {
		return nil, fail(aux, err)
	}
	return layout, nil
}

func stageLocal(roots Roots, spec recipe.StageSpec, tests bool) (*recipe.Layout, error) {
	fail := func(path string, err error) error {
		return &StagingError{Variant: recipe.Local, Path: path, Err: err}
	}

	sources := spec.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}
	if err := requireAll(roots.Source, sources, fail); err != nil {
		return nil, err
	}
	desc := filepath.Join(LocalDescriptionDir, BuildDescription)
	required := []string{desc}
	if tests {
		required = append(required, ToolsDir)
	}
	if err := requireAll(roots.Staging, required, fail); err != nil {
		return nil, err
	}

	layout := &recipe.Layout{
		Variant:      recipe.Local,
		Root:         roots.Staging,
		SourceDir:    roots.Source,
		ConfigureDir: roots.Staging,
		BuildDir:     filepath.Join(roots.Staging, recipe.BuildSubfolder),
		PatchDir:     filepath.Join(roots.Staging, PatchesDir),
		LicenseDir:   roots.Source,
	}

	if err := move(filepath.Join(roots.Staging, desc), filepath.Join(roots.Staging, BuildDescription)); err != nil {
		return nil, fail(desc, err)
	}
	if tests {
		if err := os.MkdirAll(layout.BuildDir, 0o755); err != nil {
			return nil, fail(layout.BuildDir, err)
		}
		layout.Tools, layout.ToolsDir = true, filepath.Join(layout.BuildDir, ToolsDir)
		if err := move(filepath.Join(roots.Staging, ToolsDir), layout.ToolsDir); err != nil {
			return nil, fail(ToolsDir, err)
		}
	}
	return layout, nil
}

func requireAll(root string, names []string, fail func(string, error) error) error {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(name))); err != nil {
			return fail(filepath.ToSlash(name), err)
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// move renames src to dst, falling back to copy and remove when a rename
// is not possible (e.g. across filesystems).
func move(src, dst string) error {
	if exists(dst) {
		return fmt.Errorf("%s already exists", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyTree(src, dst); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// copyTree copies a file or directory tree from src to dst.
func copyTree(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return os.CopyFS(dst, os.DirFS(src))
	}
	return copyFile(src, dst, fi.Mode().Perm())
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
