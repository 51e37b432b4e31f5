// Package workspace manages the per-recipe directories a build runs in.
//
// Layout:
//
//	root/
//	  <name>@<version>-<variant>/
//	    .lock      # held for the duration of a run
//	    stage/     # raw checkout, then staged layout (upstream)
//	               # exported recipe folder (local)
//	    package/   # install prefix
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/mod/module"

	"github.com/goplus/cppkg/internal/lockedfile"
	"github.com/goplus/cppkg/recipe"
)

const (
	dirName  = "cppkg"
	lockFile = ".lock"
)

// DefaultRoot returns the workspace root under the user cache directory.
func DefaultRoot() string {
	return filepath.Join(xdg.CacheHome, dirName)
}

// Workspace is a directory holding recipe runs.
type Workspace struct {
	root string
}

// New returns a workspace rooted at root, or at DefaultRoot when root is
// empty.
func New(root string) *Workspace {
	if root == "" {
		root = DefaultRoot()
	}
	return &Workspace{root: root}
}

// Root returns the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Run is the directory set of one recipe instance.
type Run struct {
	Dir     string
	Stage   string
	Package string
}

// For returns the run directories of rcp. Distinct recipes, versions and
// variants never share a directory.
func (w *Workspace) For(rcp *recipe.Recipe) (*Run, error) {
	name, err := module.EscapeVersion(rcp.Name)
	if err != nil {
		return nil, fmt.Errorf("workspace for %s: %w", rcp.Ref(), err)
	}
	ver, err := module.EscapeVersion(rcp.Version)
	if err != nil {
		return nil, fmt.Errorf("workspace for %s: %w", rcp.Ref(), err)
	}
	dir := filepath.Join(w.root, fmt.Sprintf("%s@%s-%s", name, ver, rcp.Variant))
	return &Run{
		Dir:     dir,
		Stage:   filepath.Join(dir, "stage"),
		Package: filepath.Join(dir, "package"),
	}, nil
}

// Lock takes the run's exclusive lock, blocking while another process
// holds it.
func (r *Run) Lock() (unlock func(), err error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, err
	}
	return lockedfile.MutexAt(filepath.Join(r.Dir, lockFile)).Lock()
}

// Reset wipes the stage and package directories and recreates them empty.
// An interrupted run is never resumed.
func (r *Run) Reset() error {
	for _, dir := range []string{r.Stage, r.Package} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
