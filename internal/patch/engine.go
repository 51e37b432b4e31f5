package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// Tree is the writable view of a staged source tree. Names are
// slash-separated and relative to the staging root.
type Tree interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
}

// DirTree is a Tree rooted at a directory on disk.
type DirTree string

func (t DirTree) path(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid path %q", name)
	}
	return filepath.Join(string(t), filepath.FromSlash(name)), nil
}

func (t DirTree) ReadFile(name string) ([]byte, error) {
	p, err := t.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (t DirTree) WriteFile(name string, data []byte) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(p); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, mode)
}

func (t DirTree) Remove(name string) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

// Engine applies patch records. Payloads is rooted at the staging root,
// the same directory operation file names are relative to.
type Engine struct {
	Payloads fs.FS
}

// Apply applies every record of scope to tree in list order. Records of
// other scopes are skipped. The first failure stops the run; patches
// already applied stay on disk, so callers must re-stage before retrying.
func (e *Engine) Apply(tree Tree, records []Record, scope Scope) error {
	for _, rec := range records {
		if rec.Scope != scope {
			continue
		}
		for i, op := range rec.Ops {
			if err := e.applyOp(tree, op); err != nil {
				return &ApplicationError{Scope: scope, Version: rec.Version, Index: i, File: op.File, Err: err}
			}
		}
	}
	return nil
}

func (e *Engine) applyOp(tree Tree, op Operation) error {
	if e.Payloads == nil {
		return errors.New("no patch payload source")
	}
	payload, err := fs.ReadFile(e.Payloads, path.Clean(filepath.ToSlash(op.File)))
	if err != nil {
		return err
	}
	files, err := Parse(payload)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("patch contains no file changes")
	}
	for _, f := range files {
		if err := applyToTree(tree, op, f); err != nil {
			return err
		}
	}
	return nil
}

func applyToTree(tree Tree, op Operation, f *gitdiff.File) error {
	oldName, err := target(op, f.OldName)
	if err != nil {
		return err
	}
	newName, err := target(op, f.NewName)
	if err != nil {
		return err
	}

	var before []byte
	if !f.IsNew {
		if before, err = tree.ReadFile(oldName); err != nil {
			return err
		}
	}
	after, err := ApplyFile(before, f)
	if err != nil {
		return fmt.Errorf("%s: %w", oldName, err)
	}
	if f.IsDelete {
		return tree.Remove(oldName)
	}
	if err := tree.WriteFile(newName, after); err != nil {
		return err
	}
	if f.IsRename && oldName != newName {
		return tree.Remove(oldName)
	}
	return nil
}

// target resolves a file name from a payload under the operation base.
func target(op Operation, name string) (string, error) {
	if name == "" || name == "/dev/null" {
		return "", nil
	}
	parts := strings.Split(filepath.ToSlash(name), "/")
	if op.Strip > 0 {
		if op.Strip >= len(parts) {
			return "", fmt.Errorf("cannot strip %d components from %q", op.Strip, name)
		}
		parts = parts[op.Strip:]
	}
	p := path.Join(filepath.ToSlash(op.Base), path.Join(parts...))
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("patch target %q escapes the staging root", p)
	}
	return p, nil
}
