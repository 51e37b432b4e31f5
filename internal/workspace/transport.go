package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CopySource copies the checkout at src into the empty directory dst.
func CopySource(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("copy source: %s is not a directory", src)
	}
	fsys := os.DirFS(src)
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return fs.SkipDir
		}
		if path == "." {
			return nil
		}
		target := filepath.Join(dst, filepath.FromSlash(path))
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			return copyFile(filepath.Join(src, filepath.FromSlash(path)), target)
		}
		// symlinks and devices are not part of a source tree
		return nil
	})
}

// ExportLocal fills dst with the recipe files a local build needs: the
// local build description, patches and data file from recipeDir inside
// repo, and the repository's tools tree. Missing entries are skipped and
// reported later by staging.
func ExportLocal(repo, recipeDir, dst string) error {
	entries := []struct{ from, to string }{
		{filepath.Join(repo, recipeDir, "local"), "local"},
		{filepath.Join(repo, recipeDir, "patches"), "patches"},
		{filepath.Join(repo, recipeDir, "conandata.yml"), "conandata.yml"},
		{filepath.Join(repo, "tools"), "tools"},
	}
	for _, e := range entries {
		fi, err := os.Stat(e.from)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dst, e.to)
		if fi.IsDir() {
			err = CopySource(e.from, target)
		} else {
			err = copyFile(e.from, target)
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", e.to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, fi.Mode().Perm())
}
