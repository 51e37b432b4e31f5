// Package packager collects build artifacts into a package directory.
package packager

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Package directory categories.
const (
	Include  = "include"
	Lib      = "lib"
	Bin      = "bin"
	Licenses = "licenses"
)

var libExts = []string{".a", ".so", ".lib", ".dylib"}

// FS packages into a directory on the local filesystem.
type FS struct {
	dir string
}

// New returns a packager writing into dir.
func New(dir string) *FS {
	return &FS{dir: dir}
}

// Dir returns the package directory.
func (p *FS) Dir() string {
	return p.dir
}

// CopyArtifact copies every regular file below srcRoot whose base name
// matches pattern into dstCategory, keeping its path relative to srcRoot.
// A missing srcRoot copies nothing.
func (p *FS) CopyArtifact(pattern, srcRoot, dstCategory string) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("copy %s: %w", pattern, err)
	}
	dst := filepath.Join(p.dir, filepath.FromSlash(dstCategory))
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == srcRoot && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
	if err != nil {
		return fmt.Errorf("copy %s from %s: %w", pattern, srcRoot, err)
	}
	return nil
}

// CollectLibraries returns the sorted names of the libraries installed
// under the lib category, without "lib" prefix or extension.
func (p *FS) CollectLibraries() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dir, Lib))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var libs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := libName(e.Name()); ok && !slices.Contains(libs, name) {
			libs = append(libs, name)
		}
	}
	slices.Sort(libs)
	return libs, nil
}

func libName(file string) (string, bool) {
	ext := filepath.Ext(file)
	if !slices.Contains(libExts, ext) {
		// libfoo.so.1.2
		i := strings.Index(file, ".so.")
		if i <= 0 {
			return "", false
		}
		file, ext = file[:i], ""
	}
	name := strings.TrimSuffix(file, ext)
	if ext != ".lib" {
		name = strings.TrimPrefix(name, "lib")
	}
	return name, name != ""
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
