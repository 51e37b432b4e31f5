package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"github.com/goplus/cppkg/pkgs/buildsys"
	"github.com/goplus/cppkg/recipe"
)

type fakeHandle struct{ dir string }

func (h *fakeHandle) BuildDir() string { return h.dir }

// fakeToolchain pretends to build: Install drops a static library named
// after the recipe into the install directory.
type fakeToolchain struct {
	installDir string
	prefixPath []string
	layout     *recipe.Layout
	steps      []string
}

func (f *fakeToolchain) Configure(ctx context.Context, cfg buildsys.Config, layout *recipe.Layout) (buildsys.Handle, error) {
	f.layout = layout
	f.steps = append(f.steps, "configure")
	return &fakeHandle{dir: layout.BuildDir}, nil
}

func (f *fakeToolchain) Build(ctx context.Context, h buildsys.Handle) error {
	f.steps = append(f.steps, "build")
	return nil
}

func (f *fakeToolchain) Test(ctx context.Context, h buildsys.Handle, output buildsys.TestOutput) error {
	f.steps = append(f.steps, "test")
	return nil
}

func (f *fakeToolchain) Install(ctx context.Context, h buildsys.Handle) error {
	f.steps = append(f.steps, "install")
	name := filepath.Base(filepath.Dir(f.installDir))
	name, _, _ = strings.Cut(name, "@")
	lib := filepath.Join(f.installDir, "lib", "lib"+name+".a")
	if err := os.MkdirAll(filepath.Dir(lib), 0o755); err != nil {
		return err
	}
	return os.WriteFile(lib, nil, 0o644)
}

type toolchains struct {
	mu  sync.Mutex
	all map[string]*fakeToolchain
}

func fakeToolchains(t *testing.T) *toolchains {
	t.Helper()
	color.NoColor = true
	tcs := &toolchains{all: map[string]*fakeToolchain{}}
	saved := newToolchain
	newToolchain = func(installDir string, _ *target, _ createFlags, prefixPath []string, _ io.Writer) buildsys.Toolchain {
		tcs.mu.Lock()
		defer tcs.mu.Unlock()
		f := &fakeToolchain{installDir: installDir, prefixPath: prefixPath}
		tcs.all[installDir] = f
		return f
	}
	t.Cleanup(func() { newToolchain = saved })
	return tcs
}

func (tcs *toolchains) find(prefix string) *fakeToolchain {
	for dir, f := range tcs.all {
		if strings.HasPrefix(filepath.Base(filepath.Dir(dir)), prefix) {
			return f
		}
	}
	return nil
}
