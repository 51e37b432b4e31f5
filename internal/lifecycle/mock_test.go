package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/goplus/cppkg/pkgs/buildsys"
	"github.com/goplus/cppkg/recipe"
)

type mockHandle struct {
	dir string
}

func (h *mockHandle) BuildDir() string { return h.dir }

// mockToolchain records the calls it receives. A step listed in fail
// returns the associated error.
type mockToolchain struct {
	calls  []string
	config buildsys.Config
	layout *recipe.Layout
	output buildsys.TestOutput
	fail   map[string]error

	// sourceAtConfigure is the content of the patched file when configure ran.
	probe             string
	sourceAtConfigure string
}

func (m *mockToolchain) step(name string) error {
	m.calls = append(m.calls, name)
	return m.fail[name]
}

func (m *mockToolchain) Configure(ctx context.Context, cfg buildsys.Config, layout *recipe.Layout) (buildsys.Handle, error) {
	m.config, m.layout = cfg, layout
	if m.probe != "" {
		data, _ := os.ReadFile(filepath.Join(layout.Root, filepath.FromSlash(m.probe)))
		m.sourceAtConfigure = string(data)
	}
	if err := m.step("configure"); err != nil {
		return nil, err
	}
	return &mockHandle{dir: layout.BuildDir}, nil
}

func (m *mockToolchain) Build(ctx context.Context, h buildsys.Handle) error {
	return m.step("build")
}

func (m *mockToolchain) Test(ctx context.Context, h buildsys.Handle, output buildsys.TestOutput) error {
	m.output = output
	return m.step("test")
}

func (m *mockToolchain) Install(ctx context.Context, h buildsys.Handle) error {
	return m.step("install")
}

func (m *mockToolchain) called(name string) bool {
	return slices.Contains(m.calls, name)
}

type copyCall struct {
	pattern, src, dst string
}

type mockPackager struct {
	copies []copyCall
	libs   []string
	err    error
}

func (m *mockPackager) CopyArtifact(pattern, srcRoot, dstCategory string) error {
	m.copies = append(m.copies, copyCall{pattern, srcRoot, dstCategory})
	return m.err
}

func (m *mockPackager) CollectLibraries() ([]string, error) {
	return slices.Clone(m.libs), nil
}
