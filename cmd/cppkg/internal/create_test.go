package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/goplus/cppkg/internal/logging"
	"github.com/goplus/cppkg/internal/recipes"
	"github.com/goplus/cppkg/recipe"
)

const serverPatch = `diff --git a/source/server.cpp b/source/server.cpp
--- a/source/server.cpp
+++ b/source/server.cpp
@@ -1 +1 @@
-int x;
+int y;
`

const serverData = `patches:
  "1.0.0":
    package:
      - patch_file: patches/0001.patch
        base_path: source_subfolder
`

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func serverCheckout(t *testing.T) string {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"CMakeLists.txt":             "project(cppserver)",
		"LICENSE":                    "MIT",
		"include/server/server.h":    "#pragma once",
		"source/server.cpp":          "int x;\n",
		"tests/test.cpp":             "TEST",
		"tools/tool.cpp":             "int main(){}",
		"conan/CMakeLists.txt":       "add_subdirectory(source_subfolder)",
		"conan/conandata.yml":        serverData,
		"conan/patches/0001.patch":   serverPatch,
		"conan/local/CMakeLists.txt": "add_subdirectory(../.. cppserver)",
	})
	return dir
}

func commonCheckout(t *testing.T) string {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"CMakeLists.txt":          "project(cppcommon)",
		"LICENSE":                 "MIT",
		"include/common/common.h": "#pragma once",
		"source/common.cpp":       "int c;\n",
		"plugins/plugin.cpp":      "int p;\n",
		"conan/CMakeLists.txt":    "add_subdirectory(source_subfolder)",
	})
	return dir
}

var linuxGCC = []string{
	"os=Linux", "arch=x86_64", "build_type=Release",
	"compiler=gcc", "compiler.version=9", "compiler.cppstd=17",
}

func TestCreateUpstream(t *testing.T) {
	tcs := fakeToolchains(t)
	src := serverCheckout(t)
	opts := createFlags{
		sources:   []string{src},
		workspace: t.TempDir(),
		settings:  linuxGCC,
		options:   []string{"tests=True"},
	}
	var out bytes.Buffer
	if err := create(context.Background(), &out, logging.Discard(), []string{"cppserver"}, opts); err != nil {
		t.Fatalf("create: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"cppserver/1.0.0 (upstream) packaged",
		"libs        cppserver",
		"system_libs pthread rt dl",
		"requires    asio/1.17.0 openssl/1.1.1g cppcommon/1.0.0.0 catch2/2.13.2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output misses %q:\n%s", want, got)
		}
	}

	f := tcs.find("cppserver@1.0.0-upstream")
	if f == nil {
		t.Fatal("no toolchain created")
	}
	if want := []string{"configure", "build", "test", "install"}; !slices.Equal(f.steps, want) {
		t.Errorf("steps = %v, want %v", f.steps, want)
	}
	data, err := os.ReadFile(filepath.Join(f.layout.SourceDir, "source", "server.cpp"))
	if err != nil || string(data) != "int y;\n" {
		t.Errorf("staged source = %q, %v; want patched", data, err)
	}
	for _, name := range []string{"licenses/LICENSE", "include/server/server.h", "lib/libcppserver.a"} {
		if _, err := os.Stat(filepath.Join(f.installDir, filepath.FromSlash(name))); err != nil {
			t.Errorf("package misses %s: %v", name, err)
		}
	}
	// The user's checkout is never touched.
	if _, err := os.Stat(filepath.Join(src, "tools", "tool.cpp")); err != nil {
		t.Errorf("source checkout modified: %v", err)
	}

	// A second run starts from a clean workspace.
	out.Reset()
	if err := create(context.Background(), &out, logging.Discard(), []string{"cppserver/1.0.0"}, opts); err != nil {
		t.Fatalf("second create: %v", err)
	}
}

func TestCreateLocal(t *testing.T) {
	tcs := fakeToolchains(t)
	repo := serverCheckout(t)
	opts := createFlags{
		sources:   []string{repo},
		local:     true,
		workspace: t.TempDir(),
		settings:  linuxGCC,
	}
	var out bytes.Buffer
	if err := create(context.Background(), &out, logging.Discard(), []string{"cppserver"}, opts); err != nil {
		t.Fatalf("create: %v", err)
	}
	f := tcs.find("cppserver@1.0.0-local")
	if f == nil {
		t.Fatal("no toolchain created")
	}
	if f.layout.SourceDir != repo {
		t.Errorf("SourceDir = %s, want %s", f.layout.SourceDir, repo)
	}
	if want := []string{"configure", "build", "install"}; !slices.Equal(f.steps, want) {
		t.Errorf("steps = %v", f.steps)
	}
	data, _ := os.ReadFile(filepath.Join(repo, "source", "server.cpp"))
	if string(data) != "int x;\n" {
		t.Errorf("local build patched the sibling tree: %q", data)
	}
	if !strings.Contains(out.String(), "cppserver/1.0.0 (local) packaged") {
		t.Errorf("output = %s", out.String())
	}
}

func TestCreateDependencyOrder(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		tcs := fakeToolchains(t)
		opts := createFlags{
			sources:   []string{"cppserver=" + serverCheckout(t), "cppcommon=" + commonCheckout(t)},
			workspace: t.TempDir(),
			settings:  linuxGCC,
			options:   []string{"cppserver:tests=True"},
			parallel:  parallel,
		}
		var out bytes.Buffer
		if err := create(context.Background(), &out, logging.Discard(), []string{"cppserver", "cppcommon"}, opts); err != nil {
			t.Fatalf("parallel=%v: create: %v", parallel, err)
		}
		common := tcs.find("cppcommon@")
		server := tcs.find("cppserver@")
		if common == nil || server == nil {
			t.Fatalf("parallel=%v: toolchains = %v", parallel, tcs.all)
		}
		if !slices.Equal(server.prefixPath, []string{common.installDir}) {
			t.Errorf("parallel=%v: cppserver prefix path = %v, want %s", parallel, server.prefixPath, common.installDir)
		}
		if slices.Contains(common.steps, "test") {
			t.Errorf("parallel=%v: cppcommon ran tests", parallel)
		}
		if got := out.String(); strings.Index(got, "cppcommon/") > strings.Index(got, "cppserver/") {
			t.Errorf("parallel=%v: cppserver reported before its dependency:\n%s", parallel, got)
		}
	}
}

func TestCreateAbortReportsState(t *testing.T) {
	fakeToolchains(t)
	src := serverCheckout(t)
	if err := os.WriteFile(filepath.Join(src, "source", "server.cpp"), []byte("int z;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := createFlags{sources: []string{src}, workspace: t.TempDir(), settings: linuxGCC}
	err := create(context.Background(), new(bytes.Buffer), logging.Discard(), []string{"cppserver"}, opts)
	if err == nil || !strings.Contains(err.Error(), "aborted after Staged") {
		t.Fatalf("err = %v, want abort after Staged", err)
	}
}

func TestPlanJobsErrors(t *testing.T) {
	reg := recipes.Default()
	tests := []struct {
		name string
		refs []string
		opts createFlags
	}{
		{"no sources", []string{"cppserver"}, createFlags{}},
		{"both sources", []string{"cppserver"}, createFlags{sources: []string{"a"}, gits: []string{"b"}}},
		{"bare source with several recipes", []string{"cppserver", "cppcommon"}, createFlags{sources: []string{"a"}}},
		{"local from git", []string{"cppserver"}, createFlags{local: true, gits: []string{"b"}}},
		{"listed twice", []string{"cppserver", "cppserver/1.0.0"}, createFlags{sources: []string{"cppserver=a"}}},
		{"unknown recipe", []string{"zlib"}, createFlags{sources: []string{"a"}}},
	}
	for _, tt := range tests {
		if _, err := planJobs(reg, tt.refs, tt.opts); err == nil {
			t.Errorf("%s: planJobs succeeded", tt.name)
		}
	}
}

func TestLocationFor(t *testing.T) {
	known := func(name string) bool { return name == "cppserver" || name == "cppcommon" }
	values := []string{"cppcommon=/src/common", "cppserver=/src/server"}
	if got, err := locationFor(values, "cppserver", known, false); err != nil || got != "/src/server" {
		t.Errorf("scoped = %q, %v", got, err)
	}
	if got, err := locationFor([]string{"https://host/repo.git?a=b"}, "cppserver", known, true); err != nil || got != "https://host/repo.git?a=b" {
		t.Errorf("bare = %q, %v", got, err)
	}
	if got, err := locationFor(values[:1], "cppserver", known, false); err != nil || got != "" {
		t.Errorf("missing = %q, %v", got, err)
	}
}

func TestLoadTarget(t *testing.T) {
	prof := filepath.Join(t.TempDir(), "p.toml")
	doc := "[settings]\nos = \"Windows\"\ncompiler = \"Visual Studio\"\n\"compiler.version\" = \"16\"\n\n[options]\nshared = true\n\"cppserver:tests\" = true\n\n[env]\nCC = \"cl\"\n"
	if err := os.WriteFile(prof, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	tg, err := loadTarget(prof, []string{"compiler.version=17"}, []string{"shared=False", "cppcommon:fPIC=False"})
	if err != nil {
		t.Fatalf("loadTarget: %v", err)
	}
	if tg.settings.OS != recipe.Windows || tg.settings.CompilerVersion != "17" {
		t.Errorf("settings = %s", tg.settings)
	}
	server := tg.optionsFor("cppserver")
	if server["shared"] != "False" || server["tests"] != recipe.True || len(server) != 2 {
		t.Errorf("cppserver options = %v", server)
	}
	common := tg.optionsFor("cppcommon")
	if common["fPIC"] != "False" || common["tests"] != "" {
		t.Errorf("cppcommon options = %v", common)
	}
	if tg.env["CC"] != "cl" {
		t.Errorf("env = %v", tg.env)
	}

	if _, err := loadTarget("", nil, []string{"shared"}); err == nil {
		t.Error("option without value accepted")
	}
	if _, err := loadTarget("", []string{"color=blue"}, nil); err == nil {
		t.Error("unknown setting accepted")
	}
}

func TestOrderJobsCycle(t *testing.T) {
	a := &job{rcp: &recipe.Recipe{Name: "a"}}
	b := &job{rcp: &recipe.Recipe{Name: "b"}, deps: []*job{a}}
	a.deps = []*job{b}
	if _, err := orderJobs([]*job{a, b}); err == nil {
		t.Error("cycle not detected")
	}
}

func TestInspect(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	opts := createFlags{settings: linuxGCC, options: []string{"tests=True"}}
	if err := inspect(context.Background(), &out, "cppserver", opts); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"cppserver/1.0.0 (upstream)",
		"options     fPIC=True shared=False tests=True",
		"CPPSERVER_TESTS=ON",
		"catch2/2.13.2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output misses %q:\n%s", want, got)
		}
	}

	bad := createFlags{settings: []string{"os=Windows", "arch=x86", "compiler=Visual Studio", "compiler.version=16"}}
	if err := inspect(context.Background(), &out, "cppserver", bad); err == nil {
		t.Error("inspect accepted Visual Studio x86")
	}
}

func TestList(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	list(&out, recipes.Default())
	if got, want := out.String(), "cppcommon 1.0.0.0\ncppserver 1.0.0\n"; got != want {
		t.Errorf("list = %q, want %q", got, want)
	}
}

func TestCreateGitPath(t *testing.T) {
	fakeToolchains(t)
	missing := filepath.Join(t.TempDir(), "no-git")
	opts := createFlags{
		gits:      []string{"file:///nowhere/cppserver.git"},
		gitPath:   missing,
		workspace: t.TempDir(),
		settings:  linuxGCC,
	}
	err := create(context.Background(), new(bytes.Buffer), logging.Discard(), []string{"cppserver"}, opts)
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Fatalf("err = %v, want git run through %s", err, missing)
	}
}
