// Package cmake drives CMake/CTest builds for the buildsys.Toolchain contract.
package cmake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/cppkg/pkgs/buildsys"
	"github.com/goplus/cppkg/recipe"
)

type defineValue struct {
	value    string
	typeName string
}

// Runner executes one external command. It exists so tests can observe
// the command lines without invoking cmake.
type Runner func(ctx context.Context, dir, bin string, args, env []string, stdout, stderr io.Writer) error

// CMake implements buildsys.Toolchain with the cmake and ctest binaries.
type CMake struct {
	installDir string
	generator  string
	buildType  string
	toolchain  string
	jobs       int
	prefixPath []string
	env        map[string]string

	stdout io.Writer
	stderr io.Writer
	run    Runner
}

var _ buildsys.Toolchain = (*CMake)(nil)

// New returns a CMake toolchain installing into installDir.
func New(installDir string) *CMake {
	return &CMake{
		installDir: installDir,
		env:        map[string]string{},
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		run:        execRunner,
	}
}

func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

func (c *CMake) Toolchain(path string) *CMake {
	c.toolchain = path
	return c
}

// Jobs sets the parallel build level; zero leaves it to the generator.
func (c *CMake) Jobs(n int) *CMake {
	c.jobs = n
	return c
}

// PrefixPath adds an install prefix of a prebuilt dependency.
func (c *CMake) PrefixPath(dir string) *CMake {
	c.prefixPath = append(c.prefixPath, dir)
	return c
}

// Env sets an environment variable for every command this toolchain runs.
func (c *CMake) Env(key, value string) *CMake {
	c.env[key] = value
	return c
}

// Output redirects the output of the external commands.
func (c *CMake) Output(stdout, stderr io.Writer) *CMake {
	c.stdout, c.stderr = stdout, stderr
	return c
}

// WithRunner replaces the command runner.
func (c *CMake) WithRunner(r Runner) *CMake {
	c.run = r
	return c
}

type handle struct {
	sourceDir string
	buildDir  string
}

func (h *handle) BuildDir() string {
	return h.buildDir
}

func (c *CMake) Configure(ctx context.Context, cfg buildsys.Config, layout *recipe.Layout) (buildsys.Handle, error) {
	if layout == nil {
		return nil, errors.New("cmake: nil layout")
	}
	buildDir := layout.BuildDir
	if buildDir == "" {
		buildDir = filepath.Join(layout.Root, recipe.BuildSubfolder)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, err
	}
	h := &handle{sourceDir: layout.ConfigureDir, buildDir: buildDir}
	if err := c.run(ctx, "", "cmake", c.configureArgs(cfg, h), c.environ(), c.stdout, c.stderr); err != nil {
		return nil, fmt.Errorf("cmake configure: %w", err)
	}
	return h, nil
}

func (c *CMake) Build(ctx context.Context, h buildsys.Handle) error {
	args := []string{"--build", h.BuildDir()}
	if c.buildType != "" {
		args = append(args, "--config", c.buildType)
	}
	if c.jobs > 0 {
		args = append(args, "--parallel", strconv.Itoa(c.jobs))
	}
	if err := c.run(ctx, "", "cmake", args, c.environ(), c.stdout, c.stderr); err != nil {
		return fmt.Errorf("cmake build: %w", err)
	}
	return nil
}

func (c *CMake) Test(ctx context.Context, h buildsys.Handle, output buildsys.TestOutput) error {
	var args []string
	if c.buildType != "" {
		args = append(args, "-C", c.buildType)
	}
	switch output {
	case buildsys.OutputOnFailure:
		args = append(args, "--output-on-failure")
	case buildsys.OutputAlways:
		args = append(args, "--verbose")
	case buildsys.OutputNever:
		args = append(args, "--quiet")
	}
	if c.jobs > 0 {
		args = append(args, "--parallel", strconv.Itoa(c.jobs))
	}
	if err := c.run(ctx, h.BuildDir(), "ctest", args, c.environ(), c.stdout, c.stderr); err != nil {
		return fmt.Errorf("ctest: %w", err)
	}
	return nil
}

func (c *CMake) Install(ctx context.Context, h buildsys.Handle) error {
	args := []string{"--install", h.BuildDir()}
	if c.buildType != "" {
		args = append(args, "--config", c.buildType)
	}
	if c.installDir != "" {
		args = append(args, "--prefix", c.installDir)
	}
	if err := c.run(ctx, "", "cmake", args, c.environ(), c.stdout, c.stderr); err != nil {
		return fmt.Errorf("cmake install: %w", err)
	}
	return nil
}

func (c *CMake) configureArgs(cfg buildsys.Config, h *handle) []string {
	defines := map[string]defineValue{}
	for _, d := range cfg.Defines() {
		if d.Bool {
			defines[d.Key] = defineValue{value: d.Value, typeName: "BOOL"}
			continue
		}
		defines[d.Key] = defineValue{value: d.Value, typeName: "STRING"}
	}
	if c.installDir != "" {
		defines["CMAKE_INSTALL_PREFIX"] = defineValue{value: c.installDir, typeName: "PATH"}
	}
	if c.toolchain != "" {
		defines["CMAKE_TOOLCHAIN_FILE"] = defineValue{value: c.toolchain, typeName: "FILEPATH"}
	}
	if c.buildType != "" {
		defines["CMAKE_BUILD_TYPE"] = defineValue{value: c.buildType, typeName: "STRING"}
	}
	if len(c.prefixPath) > 0 {
		defines["CMAKE_PREFIX_PATH"] = defineValue{value: strings.Join(c.prefixPath, ";"), typeName: "STRING"}
	}

	args := []string{"-S", h.sourceDir, "-B", h.buildDir}
	if c.generator != "" {
		args = append(args, "-G", c.generator)
	}
	return append(args, definesArgs(defines)...)
}

func definesArgs(defines map[string]defineValue) []string {
	keys := make([]string, 0, len(defines))
	for k := range defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		def := defines[k]
		args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
	}
	return args
}

func (c *CMake) environ() []string {
	if len(c.env) == 0 {
		return nil
	}
	return mergeEnv(os.Environ(), c.env)
}

func execRunner(ctx context.Context, dir, bin string, args, env []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = env
	return cmd.Run()
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[envKey(k)] = v
		}
	}
	for k, v := range override {
		envMap[envKey(k)] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// envKey folds case on Windows where variable names are case-insensitive.
func envKey(k string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(k)
	}
	return k
}
