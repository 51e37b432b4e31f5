// Package buildcfg derives the toolchain flag set from resolved options.
package buildcfg

import (
	"github.com/goplus/cppkg/pkgs/buildsys"
	"github.com/goplus/cppkg/recipe"
)

// Derive maps opts and variant to the flags passed to the toolchain.
// Benchmarks and examples are always off, tests mirror the tests option
// and the module flag is fixed by policy. It reads nothing else.
func Derive(opts *recipe.OptionSet, variant recipe.Variant, policy recipe.BuildPolicy) buildsys.Config {
	prefix := policy.Prefix
	defines := []buildsys.Define{
		buildsys.BoolDefine(prefix+"_MODULE", policy.Module),
		buildsys.BoolDefine(prefix+"_BENCHMARKS", false),
		buildsys.BoolDefine(prefix+"_EXAMPLES", false),
		buildsys.BoolDefine(prefix+"_TESTS", opts.Enabled(recipe.OptTests)),
	}
	if shared, ok := opts.Bool(recipe.OptShared); ok {
		defines = append(defines, buildsys.BoolDefine("BUILD_SHARED_LIBS", shared))
	}
	if fpic, ok := opts.Bool(recipe.OptFPIC); ok {
		defines = append(defines, buildsys.BoolDefine("CMAKE_POSITION_INDEPENDENT_CODE", fpic))
	}
	return buildsys.NewConfig(variant, defines...)
}
