package recipes

import "github.com/goplus/cppkg/recipe"

var compilerPolicy = map[string]string{
	"apple-clang":   "10",
	"clang":         "6",
	"gcc":           "7",
	"Visual Studio": "16",
}

func boolOptions(tests bool) []recipe.OptionDecl {
	opts := []recipe.OptionDecl{
		{Name: recipe.OptFPIC, Kind: recipe.Bool, Default: recipe.True, DisabledOn: []string{recipe.Windows}, ImpliedBy: recipe.OptShared},
		{Name: recipe.OptShared, Kind: recipe.Bool, Default: recipe.False},
	}
	if tests {
		opts = append(opts, recipe.OptionDecl{Name: recipe.OptTests, Kind: recipe.Bool, Default: recipe.False})
	}
	return opts
}

func builtin() []*recipe.Recipe {
	return []*recipe.Recipe{
		{
			Name:     "cppserver",
			Version:  "1.0.0",
			License:  "MIT",
			Homepage: "https://github.com/chronoxor/CppServer",
			URL:      "https://github.com/conan-io/conan-center-index",
			Description: "Ultra fast and low latency asynchronous socket server and client C++ library " +
				"with support TCP, SSL, UDP, HTTP, HTTPS, WebSocket protocols and 10K connections problem solution.",
			Topics: []string{"network", "socket", "async", "low-latency"},
			Requires: []recipe.Dependency{
				{Name: "asio", Version: "1.17.0"},
				{Name: "openssl", Version: "1.1.1g"},
				{Name: "cppcommon", Version: "1.0.0.0"},
			},
			TestRequires:   []recipe.Dependency{{Name: "catch2", Version: "2.13.2"}},
			Options:        boolOptions(true),
			MinStandard:    "17",
			CompilerPolicy: compilerPolicy,
			Build:          recipe.BuildPolicy{Prefix: "CPPSERVER"},
			Stage:          recipe.StageSpec{Sources: []string{"include", "source", "CMakeLists.txt", "LICENSE"}},
			Headers:        []string{"*.h", "*.inl"},
			SystemLibs: map[string][]string{
				recipe.Linux:   {"pthread", "rt", "dl"},
				recipe.Windows: {"ws2_32", "crypt32", "rpcrt4"},
			},
			Defines: map[string][]string{
				recipe.Windows: {
					"_WIN32_WINNT=_WIN32_WINNT_WIN7",
					"_WINSOCK_DEPRECATED_NO_WARNINGS",
					"_SILENCE_CXX17_ALLOCATOR_VOID_DEPRECATION_WARNING",
				},
			},
		},
		{
			Name:     "cppcommon",
			Version:  "1.0.0.0",
			License:  "MIT",
			Homepage: "https://github.com/chronoxor/CppCommon",
			URL:      "https://github.com/conan-io/conan-center-index",
			Description: "C++ Common Library contains reusable components and patterns for error and exceptions handling, " +
				"filesystem manipulations, math, string format and encoding, shared memory, threading, time management and others.",
			Topics:         []string{"utils", "library"},
			Requires:       []recipe.Dependency{{Name: "fmt", Version: "7.0.3"}},
			Options:        boolOptions(false),
			MinStandard:    "17",
			CompilerPolicy: compilerPolicy,
			Build:          recipe.BuildPolicy{Prefix: "CPPCOMMON", Module: true},
			Stage:          recipe.StageSpec{Sources: []string{"include", "source", "plugins", "CMakeLists.txt", "LICENSE"}},
			Headers:        []string{"*.h", "*.inl"},
		},
	}
}
