// Package gate checks a compiler configuration against a recipe's
// minimum-version policy.
package gate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goplus/cppkg/pkgs/version"
	"github.com/goplus/cppkg/recipe"
)

// Policy maps a compiler name to its minimum supported version.
type Policy map[string]string

// Result carries the non-fatal outcome of a successful validation.
type Result struct {
	// Advisory is set when compatibility could not be verified.
	Advisory string
}

// UnsupportedConfigurationError is returned when a compiler, architecture or
// standard level cannot build the recipe.
type UnsupportedConfigurationError struct {
	Compiler string
	Version  string
	Arch     string
	Standard string
	// Required is the minimum version or standard that was not met.
	Required string
	Reason   string
}

func (e *UnsupportedConfigurationError) Error() string {
	return fmt.Sprintf("unsupported configuration (compiler=%s version=%s arch=%s cppstd=%s required=%s): %s",
		e.Compiler, e.Version, e.Arch, e.Standard, e.Required, e.Reason)
}

// Validate runs the checks in order and stops at the first failure:
// known-bad compiler/arch pairs, the declared standard level, and the
// minimum compiler version from policy.
func Validate(s recipe.Settings, requiredStd string, policy Policy) (Result, error) {
	unsupported := func(required, reason string) error {
		return &UnsupportedConfigurationError{
			Compiler: s.Compiler,
			Version:  s.CompilerVersion,
			Arch:     s.Arch,
			Standard: s.CompilerStd,
			Required: required,
			Reason:   reason,
		}
	}

	if s.Compiler == "Visual Studio" && s.Arch == "x86" {
		return Result{}, unsupported("", "Visual Studio x86 builds are not supported")
	}

	if requiredStd != "" && s.CompilerStd != "" {
		have, err := stdYear(s.CompilerStd)
		if err != nil {
			return Result{}, unsupported(requiredStd, err.Error())
		}
		want, err := stdYear(requiredStd)
		if err != nil {
			return Result{}, unsupported(requiredStd, err.Error())
		}
		if have < want {
			return Result{}, unsupported(requiredStd,
				fmt.Sprintf("C++%s or newer is required, compiler.cppstd is %s", requiredStd, s.CompilerStd))
		}
	}

	minimum, ok := policy[s.Compiler]
	if !ok {
		return Result{Advisory: fmt.Sprintf(
			"compiler %q is unknown, assuming it supports C++%s", s.Compiler, orDefault(requiredStd, "the required standard"))}, nil
	}
	if !version.AtLeast(s.CompilerVersion, minimum) {
		return Result{}, unsupported(minimum,
			fmt.Sprintf("%s %s or newer is required", s.Compiler, minimum))
	}
	return Result{}, nil
}

// stdYear maps a standard level such as "17", "gnu14" or "98" to a
// comparable year.
func stdYear(std string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(std, "gnu"))
	if err != nil || n < 0 || n > 99 {
		return 0, fmt.Errorf("invalid C++ standard %q", std)
	}
	if n >= 98 {
		return 1900 + n, nil
	}
	return 2000 + n, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
