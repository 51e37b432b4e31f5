package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/goplus/cppkg/recipe"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	labelColor = color.New(color.Faint)
)

func printResult(out io.Writer, j *job) {
	okColor.Fprintf(out, "%s (%s) packaged", j.rcp.Ref(), j.rcp.Variant)
	fmt.Fprintf(out, " in %s\n", j.pkgDir)
	if j.advisory != "" {
		warnColor.Fprintf(out, "  warning: %s\n", j.advisory)
	}
	field(out, "libs", j.info.Libs)
	field(out, "system_libs", j.info.SystemLibs)
	field(out, "defines", j.info.Defines)
	field(out, "requires", deps(j.info.Requires))
}

func field(out io.Writer, label string, values []string) {
	if len(values) == 0 {
		return
	}
	labelColor.Fprintf(out, "  %-12s", label)
	fmt.Fprintln(out, strings.Join(values, " "))
}

func deps(ds []recipe.Dependency) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
