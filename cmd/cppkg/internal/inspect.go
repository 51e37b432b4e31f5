package internal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/cppkg/internal/buildcfg"
	"github.com/goplus/cppkg/internal/lifecycle"
	"github.com/goplus/cppkg/internal/logging"
	"github.com/goplus/cppkg/internal/recipes"
	"github.com/goplus/cppkg/recipe"
)

var inspectOpts createFlags

var inspectCmd = &cobra.Command{
	Use:   "inspect <name>[/<version>]",
	Short: "Show a recipe's resolved options, build flags and requirements",
	Long: `Inspect resolves a recipe against the target settings and options and
prints what create would build, without fetching or building anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.Context(), cmd.OutOrStdout(), args[0], inspectOpts)
	},
}

func init() {
	f := inspectCmd.Flags()
	f.BoolVar(&inspectOpts.local, "local", false, "Inspect the local variant")
	f.StringArrayVarP(&inspectOpts.settings, "setting", "s", nil, "Override a setting (key=value)")
	f.StringArrayVarP(&inspectOpts.options, "option", "o", nil, "Override an option ([name:]key=value)")
	f.StringVar(&inspectOpts.profile, "profile", "", "TOML profile `FILE`")
	rootCmd.AddCommand(inspectCmd)
}

func inspect(ctx context.Context, out io.Writer, ref string, opts createFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t, err := loadTarget(opts.profile, opts.settings, opts.options)
	if err != nil {
		return err
	}
	variant := recipe.Upstream
	if opts.local {
		variant = recipe.Local
	}
	rcp, err := recipes.Default().Lookup(ref, variant)
	if err != nil {
		return err
	}

	o := lifecycle.New(lifecycle.Config{
		Recipe:   rcp,
		Settings: t.settings,
		Options:  t.optionsFor(rcp.Name),
		Logger:   logging.NewLogger("cppkg", logLevel, nil),
	})
	if err := o.Configure(ctx); err != nil {
		return err
	}
	reqs, err := o.Requirements()
	if err != nil {
		return err
	}

	okColor.Fprintf(out, "%s (%s)\n", rcp.Ref(), rcp.Variant)
	fmt.Fprintf(out, "  %-12s%s\n", "license", rcp.License)
	fmt.Fprintf(out, "  %-12s%s\n", "homepage", rcp.Homepage)
	fmt.Fprintf(out, "  %-12s%s\n", "settings", t.settings)
	fmt.Fprintf(out, "  %-12s%s\n", "options", o.Options())
	if a := o.Advisory(); a != "" {
		warnColor.Fprintf(out, "  warning: %s\n", a)
	}
	cfg := buildcfg.Derive(o.Options(), rcp.Variant, rcp.Build)
	fmt.Fprintf(out, "  %-12s%s\n", "cmake", cfg)
	field(out, "requires", deps(reqs))
	field(out, "system_libs", rcp.SystemLibs[t.settings.OS])
	field(out, "defines", o.Options().EffectiveDefines(t.settings))
	if len(rcp.Topics) > 0 {
		fmt.Fprintf(out, "  %-12s%s\n", "topics", strings.Join(rcp.Topics, ", "))
	}
	return nil
}
