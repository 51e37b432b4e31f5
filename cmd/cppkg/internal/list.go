package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/cppkg/internal/recipes"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available recipes and their versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list(cmd.OutOrStdout(), recipes.Default())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func list(out io.Writer, reg *recipes.Registry) {
	for _, name := range reg.Names() {
		okColor.Fprint(out, name)
		fmt.Fprintf(out, " %s\n", strings.Join(reg.Versions(name), " "))
	}
}
