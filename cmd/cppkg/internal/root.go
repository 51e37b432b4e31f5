package internal

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "cppkg",
	Short: "cppkg builds and packages C++ libraries from recipes",
	Long: `cppkg drives recipe builds of native C++ libraries: it resolves options,
checks the compiler, stages and patches the sources, runs CMake and packages
the results.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); defaults to $CPPKG_LOG_LEVEL")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		log.Fatal(err)
	}
}
