// Command wcctl is a small cobra front end exercising the working
// copy engine end to end: init, info, status, diff, and commit
// subcommands operating on a working copy rooted at a directory
// argument.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wcengine/internal/wclog"
)

var rootCmd = &cobra.Command{
	Use:   "wcctl",
	Short: "wcctl drives the working-copy metadata engine",
	Long: `wcctl is a thin command-line front end over wcengine's working
copy node model: it initializes working copies, reports their status,
diffs local files against their pristine text, and commits local
changes into BASE.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(commitCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	wclog.Init(wclog.Config{
		Level:      wclog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
