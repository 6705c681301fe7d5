// Package main implements the movepvm CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"movepvm/internal/logging"
	"movepvm/internal/prof"
	"movepvm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "movepvm",
	Short: "Move bytecode to PolkaVM compiler",
	Long:  `movepvm compiles Move stackless bytecode units into PolkaVM contract blobs`,

	SilenceUsage:      true,
	PersistentPreRunE: setupGlobals,
}

var profiling *prof.Session

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(selectorsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging to stderr")
	rootCmd.PersistentFlags().Bool("log-json", false, "structured JSON logging to stderr")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of validation diagnostics to report")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to file")

	err := rootCmd.Execute()
	if stopErr := profiling.Stop(); stopErr != nil {
		fmt.Fprintf(os.Stderr, "profiling: %v\n", stopErr)
	}
	_ = logging.Logger().Sync()
	if err != nil {
		os.Exit(1)
	}
}

func setupGlobals(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return err
	}
	asJSON, err := flags.GetBool("log-json")
	if err != nil {
		return err
	}
	colorValue, err := flags.GetString("color")
	if err != nil {
		return err
	}
	switch colorValue {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorValue)
	}

	log, err := logging.New(verbose, asJSON)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logging.SetLogger(log)

	var opts prof.Options
	for name, dst := range map[string]*string{"cpu-profile": &opts.CPU, "mem-profile": &opts.Mem, "runtime-trace": &opts.Trace} {
		if *dst, err = flags.GetString(name); err != nil {
			return err
		}
	}
	if opts.Enabled() {
		if profiling, err = prof.Start(opts); err != nil {
			return err
		}
	}
	return nil
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
