// Command cheshbon computes and verifies the impact of a change between
// two versions of a mapping specification.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cliconfig "github.com/cheshbon/cheshbon/internal/cliutil/config"
	clilog "github.com/cheshbon/cheshbon/internal/cliutil/log"
)

// Exit codes, per spec.md §6: 0 = no impact found (diff) or a valid/
// verified document (validate, verify); 1 = impact found, or an invalid/
// mismatched document; 2 = validation_failed (a cycle, an ambiguous
// binding, or a missing transform reference was detected downstream of
// the change) or the operation itself could not run (bad flags,
// unreadable files, malformed JSON).
const (
	exitOK               = 0
	exitFindings         = 1
	exitValidationFailed = 2
	exitUsageError       = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := cliconfig.Default()
	logCfg := clilog.NewConfig()
	runID := uuid.NewString()

	rootCmd := &cobra.Command{
		Use:           "cheshbon",
		Short:         "Deterministic impact analysis for mapping specifications",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetArgs(args)

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a .cheshbon.yaml config file")
	logCfg.RegisterFlags(rootCmd.PersistentFlags())

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	var logger *slog.Logger
	rootCmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if configPath != "" {
			loaded, err := cliconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		handler, err := logCfg.NewHandler(os.Stderr)
		if err != nil {
			return err
		}
		logger = slog.New(handler).With("run_id", runID)
		return nil
	}

	exitCode := exitOK
	rootCmd.AddCommand(
		newDiffCommand(&cfg, &logger, &exitCode),
		newValidateCommand(&cfg, &logger, &exitCode),
		newVerifyCommand(&cfg, &logger, &exitCode),
		newSchemaCommand(&exitCode),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitUsageError
	}

	return exitCode
}
