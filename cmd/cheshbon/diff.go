package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/cheshbon/cheshbon"
	cliconfig "github.com/cheshbon/cheshbon/internal/cliutil/config"
)

func newDiffCommand(cfg *cliconfig.CLIConfig, logger **slog.Logger, exitCode *int) *cobra.Command {
	var (
		registryV1Path string
		registryV2Path string
		bindingsPath   string
		mode           string
		output         string
		extraArgs      string
	)

	cmd := &cobra.Command{
		Use:   "diff <spec-v1.json> <spec-v2.json>",
		Short: "Compute the impact of a change between two mapping specification versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if extraArgs != "" {
				tokens, err := shlex.Split(extraArgs)
				if err != nil {
					return fmt.Errorf("parse --extra-args: %w", err)
				}
				(*logger).Debug("ignoring unrecognized extra args", "tokens", tokens)
			}

			v1, err := loadSpec(args[0])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			v2, err := loadSpec(args[1])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			reg1, err := loadRegistry(registryV1Path)
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			reg2, err := loadRegistry(registryV2Path)
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			bindings, err := loadBindings(bindingsPath)
			if err != nil {
				*exitCode = exitUsageError
				return err
			}

			reportMode := cheshbon.ReportMode(mode)
			if mode == "" {
				reportMode = cheshbon.ReportMode(cfg.DefaultMode)
			}

			rep, err := cheshbon.Diff(v1, v2, reg1, reg2, bindings, reportMode)
			if err != nil {
				*exitCode = exitUsageError
				return err
			}

			if err := writeJSON(output, rep); err != nil {
				*exitCode = exitUsageError
				return err
			}

			switch {
			case rep.ValidationFailed:
				*exitCode = exitValidationFailed
			case len(rep.Impacted) > 0:
				*exitCode = exitFindings
			default:
				*exitCode = exitOK
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&registryV1Path, "registry-v1", "", "path to the transform registry for v1")
	cmd.Flags().StringVar(&registryV2Path, "registry-v2", "", "path to the transform registry for v2")
	cmd.Flags().StringVar(&bindingsPath, "bindings", "", "path to a raw-schema binding rules file")
	cmd.Flags().StringVar(&mode, "mode", "", "report detail level: core, full, or all_details (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "write the report to this path, or - for stdout")
	cmd.Flags().StringVar(&extraArgs, "extra-args", "", "extra diagnostic tokens, shell-quoted, logged but not interpreted")

	return cmd
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	b = append(b, '\n')

	if path == "" || path == "-" {
		_, err := os.Stdout.Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
