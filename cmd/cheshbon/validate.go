package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cheshbon/cheshbon"
	cliconfig "github.com/cheshbon/cheshbon/internal/cliutil/config"
	"github.com/cheshbon/cheshbon/internal/kernel/specmodel"
)

func newValidateCommand(cfg *cliconfig.CLIConfig, logger **slog.Logger, exitCode *int) *cobra.Command {
	var registryPath string

	cmd := &cobra.Command{
		Use:   "validate <spec.json>",
		Short: "Validate a mapping specification (and optional transform registry)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			spec, err := loadSpec(args[0])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			reg, err := loadRegistry(registryPath)
			if err != nil {
				*exitCode = exitUsageError
				return err
			}

			var opts []specmodel.ValidateOption
			if cfg.RejectUnknownFields {
				opts = append(opts, specmodel.WithRejectUnknownFields())
			}
			if cfg.RequireSupportedVersion {
				opts = append(opts, specmodel.WithRequireSupportedSchemaVersion())
			}

			warnings, err := cheshbon.Validate(spec, reg, opts...)
			if err != nil {
				fmt.Println(err)
				*exitCode = exitFindings
				return nil
			}

			for _, w := range warnings {
				(*logger).Warn(w)
			}
			fmt.Println("OK")
			*exitCode = exitOK
			return nil
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "", "path to a transform registry to validate against the spec's transform_ref fields")

	return cmd
}
