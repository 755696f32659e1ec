package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cheshbon/cheshbon"
	cliconfig "github.com/cheshbon/cheshbon/internal/cliutil/config"
	"github.com/cheshbon/cheshbon/internal/kernel/bindingengine"
	"github.com/cheshbon/cheshbon/internal/kernel/canonicaljson"
	"github.com/cheshbon/cheshbon/internal/kernel/reportverify"
)

func newVerifyCommand(cfg *cliconfig.CLIConfig, logger **slog.Logger, exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-derive and check digests of a report, spec, registry, or binding resolution",
	}

	cmd.AddCommand(
		newVerifyReportCommand(exitCode),
		newVerifySpecCommand(exitCode),
		newVerifyRegistryCommand(exitCode),
		newVerifyBindingsCommand(exitCode),
	)

	return cmd
}

func newVerifyReportCommand(exitCode *int) *cobra.Command {
	var registryV1Path, registryV2Path, bindingsPath string

	cmd := &cobra.Command{
		Use:   "report <report.json> <spec-v1.json> <spec-v2.json>",
		Short: "Check that a report's digests and witnesses match a fresh recomputation from its inputs",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := readFile(args[0])
			if err != nil {
				*exitCode = exitUsageError
				return fmt.Errorf("read report %s: %w", args[0], err)
			}
			var rep cheshbon.Report
			if err := json.Unmarshal(b, &rep); err != nil {
				*exitCode = exitUsageError
				return fmt.Errorf("parse report %s: %w", args[0], err)
			}

			v1, err := loadSpec(args[1])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			v2, err := loadSpec(args[2])
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

			result := cheshbon.VerifyReport(&rep, v1, v2, reg1, reg2, bindings)
			if err := writeJSON("-", result); err != nil {
				*exitCode = exitUsageError
				return err
			}
			if result.Outcome == reportverify.OK {
				*exitCode = exitOK
			} else {
				*exitCode = exitFindings
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&registryV1Path, "registry-v1", "", "path to the transform registry for v1")
	cmd.Flags().StringVar(&registryV2Path, "registry-v2", "", "path to the transform registry for v2")
	cmd.Flags().StringVar(&bindingsPath, "bindings", "", "path to the bindings file used to build the report")
	return cmd
}

func newVerifySpecCommand(exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "spec <spec.json> <expected-digest>",
		Short: "Check that a spec's canonical digest matches an expected value",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			spec, err := loadSpec(args[0])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			got, err := spec.Digest()
			if err != nil {
				*exitCode = exitUsageError
				return fmt.Errorf("digest spec: %w", err)
			}
			if got != args[1] {
				fmt.Printf("MISMATCH: got %s, want %s\n", got, args[1])
				*exitCode = exitFindings
				return nil
			}
			fmt.Println("OK")
			*exitCode = exitOK
			return nil
		},
	}
}

func newVerifyRegistryCommand(exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "registry <registry.json> <expected-digest>",
		Short: "Check that a transform registry's canonical digest matches an expected value",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			reg, err := loadRegistry(args[0])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			b, err := json.Marshal(reg)
			if err != nil {
				*exitCode = exitUsageError
				return fmt.Errorf("encode registry: %w", err)
			}
			got, err := canonicaljson.MarshalAndDigest(json.RawMessage(b))
			if err != nil {
				*exitCode = exitUsageError
				return fmt.Errorf("digest registry: %w", err)
			}
			if got != args[1] {
				fmt.Printf("MISMATCH: got %s, want %s\n", got, args[1])
				*exitCode = exitFindings
				return nil
			}
			fmt.Println("OK")
			*exitCode = exitOK
			return nil
		},
	}
}

func newVerifyBindingsCommand(exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "bindings <bindings.json> <spec.json>",
		Short: "Resolve a spec's sources against a raw schema and report any unresolved bindings",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			bindings, err := loadBindings(args[0])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}
			spec, err := loadSpec(args[1])
			if err != nil {
				*exitCode = exitUsageError
				return err
			}

			resolutions, _ := bindings.Resolve()
			byID := map[string]bindingengine.Resolution{}
			for _, r := range resolutions {
				byID[r.SourceID] = r
			}
			specResolutions := make([]bindingengine.Resolution, 0, len(spec.Sources))
			failed := false
			for _, s := range spec.Sources {
				if r, ok := byID[s.ID]; ok {
					specResolutions = append(specResolutions, r)
					if r.Status == bindingengine.AmbiguousBinding || r.Status == bindingengine.BindingInvalid {
						failed = true
					}
				}
			}

			if err := writeJSON("-", specResolutions); err != nil {
				*exitCode = exitUsageError
				return err
			}
			if failed {
				*exitCode = exitValidationFailed
				return nil
			}
			*exitCode = exitOK
			return nil
		},
	}
}
