package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openforge/openforge/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		workers     int
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "validate [root]",
		Short: "Validate description files and enforce policies",
		Long: `Validate the description files under a source tree without writing
any output.

This command checks:
  - Description syntax (CUE, Starlark, toolchain YAML)
  - Label well-formedness and duplicate declarations
  - Graph completeness (no undeclared dependencies, no cycles)
  - Policy compliance (OPA/rego)`,
		Example: `  # Validate the current directory
  forge validate

  # Validate a specific tree
  forge validate ./src

  # Validate with custom policies
  forge validate ./src --policy ./policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			log.Info().Str("root", root).Msg("Validating description files")

			res, err := resolveRoot(cmd.Context(), root, workers)
			if err != nil {
				return err
			}

			polRes, err := evaluatePolicies(cmd.Context(), res, policyPaths)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(polRes)
			}

			reportViolations(polRes.Violations)
			for _, warn := range polRes.Warnings {
				log.Warn().Msg(warn)
			}
			if !polRes.Allowed {
				return fmt.Errorf("validation failed: %d violation(s)", len(polRes.Violations))
			}

			fmt.Printf("OK: %d targets, %d policies evaluated\n",
				len(res.Result.Modules), len(polRes.EvaluatedPolicies))
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "description workers (default: number of CPUs)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")

	return cmd
}

// reportViolations logs each violation at a level matching its severity.
func reportViolations(violations []policy.Violation) {
	for _, v := range violations {
		ev := log.Error()
		switch v.Severity {
		case policy.SeverityInfo:
			ev = log.Info()
		case policy.SeverityWarning:
			ev = log.Warn()
		}
		ev.
			Str("policy", v.Policy).
			Str("target", v.Target).
			Msg(v.Message)
	}
}
