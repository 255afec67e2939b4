package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/omni/internal/forge"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [key=value...]",
		Short: "Validate a manifest without writing artifacts",
		Long: `Run every forge phase without writing ResolvedManifest.json or
ForgeReport.md, and print the issues. Takes the same key=value arguments
as forge.

Exit codes:
  0 - Manifest is valid
  1 - Manifest has errors
  2 - Command error`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	addContentFlags(cmd, opts)

	return cmd
}

func runValidate(opts *ForgeOptions, args []string, cmd *cobra.Command) error {
	in, err := forge.ParseArgs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid forge arguments", err)
	}

	runner, closeStore, err := newRunner(opts)
	if err != nil {
		return err
	}
	defer closeStore()
	runner.SkipArtifacts = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return forgeOnce(ctx, runner, in, newFormatter(opts.RootOptions, cmd))
}
