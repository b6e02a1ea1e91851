package root

import (
	"github.com/spf13/cobra"

	"github.com/flarebyte/deltapack/cmd/deltapack/build"
	"github.com/flarebyte/deltapack/cmd/deltapack/inspect"
	"github.com/flarebyte/deltapack/cmd/deltapack/version"
)

// NewRootCmd creates the root command for deltapack.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deltapack",
		Short: "Build incremental update packages between two directory trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(version.NewCmd())
	cmd.AddCommand(build.NewCmd())
	cmd.AddCommand(inspect.NewCmd())

	return cmd
}

// Execute runs the root command with provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}
