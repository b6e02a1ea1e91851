package version

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/flarebyte/deltapack/internal/buildinfo"
)

// NewCmd returns the `deltapack version` command.
func NewCmd() *cobra.Command {
	var flagShort, flagJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), flagShort, flagJSON)
		},
	}
	cmd.Flags().BoolVar(&flagShort, "short", false, "Print only the version string")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Print detailed JSON version info")
	return cmd
}

func run(stdout, stderr io.Writer, short, asJSON bool) error {
	if short || !asJSON {
		// Exactly one line.
		_, err := fmt.Fprintf(stdout, "deltapack %s\n", buildinfo.Summary())
		return err
	}

	// Diagnostic object on stdout, human friendly line on stderr.
	_, _ = fmt.Fprintf(stderr, "deltapack version: %s\n", buildinfo.Summary())
	out := struct {
		buildinfo.Info
		Timestamp string `json:"timestamp"`
	}{
		Info:      buildinfo.Details(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
