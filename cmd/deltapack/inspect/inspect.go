package inspect

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flarebyte/deltapack/internal/delta"
	"github.com/flarebyte/deltapack/internal/metafile"
	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/pkgmeta"
	"github.com/flarebyte/deltapack/internal/stage"
)

const inspectStep = "inspect"

type options struct {
	metadataPath string
	deltaPath    string
	verify       bool
	yaml         bool
}

// NewCmd returns the `deltapack inspect` command.
func NewCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Decode a package metadata file, optionally verifying its delta",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.metadataPath, "metadata", "m", "", "Metadata file to decode")
	f.StringVarP(&o.deltaPath, "delta", "d", "", "Delta file the metadata describes")
	f.BoolVar(&o.verify, "verify", false, "Check every payload in the delta against the metadata")
	f.BoolVar(&o.yaml, "yaml", false, "Render the metadata as canonical YAML instead of JSON")
	return cmd
}

func (o *options) run(stdout, stderr io.Writer) error {
	if o.metadataPath == "" {
		return stage.NewError(stage.KindConfig, inspectStep, errors.New("missing required flag: --metadata"))
	}
	if o.verify && o.deltaPath == "" {
		return stage.NewError(stage.KindConfig, inspectStep, errors.New("--verify requires --delta"))
	}
	m, err := readMetadata(o.metadataPath)
	if err != nil {
		return err
	}
	if o.verify {
		n, err := verifyDelta(o.deltaPath, m)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stderr, "verified %d payloads of %s\n", n, m.Package.ID())
	}
	if o.yaml {
		return metafile.Write(stdout, m)
	}
	return m.Encode(stdout)
}

func readMetadata(path string) (*pkgmeta.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stage.NewError(stage.KindIO, inspectStep, err)
	}
	defer f.Close()
	m, err := pkgmeta.Decode(f)
	if err != nil {
		kind := stage.KindIO
		if errors.Is(err, operation.ErrFormat) {
			kind = stage.KindFormat
		}
		return nil, stage.NewError(kind, inspectStep, fmt.Errorf("%s: %w", path, err))
	}
	return m, nil
}

func verifyDelta(path string, m *pkgmeta.Metadata) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, stage.NewError(stage.KindIO, inspectStep, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, stage.NewError(stage.KindIO, inspectStep, err)
	}
	n, err := delta.Verify(f, fi.Size(), m)
	if err != nil {
		kind := stage.KindIO
		if errors.Is(err, delta.ErrCorrupt) {
			kind = stage.KindFormat
		}
		return n, stage.NewError(kind, inspectStep, fmt.Errorf("%s: %w", path, err))
	}
	return n, nil
}
