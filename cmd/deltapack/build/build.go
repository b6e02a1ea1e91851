package build

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/flarebyte/deltapack/internal/config"
	"github.com/flarebyte/deltapack/internal/stage"
)

const loadConfigStep = "load-config"

type options struct {
	configPath      string
	oldDir          string
	newDir          string
	oldRev          string
	newRev          string
	deltaFile       string
	metadataFile    string
	tmpDir          string
	workers         int
	compression     string
	exclude         []string
	revisionFromGit bool
	verbose         bool
}

// NewCmd returns the `deltapack build` command.
func NewCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "build",
		Short:         "Build a delta package from an old and a new directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, o.verbose)
			out, err := executePipeline(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			// Success output must be a single JSON line.
			return writeSummary(cmd.OutOrStdout(), out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Path to config file (.cue)")
	f.StringVar(&o.oldDir, "old", "", "Old directory; omit for a complete package")
	f.StringVar(&o.newDir, "new", "", "New directory")
	f.StringVar(&o.oldRev, "old-rev", "", "Old revision name")
	f.StringVar(&o.newRev, "new-rev", "", "New revision name")
	f.StringVar(&o.deltaFile, "delta", "", "Delta file to create (default: package id)")
	f.StringVar(&o.metadataFile, "metadata", "", "Metadata file to create (default: <delta>.json)")
	f.StringVar(&o.tmpDir, "tmp", "", "Directory receiving the run workspace")
	f.IntVar(&o.workers, "workers", 0, "Worker pool size for adds and patches (0: number of CPUs)")
	f.StringVar(&o.compression, "compression", "", "Payload compression: zstd, lz4 or none")
	f.StringArrayVar(&o.exclude, "exclude", nil, "Gitignore pattern excluded from both trees (repeatable; replaces the config list)")
	f.BoolVar(&o.revisionFromGit, "revision-from-git", false, "Name empty revisions after the HEAD commit of each tree")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log debug details to stderr")
	return cmd
}

// config loads the config file when given, then applies the flags that were
// set explicitly on the command line.
func (o *options) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, stage.NewError(stage.KindConfig, loadConfigStep, err)
		}
		cfg = loaded
	}
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("old", func() { cfg.OldDirectory = o.oldDir })
	set("new", func() { cfg.NewDirectory = o.newDir })
	set("old-rev", func() { cfg.OldRevision = o.oldRev })
	set("new-rev", func() { cfg.NewRevision = o.newRev })
	set("delta", func() { cfg.DeltaFile = o.deltaFile })
	set("metadata", func() { cfg.MetadataFile = o.metadataFile })
	set("tmp", func() { cfg.TmpDirectory = o.tmpDir })
	set("workers", func() { cfg.Workers = o.workers })
	set("compression", func() { cfg.Compression = o.compression })
	set("exclude", func() { cfg.Exclude = o.exclude })
	set("revision-from-git", func() { cfg.RevisionFromGit = o.revisionFromGit })
	if cfg.NewDirectory == "" {
		return config.Config{}, stage.NewError(stage.KindConfig, loadConfigStep, fmt.Errorf("missing new directory: set --new or newDirectory"))
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
