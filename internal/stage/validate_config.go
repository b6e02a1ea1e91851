package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/flarebyte/deltapack/internal/config"
	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/pkgmeta"
	"github.com/flarebyte/deltapack/internal/tree"
)

// ValidateConfig turns meta.config into run settings, then claims the output
// files and creates the run workspace.
func ValidateConfig(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	if in.Meta == nil || in.Meta.Config == nil {
		return Envelope{}, configErrorf(ValidateConfigStage, "missing configuration")
	}
	s, err := settingsFrom(*in.Meta.Config)
	if err != nil {
		return Envelope{}, err
	}
	out, err := claimOutputs(s.DeltaFile, s.MetadataFile)
	if err != nil {
		s.closeFilter()
		return Envelope{}, newError(KindConfig, ValidateConfigStage, err)
	}
	ws, err := os.MkdirTemp(s.TmpDirectory, "deltapack-")
	if err != nil {
		out.Abort()
		s.closeFilter()
		return Envelope{}, newError(KindConfig, ValidateConfigStage, fmt.Errorf("unable to create workspace: %w", err))
	}
	out.Workspace = ws

	deps.logger().Debug("configuration validated",
		"package", pkgmeta.Package{To: s.NewRevision, From: s.OldRevision}.ID(),
		"workers", s.Workers,
		"compression", s.Compression.String(),
		"workspace", ws,
	)
	res := in
	res.Meta = &Meta{Stage: ValidateConfigStage, Config: in.Meta.Config, Settings: s}
	res.Output = out
	return res, nil
}

func settingsFrom(c config.Config) (*Settings, error) {
	if err := config.CheckVersion(c.ConfigVersion); err != nil {
		return nil, newError(KindConfig, ValidateConfigStage, err)
	}
	s := &Settings{
		OldDirectory: c.OldDirectory,
		NewDirectory: c.NewDirectory,
		OldRevision:  c.OldRevision,
		NewRevision:  c.NewRevision,
		DeltaFile:    c.DeltaFile,
		MetadataFile: c.MetadataFile,
		TmpDirectory: c.TmpDirectory,
		Workers:      c.Workers,
		Exclude:      c.Exclude,
	}
	if s.NewDirectory == "" {
		return nil, configErrorf(ValidateConfigStage, "missing new directory")
	}
	if err := requireDirectory("new", s.NewDirectory); err != nil {
		return nil, err
	}
	if s.OldDirectory != "" {
		if err := requireDirectory("old", s.OldDirectory); err != nil {
			return nil, err
		}
	}
	if c.RevisionFromGit {
		if err := resolveRevisions(s); err != nil {
			return nil, err
		}
	}
	if s.NewRevision == "" {
		return nil, configErrorf(ValidateConfigStage, "missing new revision")
	}
	if s.OldDirectory == "" {
		// a complete package never names a source revision
		s.OldRevision = ""
	} else if s.OldRevision == "" {
		return nil, configErrorf(ValidateConfigStage, "missing old revision for old directory %s", s.OldDirectory)
	}
	if s.Workers < 0 {
		return nil, configErrorf(ValidateConfigStage, "workers must be >= 0, got %d", s.Workers)
	}
	if s.Workers == 0 {
		s.Workers = runtime.NumCPU()
	}
	comp := c.Compression
	if comp == "" {
		comp = operation.CompressionZstd.String()
	}
	var err error
	if s.Compression, err = operation.ParseCompression(comp); err != nil {
		return nil, newError(KindConfig, ValidateConfigStage, err)
	}
	if s.DeltaFile == "" {
		s.DeltaFile = pkgmeta.Package{To: s.NewRevision, From: s.OldRevision}.ID()
	}
	if s.MetadataFile == "" {
		s.MetadataFile = s.DeltaFile + ".json"
	}
	if filepath.Clean(s.DeltaFile) == filepath.Clean(s.MetadataFile) {
		return nil, configErrorf(ValidateConfigStage, "delta and metadata files must differ: %s", s.DeltaFile)
	}
	if s.TmpDirectory == "" {
		s.TmpDirectory = os.TempDir()
	}
	if c.Filter.Inline != "" {
		f, err := tree.NewLuaFilter(c.Filter.Inline)
		if err != nil {
			return nil, newError(KindConfig, ValidateConfigStage, err)
		}
		s.Filter = f
	}
	return s, nil
}

func requireDirectory(which, dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return configErrorf(ValidateConfigStage, "%s directory: %w", which, err)
	}
	if !fi.IsDir() {
		return configErrorf(ValidateConfigStage, "%s directory is not a directory: %s", which, dir)
	}
	return nil
}

func (s *Settings) closeFilter() {
	if s != nil && s.Filter != nil {
		s.Filter.Close()
		s.Filter = nil
	}
}

func init() { Register(ValidateConfigStage, ValidateConfig) }
