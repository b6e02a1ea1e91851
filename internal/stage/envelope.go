package stage

import (
	"github.com/flarebyte/deltapack/internal/config"
	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/pkgmeta"
	"github.com/flarebyte/deltapack/internal/task"
	"github.com/flarebyte/deltapack/internal/tree"
)

// Settings are the validated, defaulted run parameters derived from the
// config by validate-config.
type Settings struct {
	OldDirectory string
	NewDirectory string
	OldRevision  string
	NewRevision  string
	DeltaFile    string
	MetadataFile string
	TmpDirectory string
	Workers      int
	Compression  operation.Compression
	Exclude      []string
	Filter       *tree.LuaFilter
}

// Meta holds the configuration flowing through the pipeline.
type Meta struct {
	Stage    string
	Config   *config.Config
	Settings *Settings
}

// Envelope is the state handed from stage to stage. Every stage returns a new
// envelope built from its input; Tasks is owned by whichever stage runs.
type Envelope struct {
	Meta     *Meta
	Tasks    []task.Task
	Output   *Output
	Package  pkgmeta.Package
	Metadata *pkgmeta.Metadata
	Stats    task.Stats
}

// PackageID returns the canonical identifier of the package being built.
func (e Envelope) PackageID() string {
	if e.Meta == nil || e.Meta.Settings == nil {
		return ""
	}
	s := e.Meta.Settings
	return pkgmeta.Package{To: s.NewRevision, From: s.OldRevision}.ID()
}
