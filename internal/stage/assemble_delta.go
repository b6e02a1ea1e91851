package stage

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/flarebyte/deltapack/internal/delta"
	"github.com/flarebyte/deltapack/internal/pkgmeta"
)

// AssembleDelta concatenates the payloads into the delta file, records their
// offsets and builds the metadata document.
func AssembleDelta(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in, AssembleDeltaStage)
	if err != nil {
		return Envelope{}, err
	}
	if in.Output == nil || in.Output.Delta == nil {
		return Envelope{}, newError(KindIO, AssembleDeltaStage, errors.New("delta file is not open"))
	}
	start := time.Now()
	w := bufio.NewWriterSize(in.Output.Delta, delta.ChunkSize)
	total, err := delta.Assemble(w, in.Tasks)
	if err != nil {
		return Envelope{}, newError(KindIO, AssembleDeltaStage, err)
	}
	if err := w.Flush(); err != nil {
		return Envelope{}, newError(KindIO, AssembleDeltaStage, err)
	}
	if err := in.Output.closeDelta(); err != nil {
		return Envelope{}, newError(KindIO, AssembleDeltaStage, err)
	}
	pkg := pkgmeta.Package{To: s.NewRevision, From: s.OldRevision, Size: total}
	deps.logger().Info("delta assembled", "package", pkg.ID(), "size", total, "elapsed", time.Since(start))

	out := in
	out.Meta.Stage = AssembleDeltaStage
	out.Package = pkg
	out.Metadata = pkgmeta.New(pkg, delta.Operations(in.Tasks))
	return out, nil
}

func init() { Register(AssembleDeltaStage, AssembleDelta) }
