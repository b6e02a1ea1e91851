package stage

import (
	"bufio"
	"context"
	"errors"

	"github.com/flarebyte/deltapack/internal/pkgmeta"
)

// WriteMetadata writes the metadata document next to the delta and completes
// the run.
func WriteMetadata(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	if in.Metadata == nil {
		return Envelope{}, newError(KindIO, WriteMetadataStage, errors.New("no metadata to write"))
	}
	if in.Output == nil || in.Output.Metadata == nil {
		return Envelope{}, newError(KindIO, WriteMetadataStage, errors.New("metadata file is not open"))
	}
	if err := writeMetadata(in.Output, in.Metadata); err != nil {
		return Envelope{}, newError(KindIO, WriteMetadataStage, err)
	}
	deps.logger().Info("metadata written", "path", in.Output.MetadataPath, "operations", len(in.Metadata.Operations))
	out := in
	if out.Meta != nil {
		out.Meta.Settings.closeFilter()
		out.Meta.Stage = WriteMetadataStage
	}
	return out, nil
}

func writeMetadata(o *Output, m *pkgmeta.Metadata) error {
	w := bufio.NewWriter(o.Metadata)
	if err := m.Encode(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return o.closeMetadata()
}

func init() { Register(WriteMetadataStage, WriteMetadata) }
