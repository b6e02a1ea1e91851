package build

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/flarebyte/deltapack/internal/config"
	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/stage"
)

// executePipeline runs the packaging stages for `deltapack build`.
func executePipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (stage.Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	in := stage.Envelope{Meta: &stage.Meta{Config: &cfg}}
	return stage.RunPipeline(ctx, in, stage.Deps{Logger: logger})
}

type summary struct {
	OK         bool   `json:"ok"`
	Package    string `json:"package"`
	Size       string `json:"size"`
	Operations int    `json:"operations"`
}

// writeSummary prints the one-line result of a successful run.
func writeSummary(w io.Writer, out stage.Envelope) error {
	n := 0
	if out.Metadata != nil {
		n = len(out.Metadata.Operations)
	}
	s, err := encodeJSON(summary{
		OK:         true,
		Package:    out.Package.ID(),
		Size:       operation.EncodeSize(out.Package.Size),
		Operations: n,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// encodeJSON returns the JSON encoding string with HTML escaping disabled.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
