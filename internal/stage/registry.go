package stage

import (
	"context"
	"log/slog"
)

// Deps carries what stages need besides the envelope.
type Deps struct {
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Runner executes a stage.
type Runner func(ctx context.Context, in Envelope, deps Deps) (Envelope, error)

var registry = map[string]Runner{}

// Register adds a stage runner.
func Register(name string, r Runner) {
	registry[name] = r
}

// Run executes a registered stage by name.
func Run(ctx context.Context, name string, in Envelope, deps Deps) (Envelope, error) {
	r, ok := registry[name]
	if !ok {
		return Envelope{}, ErrUnknown{name: name}
	}
	return r(ctx, in, deps)
}

// ErrUnknown is returned when a stage is not found.
type ErrUnknown struct{ name string }

func (e ErrUnknown) Error() string { return "unknown stage: " + e.name }

// Pipeline lists the stages of a packaging run in order.
var Pipeline = []string{
	ValidateConfigStage,
	CompareDirectoriesStage,
	CreateOperationsStage,
	AssembleDeltaStage,
	WriteMetadataStage,
}
