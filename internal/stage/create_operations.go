package stage

import (
	"context"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/task"
)

// payloadDir is the workspace subdirectory receiving payload files.
const payloadDir = "payloads"

// CreateOperations runs every task once: removals inline, adds and patches
// on a pool bounded by the configured worker count. The first failure in
// discovery order fails the stage.
func CreateOperations(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in, CreateOperationsStage)
	if err != nil {
		return Envelope{}, err
	}
	if in.Output == nil || in.Output.Workspace == "" {
		return Envelope{}, configErrorf(CreateOperationsStage, "missing workspace")
	}
	b := &operation.Builder{
		New:         osfs.New(s.NewDirectory),
		Workspace:   osfs.New(in.Output.Workspace),
		Compression: s.Compression,
	}
	if s.OldDirectory != "" {
		b.Old = osfs.New(s.OldDirectory)
	}

	start := time.Now()
	stats := task.Execute(in.Tasks, task.ExecOptions{Workers: s.Workers, Workspace: payloadDir, Builder: b})
	log := deps.logger()
	if err := task.FirstError(in.Tasks); err != nil {
		log.Debug("operations failed", "failed", stats.Failed, "elapsed", time.Since(start))
		return Envelope{}, newError(KindTask, CreateOperationsStage, err)
	}
	log.Info("operations created",
		"total", stats.Total,
		"slow", stats.Slow,
		"workers", stats.Workers,
		"elapsed", time.Since(start),
	)
	out := in
	out.Meta.Stage = CreateOperationsStage
	out.Stats = stats
	return out, nil
}

func init() { Register(CreateOperationsStage, CreateOperations) }
