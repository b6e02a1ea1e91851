package stage

import (
	"context"
	"time"
)

// RunPipeline executes the packaging stages in order. When a stage fails, the
// outputs claimed so far are deleted and the workspace is removed.
func RunPipeline(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	return runStages(ctx, in, Pipeline, deps)
}

func runStages(ctx context.Context, in Envelope, stages []string, deps Deps) (Envelope, error) {
	log := deps.logger()
	out := in
	for _, name := range stages {
		start := time.Now()
		next, err := Run(ctx, name, out, deps)
		if err != nil {
			log.Debug("stage failed", "stage", name, "elapsed", time.Since(start))
			abort(out)
			return Envelope{}, err
		}
		log.Debug("stage done", "stage", name, "elapsed", time.Since(start))
		out = next
	}
	return out, nil
}

func abort(env Envelope) {
	env.Output.Abort()
	if env.Meta != nil {
		env.Meta.Settings.closeFilter()
	}
}
