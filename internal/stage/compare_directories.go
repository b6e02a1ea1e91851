package stage

import (
	"context"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/flarebyte/deltapack/internal/tree"
)

// CompareDirectories lists both trees and records the resulting tasks in
// discovery order.
func CompareDirectories(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in, CompareDirectoriesStage)
	if err != nil {
		return Envelope{}, err
	}
	start := time.Now()
	exclude := tree.ParseExcludes(s.Exclude)
	d := &tree.Differ{
		New:    tree.NewLister(osfs.New(s.NewDirectory), exclude, s.Filter),
		Logger: deps.logger(),
	}
	if s.OldDirectory != "" {
		d.Old = tree.NewLister(osfs.New(s.OldDirectory), exclude, s.Filter)
	}
	tasks, err := d.Run()
	if err != nil {
		return Envelope{}, newError(KindIO, CompareDirectoriesStage, err)
	}
	deps.logger().Info("directory comparison done", "tasks", len(tasks), "elapsed", time.Since(start))
	out := in
	out.Meta.Stage = CompareDirectoriesStage
	out.Tasks = tasks
	return out, nil
}

func settingsOf(in Envelope, stage string) (*Settings, error) {
	if in.Meta == nil || in.Meta.Settings == nil {
		return nil, configErrorf(stage, "missing run settings")
	}
	return in.Meta.Settings, nil
}

func init() { Register(CompareDirectoriesStage, CompareDirectories) }
