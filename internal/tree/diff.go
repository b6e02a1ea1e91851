package tree

import (
	"log/slog"
	"strings"

	"github.com/flarebyte/deltapack/internal/task"
)

// Differ compares an old and a new tree and emits the work items turning one
// into the other. Old may be nil for a complete package.
type Differ struct {
	Old    *Lister
	New    *Lister
	Logger *slog.Logger

	tasks []task.Task
}

// Run lists both roots and merges them. The returned order is deterministic:
// lexicographic per directory, depth first, with removed directories emitted
// after their contents.
func (d *Differ) Run() ([]task.Task, error) {
	d.tasks = nil
	newEntries, err := d.New.List("")
	if err != nil {
		return nil, err
	}
	var oldEntries []Entry
	if d.Old != nil {
		if oldEntries, err = d.Old.List(""); err != nil {
			return nil, err
		}
	}
	if err := d.compare("", newEntries, oldEntries); err != nil {
		return nil, err
	}
	return d.tasks, nil
}

func (d *Differ) compare(prefix string, newEntries, oldEntries []Entry) error {
	if d.Logger != nil {
		d.Logger.Debug("compare directory", "path", prefix, "new", len(newEntries), "old", len(oldEntries))
	}
	n, o := 0, 0
	for n < len(newEntries) || o < len(oldEntries) {
		var cmp int
		switch {
		case n < len(newEntries) && o < len(oldEntries):
			cmp = strings.Compare(newEntries[n].Name, oldEntries[o].Name)
		case n < len(newEntries):
			cmp = -1
		default:
			cmp = 1
		}

		switch {
		case cmp < 0:
			if err := d.addNew(newEntries[n]); err != nil {
				return err
			}
			n++
		case cmp > 0:
			if err := d.removeOld(oldEntries[o]); err != nil {
				return err
			}
			o++
		default:
			ne, oe := newEntries[n], oldEntries[o]
			switch {
			case !ne.IsDir && !oe.IsDir:
				d.emit(task.Task{Kind: task.Patch, Path: ne.Path, OldPath: oe.Path, NewPath: ne.Path})
			case ne.IsDir && oe.IsDir:
				if err := d.recurse(ne.Path, oe.Path); err != nil {
					return err
				}
			default:
				if err := d.removeOld(oe); err != nil {
					return err
				}
				if err := d.addNew(ne); err != nil {
					return err
				}
			}
			n++
			o++
		}
	}
	return nil
}

// addNew emits an Add for a file or every file below a directory.
func (d *Differ) addNew(e Entry) error {
	if !e.IsDir {
		d.emit(task.Task{Kind: task.Add, Path: e.Path, NewPath: e.Path})
		return nil
	}
	children, err := d.New.List(e.Path)
	if err != nil {
		return err
	}
	return d.compare(e.Path+"/", children, nil)
}

// removeOld emits a RemoveFile, or the post-order removal of a directory.
func (d *Differ) removeOld(e Entry) error {
	if !e.IsDir {
		d.emit(task.Task{Kind: task.RemoveFile, Path: e.Path, OldPath: e.Path})
		return nil
	}
	children, err := d.Old.List(e.Path)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := d.removeOld(c); err != nil {
			return err
		}
	}
	d.emit(task.Task{Kind: task.RemoveDir, Path: e.Path, OldPath: e.Path})
	return nil
}

func (d *Differ) recurse(newDir, oldDir string) error {
	newChildren, err := d.New.List(newDir)
	if err != nil {
		return err
	}
	oldChildren, err := d.Old.List(oldDir)
	if err != nil {
		return err
	}
	return d.compare(newDir+"/", newChildren, oldChildren)
}

func (d *Differ) emit(t task.Task) {
	d.tasks = append(d.tasks, t)
}
