package task

import (
	"errors"
	"fmt"

	"github.com/flarebyte/deltapack/internal/operation"
)

// Kind is the change a work item describes.
type Kind int

const (
	Add Kind = iota
	RemoveFile
	RemoveDir
	Patch
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case RemoveFile:
		return "rm"
	case RemoveDir:
		return "rmdir"
	case Patch:
		return "patch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsSlow reports whether the kind reads file content and belongs on the
// worker pool. Removals only touch metadata and run inline.
func (k Kind) IsSlow() bool {
	return k == Add || k == Patch
}

// Task is one unit of change found by the tree differ. Execution sets
// exactly one of Operation or Err.
type Task struct {
	Kind      Kind
	Path      string
	OldPath   string
	NewPath   string
	Workspace string

	Operation *operation.Operation
	Err       error
}

// String renders the task as "<kind> <path>", the form used in logs and tests.
func (t Task) String() string {
	return t.Kind.String() + " " + t.Path
}

// Done reports whether the task has been executed.
func (t Task) Done() bool {
	return t.Operation != nil || t.Err != nil
}

// ErrBothSet flags a task carrying an operation and an error at once.
var ErrBothSet = errors.New("task has both an operation and an error")

// ErrNotExecuted flags a task that never ran.
var ErrNotExecuted = errors.New("not executed")

// Validate checks the single-outcome invariant of an executed task.
func (t Task) Validate() error {
	if t.Operation != nil && t.Err != nil {
		return ErrBothSet
	}
	if !t.Done() {
		return ErrNotExecuted
	}
	return nil
}

// Builder computes the operations of slow tasks.
type Builder interface {
	Add(req operation.Request) (*operation.Operation, error)
	Patch(req operation.Request) (*operation.Operation, error)
}

// Run executes the task once, storing either its operation or its error.
func (t *Task) Run(b Builder) {
	req := operation.Request{Path: t.Path, OldPath: t.OldPath, NewPath: t.NewPath, Workspace: t.Workspace}
	var (
		op  *operation.Operation
		err error
	)
	switch t.Kind {
	case Add:
		op, err = b.Add(req)
	case Patch:
		op, err = b.Patch(req)
	case RemoveFile:
		op = operation.RemoveFile(t.Path)
	case RemoveDir:
		op = operation.RemoveDir(t.Path)
	default:
		err = fmt.Errorf("unknown task kind %d", int(t.Kind))
	}
	if err == nil && op == nil {
		err = fmt.Errorf("%s: builder returned no operation", t)
	}
	if err != nil {
		t.Operation, t.Err = nil, err
		return
	}
	t.Operation, t.Err = op, nil
}

// Error reports the failure of one task with its position in discovery order.
type Error struct {
	Index int
	Kind  Kind
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FirstError scans tasks in discovery order and returns the first failure,
// so the reported error does not depend on completion timing.
func FirstError(tasks []Task) error {
	for i, t := range tasks {
		if t.Err != nil && t.Operation == nil {
			return &Error{Index: i, Kind: t.Kind, Path: t.Path, Err: t.Err}
		}
		if err := t.Validate(); err != nil {
			return &Error{Index: i, Kind: t.Kind, Path: t.Path, Err: err}
		}
	}
	return nil
}
