package delta

import (
	"errors"
	"fmt"
	"io"

	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/task"
)

// ChunkSize bounds the copy buffer, so memory use does not grow with payloads.
const ChunkSize = 8 * 1024

// ErrShortPayload reports a payload file whose length differs from the size
// its operation declares.
var ErrShortPayload = errors.New("payload size mismatch")

// Assemble writes the payload of every operation with a non-zero size to w in
// task order, records each payload offset, and returns the total byte count.
// Tasks must all carry an operation.
func Assemble(w io.Writer, tasks []task.Task) (uint64, error) {
	buf := make([]byte, ChunkSize)
	var total uint64
	for _, t := range tasks {
		op := t.Operation
		if op == nil {
			return total, fmt.Errorf("%s: no operation", t)
		}
		size := op.Size()
		if size == 0 {
			continue
		}
		n, err := copyPayload(w, op, buf)
		if err != nil {
			return total, fmt.Errorf("%s: %w", t, err)
		}
		if n != size {
			return total, fmt.Errorf("%s: %w: wrote %d bytes, expected %d", t, ErrShortPayload, n, size)
		}
		op.SetOffset(total)
		total += size
	}
	return total, nil
}

// Operations returns the operations of tasks in order.
func Operations(tasks []task.Task) []*operation.Operation {
	ops := make([]*operation.Operation, 0, len(tasks))
	for _, t := range tasks {
		ops = append(ops, t.Operation)
	}
	return ops
}

// copyPayload streams one payload through buf.
func copyPayload(w io.Writer, op *operation.Operation, buf []byte) (uint64, error) {
	r, err := op.OpenPayload()
	if err != nil {
		return 0, err
	}
	defer r.Close()
	var n uint64
	for {
		read, rerr := r.Read(buf)
		if read > 0 {
			written, werr := w.Write(buf[:read])
			n += uint64(written)
			if werr != nil {
				return n, werr
			}
			if written != read {
				return n, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
	}
}
