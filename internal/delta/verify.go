package delta

import (
	"errors"
	"fmt"
	"io"

	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/pkgmeta"
)

// ErrCorrupt reports a delta file that does not match its metadata.
var ErrCorrupt = errors.New("delta does not match metadata")

// Verify checks every payload range of m against the delta in r, whose length
// is size: the stored bytes must hash to dataHash and expand to the final
// size and hash.
func Verify(r io.ReaderAt, size int64, m *pkgmeta.Metadata) (int, error) {
	if uint64(size) != m.Package.Size {
		return 0, fmt.Errorf("%w: delta has %d bytes, package declares %d", ErrCorrupt, size, m.Package.Size)
	}
	if total := m.PayloadTotal(); total != m.Package.Size {
		return 0, fmt.Errorf("%w: payloads sum to %d bytes, package declares %d", ErrCorrupt, total, m.Package.Size)
	}
	checked := 0
	for _, op := range m.Operations {
		if op.Data == nil {
			continue
		}
		if err := verifyPayload(r, m.Package.Size, op); err != nil {
			return checked, fmt.Errorf("%s %s: %w", op.Type, op.Path, err)
		}
		checked++
	}
	return checked, nil
}

func verifyPayload(r io.ReaderAt, total uint64, op *operation.Operation) error {
	d := op.Data
	if d.Offset > total || d.Size > total-d.Offset {
		return fmt.Errorf("%w: range %d+%d outside package", ErrCorrupt, d.Offset, d.Size)
	}
	section := func() *io.SectionReader {
		return io.NewSectionReader(r, int64(d.Offset), int64(d.Size))
	}
	dataHash, _, err := operation.HashReader(section())
	if err != nil {
		return err
	}
	if dataHash != d.Hash {
		return fmt.Errorf("%w: data hash mismatch", ErrCorrupt)
	}
	dec, err := operation.NewReader(section(), d.Compression)
	if err != nil {
		return err
	}
	defer dec.Close()
	finalHash, finalSize, err := operation.HashReader(dec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if finalSize != op.FinalSize || finalHash != op.FinalHash {
		return fmt.Errorf("%w: final content mismatch", ErrCorrupt)
	}
	return nil
}
