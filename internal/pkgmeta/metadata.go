package pkgmeta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/flarebyte/deltapack/internal/operation"
)

// Version is the metadata schema written by this package.
const Version = "1"

// Metadata is the sidecar document of a delta file: the package identity and
// every operation in discovery order.
type Metadata struct {
	Version    string                 `json:"version"`
	Package    Package                `json:"package"`
	Operations []*operation.Operation `json:"operations"`
}

// New builds a V1 document. A nil operation list is stored as empty so the
// JSON always carries an array.
func New(pkg Package, ops []*operation.Operation) *Metadata {
	if ops == nil {
		ops = []*operation.Operation{}
	}
	return &Metadata{Version: Version, Package: pkg, Operations: ops}
}

// Marshal returns the indented JSON document with a trailing newline.
func (m *Metadata) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the document to w.
func (m *Metadata) Encode(w io.Writer) error {
	b, err := m.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode reads a document, rejecting unknown schema versions and malformed
// sizes with operation.ErrFormat.
func Decode(r io.Reader) (*Metadata, error) {
	var m Metadata
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, operation.ErrFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: metadata: %v", operation.ErrFormat, err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("%w: unsupported metadata version %q", operation.ErrFormat, m.Version)
	}
	for i, op := range m.Operations {
		if op == nil {
			return nil, fmt.Errorf("%w: operation %d is null", operation.ErrFormat, i)
		}
	}
	return &m, nil
}

// PayloadTotal sums the payload sizes of all operations.
func (m *Metadata) PayloadTotal() uint64 {
	var total uint64
	for _, op := range m.Operations {
		total += op.Size()
	}
	return total
}
