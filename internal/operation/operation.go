package operation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-git/go-billy/v5"
)

// ErrFormat marks a persisted value that does not decode, such as a size
// string that is not a 64-bit integer.
var ErrFormat = errors.New("format error")

// ErrNoPayload is returned by OpenPayload when the operation carries no bytes
// or was decoded from metadata rather than built in a workspace.
var ErrNoPayload = errors.New("operation has no payload")

// Type discriminates the operation variants.
type Type string

const (
	TypeAdd       Type = "add"
	TypePatch     Type = "patch"
	TypeRemove    Type = "rm"
	TypeRemoveDir Type = "rmdir"
)

func (t Type) valid() bool {
	switch t {
	case TypeAdd, TypePatch, TypeRemove, TypeRemoveDir:
		return true
	}
	return false
}

// Patch types recorded on patch operations.
const (
	PatchReplace = "replace"
	PatchNone    = "none"
)

// Payload locates the bytes an operation contributes to the delta file.
type Payload struct {
	// File is the payload path inside the workspace filesystem. It is only
	// meaningful while the package is being built.
	File        string
	Offset      uint64
	Size        uint64
	Hash        string
	Compression Compression
}

// Operation is a single package instruction. Type selects which of the
// optional fields are meaningful.
type Operation struct {
	Type Type
	Path string
	Data *Payload

	FinalSize uint64
	FinalHash string

	LocalSize uint64
	LocalHash string
	PatchType string

	ws billy.Filesystem
}

// Size returns the payload size, 0 for operations without payload.
func (o *Operation) Size() uint64 {
	if o == nil || o.Data == nil {
		return 0
	}
	return o.Data.Size
}

// SetOffset records where the payload starts inside the delta file.
func (o *Operation) SetOffset(offset uint64) {
	if o.Data != nil {
		o.Data.Offset = offset
	}
}

// OpenPayload opens the workspace file holding the payload bytes.
func (o *Operation) OpenPayload() (io.ReadCloser, error) {
	if o.Data == nil || o.ws == nil || o.Data.File == "" {
		return nil, ErrNoPayload
	}
	f, err := o.ws.Open(o.Data.File)
	if err != nil {
		return nil, fmt.Errorf("open payload %s: %w", o.Data.File, err)
	}
	return f, nil
}

// wireOp is the V1 JSON shape shared by all operation types. Empty fields are
// omitted so each type only carries its own keys.
type wireOp struct {
	Type            Type   `json:"type"`
	Path            string `json:"path"`
	PatchType       string `json:"patchType,omitempty"`
	DataOffset      string `json:"dataOffset,omitempty"`
	DataSize        string `json:"dataSize,omitempty"`
	DataHash        string `json:"dataHash,omitempty"`
	DataCompression string `json:"dataCompression,omitempty"`
	LocalSize       string `json:"localSize,omitempty"`
	LocalHash       string `json:"localHash,omitempty"`
	FinalSize       string `json:"finalSize,omitempty"`
	FinalHash       string `json:"finalHash,omitempty"`
}

// MarshalJSON encodes the operation with the V1 schema of its type.
func (o Operation) MarshalJSON() ([]byte, error) {
	if !o.Type.valid() {
		return nil, fmt.Errorf("unknown operation type %q", o.Type)
	}
	w := wireOp{Type: o.Type, Path: o.Path}
	if o.Type == TypeAdd || o.Type == TypePatch {
		w.FinalSize = EncodeSize(o.FinalSize)
		w.FinalHash = o.FinalHash
		if o.Data != nil {
			w.DataOffset = EncodeSize(o.Data.Offset)
			w.DataSize = EncodeSize(o.Data.Size)
			w.DataHash = o.Data.Hash
			w.DataCompression = o.Data.Compression.String()
		}
	}
	if o.Type == TypePatch {
		w.PatchType = o.PatchType
		w.LocalSize = EncodeSize(o.LocalSize)
		w.LocalHash = o.LocalHash
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a V1 operation, validating its numeric strings.
func (o *Operation) UnmarshalJSON(b []byte) error {
	var w wireOp
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if !w.Type.valid() {
		return fmt.Errorf("%w: unknown operation type %q", ErrFormat, w.Type)
	}
	out := Operation{Type: w.Type, Path: w.Path, FinalHash: w.FinalHash, LocalHash: w.LocalHash, PatchType: w.PatchType}
	var err error
	if w.Type == TypeAdd || w.Type == TypePatch {
		if out.FinalSize, err = DecodeSize("finalSize", w.FinalSize); err != nil {
			return err
		}
	}
	if w.Type == TypePatch {
		if out.LocalSize, err = DecodeSize("localSize", w.LocalSize); err != nil {
			return err
		}
	}
	if w.DataSize != "" {
		p := &Payload{Hash: w.DataHash}
		if p.Size, err = DecodeSize("dataSize", w.DataSize); err != nil {
			return err
		}
		if p.Offset, err = DecodeSize("dataOffset", w.DataOffset); err != nil {
			return err
		}
		if p.Compression, err = ParseCompression(w.DataCompression); err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
		out.Data = p
	}
	*o = out
	return nil
}

// EncodeSize renders a size as a decimal string so consumers limited to
// double precision numbers do not lose bits.
func EncodeSize(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// DecodeSize parses a decimal size string produced by EncodeSize.
func DecodeSize(field, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a 64-bit integer string: %q", ErrFormat, field, s)
	}
	return n, nil
}
