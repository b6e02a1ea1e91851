package pkgmeta

import (
	"encoding/json"
	"fmt"

	"github.com/flarebyte/deltapack/internal/operation"
)

// Package identifies a delta: the revision it upgrades from (empty for a
// complete package), the revision it produces and the delta file size.
type Package struct {
	To   string
	From string
	Size uint64
}

// IsComplete reports whether the package needs no installed base revision.
func (p Package) IsComplete() bool { return p.From == "" }

// ID returns the canonical package identifier used to name and address the
// delta outside of the metadata document.
func (p Package) ID() string {
	if p.IsComplete() {
		return "complete_" + p.To
	}
	return "patch" + p.From + "_" + p.To
}

type wirePackage struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Size *string `json:"size"`
}

// MarshalJSON encodes the size as a decimal string.
func (p Package) MarshalJSON() ([]byte, error) {
	size := operation.EncodeSize(p.Size)
	return json.Marshal(wirePackage{From: p.From, To: p.To, Size: &size})
}

// UnmarshalJSON re-parses the size string and fails with
// operation.ErrFormat when it is missing or not a 64-bit integer.
func (p *Package) UnmarshalJSON(b []byte) error {
	var w wirePackage
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: package: %v", operation.ErrFormat, err)
	}
	if w.Size == nil {
		return fmt.Errorf("%w: package 'size' is missing", operation.ErrFormat)
	}
	size, err := operation.DecodeSize("size", *w.Size)
	if err != nil {
		return fmt.Errorf("package: %w", err)
	}
	*p = Package{To: w.To, From: w.From, Size: size}
	return nil
}
