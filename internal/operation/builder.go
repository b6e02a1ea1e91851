package operation

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Request describes the file an operation is built from. OldPath and NewPath
// are relative to the builder's old and new filesystems; Workspace is the
// directory inside the workspace filesystem that receives payload files.
type Request struct {
	Path      string
	OldPath   string
	NewPath   string
	Workspace string
}

// Builder computes add and patch operations. Its methods are safe for
// concurrent use as long as the filesystems are.
type Builder struct {
	Old         billy.Filesystem
	New         billy.Filesystem
	Workspace   billy.Filesystem
	Compression Compression
}

// RemoveFile returns the operation deleting a file.
func RemoveFile(path string) *Operation {
	return &Operation{Type: TypeRemove, Path: path}
}

// RemoveDir returns the operation deleting an (empty) directory.
func RemoveDir(path string) *Operation {
	return &Operation{Type: TypeRemoveDir, Path: path}
}

// Add builds an operation carrying the full, compressed content of a new file.
func (b *Builder) Add(req Request) (*Operation, error) {
	if b.New == nil {
		return nil, errors.New("no new filesystem")
	}
	src, err := b.New.Open(req.NewPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, finalHash, finalSize, err := b.writePayload(req, "add-", src)
	if err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}
	return &Operation{
		Type:      TypeAdd,
		Path:      req.Path,
		Data:      data,
		FinalSize: finalSize,
		FinalHash: finalHash,
		ws:        b.Workspace,
	}, nil
}

// Patch builds an operation turning the old file into the new one. When both
// contents hash the same the operation carries no payload.
func (b *Builder) Patch(req Request) (*Operation, error) {
	if b.Old == nil || b.New == nil {
		return nil, errors.New("missing filesystem")
	}
	localHash, localSize, err := hashFile(b.Old, req.OldPath)
	if err != nil {
		return nil, fmt.Errorf("hash old content: %w", err)
	}
	finalHash, finalSize, err := hashFile(b.New, req.NewPath)
	if err != nil {
		return nil, fmt.Errorf("hash new content: %w", err)
	}
	op := &Operation{
		Type:      TypePatch,
		Path:      req.Path,
		LocalSize: localSize,
		LocalHash: localHash,
		FinalSize: finalSize,
		FinalHash: finalHash,
		PatchType: PatchNone,
		ws:        b.Workspace,
	}
	if localHash == finalHash && localSize == finalSize {
		return op, nil
	}

	src, err := b.New.Open(req.NewPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	data, _, _, err := b.writePayload(req, "patch-", src)
	if err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}
	op.Data = data
	op.PatchType = PatchReplace
	return op, nil
}

// writePayload compresses src into a fresh workspace file, hashing both the
// raw content and the stored bytes on the way.
func (b *Builder) writePayload(req Request, prefix string, src io.Reader) (*Payload, string, uint64, error) {
	if b.Workspace == nil {
		return nil, "", 0, fmt.Errorf("no workspace filesystem")
	}
	dir := req.Workspace
	if dir == "" {
		dir = "."
	}
	if err := b.Workspace.MkdirAll(dir, 0o755); err != nil {
		return nil, "", 0, err
	}
	f, err := util.TempFile(b.Workspace, dir, prefix)
	if err != nil {
		return nil, "", 0, err
	}
	name := f.Name()

	dataHash := NewHasher()
	stored := &countingWriter{}
	enc, err := NewWriter(io.MultiWriter(f, dataHash, stored), b.Compression)
	if err != nil {
		_ = f.Close()
		return nil, "", 0, err
	}
	finalHash := NewHasher()
	finalSize, err := io.Copy(enc, io.TeeReader(src, finalHash))
	if err != nil {
		_ = enc.Close()
		_ = f.Close()
		return nil, "", 0, err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return nil, "", 0, err
	}
	if err := f.Close(); err != nil {
		return nil, "", 0, err
	}
	return &Payload{
		File:        name,
		Size:        stored.n,
		Hash:        HexSum(dataHash),
		Compression: b.Compression,
	}, HexSum(finalHash), uint64(finalSize), nil
}

func hashFile(fs billy.Filesystem, p string) (string, uint64, error) {
	f, err := fs.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return HashReader(f)
}

// Decode reads a payload back into the original file content and checks it
// against the operation's final size and hash.
func (o *Operation) Decode(payload []byte) ([]byte, error) {
	if o.Data == nil {
		return nil, ErrNoPayload
	}
	r, err := NewReader(bytes.NewReader(payload), o.Data.Compression)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", o.Path, err)
	}
	if uint64(len(out)) != o.FinalSize {
		return nil, fmt.Errorf("decode %s: got %d bytes, expected %d", o.Path, len(out), o.FinalSize)
	}
	h := NewHasher()
	_, _ = h.Write(out)
	if got := HexSum(h); got != o.FinalHash {
		return nil, fmt.Errorf("decode %s: final hash mismatch", o.Path)
	}
	return out, nil
}
