package stage

import (
	"errors"
	"fmt"
	"os"
)

// Output owns the destination files of a run and its private workspace.
// Destination files are created exclusively: a run never overwrites an
// existing package.
type Output struct {
	DeltaPath    string
	MetadataPath string
	Workspace    string

	Delta    *os.File
	Metadata *os.File

	deltaClaimed    bool
	metadataClaimed bool
}

// claimFile creates path for writing and fails if it already exists.
func claimFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// claimOutputs claims the delta file, then the metadata file. On failure
// nothing claimed so far is left behind.
func claimOutputs(deltaPath, metadataPath string) (*Output, error) {
	if _, err := os.Lstat(deltaPath); err == nil {
		return nil, &os.PathError{Op: "claim delta file", Path: deltaPath, Err: os.ErrExist}
	}
	if _, err := os.Lstat(metadataPath); err == nil {
		return nil, &os.PathError{Op: "claim delta metadata file", Path: metadataPath, Err: os.ErrExist}
	}
	out := &Output{DeltaPath: deltaPath, MetadataPath: metadataPath}
	d, err := claimFile(deltaPath)
	if err != nil {
		return nil, fmt.Errorf("unable to create new delta file: %w", err)
	}
	out.Delta, out.deltaClaimed = d, true
	m, err := claimFile(metadataPath)
	if err != nil {
		out.Abort()
		return nil, fmt.Errorf("unable to create new delta metadata file: %w", err)
	}
	out.Metadata, out.metadataClaimed = m, true
	return out, nil
}

// Abort closes and deletes everything the run claimed and has not completed.
// It is safe to call on a partially populated or nil Output, and more than
// once.
func (o *Output) Abort() {
	if o == nil {
		return
	}
	if o.Delta != nil {
		_ = o.Delta.Close()
		o.Delta = nil
	}
	if o.Metadata != nil {
		_ = o.Metadata.Close()
		o.Metadata = nil
	}
	if o.deltaClaimed {
		_ = os.Remove(o.DeltaPath)
		o.deltaClaimed = false
	}
	if o.metadataClaimed {
		_ = os.Remove(o.MetadataPath)
		o.metadataClaimed = false
	}
	o.removeWorkspace()
}

func (o *Output) removeWorkspace() {
	if o.Workspace != "" {
		_ = os.RemoveAll(o.Workspace)
		o.Workspace = ""
	}
}

// closeDelta flushes the delta file to disk and closes it.
func (o *Output) closeDelta() error {
	if o.Delta == nil {
		return errors.New("delta file is not open")
	}
	f := o.Delta
	if err := f.Sync(); err != nil {
		return fmt.Errorf("unable to flush %s: %w", o.DeltaPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close %s: %w", o.DeltaPath, err)
	}
	o.Delta = nil
	return nil
}

// closeMetadata closes the metadata file and drops the workspace; after it
// returns the package is complete.
func (o *Output) closeMetadata() error {
	if o.Metadata == nil {
		return errors.New("metadata file is not open")
	}
	f := o.Metadata
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close %s: %w", o.MetadataPath, err)
	}
	o.Metadata = nil
	o.deltaClaimed, o.metadataClaimed = false, false
	o.removeWorkspace()
	return nil
}
