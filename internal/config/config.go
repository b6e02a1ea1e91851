package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema closes the config: unknown fields and wrong types are rejected by
// CUE before any value is read.
const schema = `
#Config: {
	configVersion:    string
	oldDirectory?:    string
	newDirectory?:    string
	oldRevision?:     string
	newRevision?:     string
	deltaFile?:       string
	metadataFile?:    string
	tmpDirectory?:    string
	workers?:         int & >=0
	compression?:     "zstd" | "lz4" | "none"
	exclude?:         [...string]
	filter?: inline?: string
	revisionFromGit?: bool
}
`

// Config holds everything a packaging run needs. Empty strings mean "not set";
// defaults are applied by the build pipeline, not here.
type Config struct {
	ConfigVersion   string   `json:"configVersion"`
	OldDirectory    string   `json:"oldDirectory,omitempty"`
	NewDirectory    string   `json:"newDirectory,omitempty"`
	OldRevision     string   `json:"oldRevision,omitempty"`
	NewRevision     string   `json:"newRevision,omitempty"`
	DeltaFile       string   `json:"deltaFile,omitempty"`
	MetadataFile    string   `json:"metadataFile,omitempty"`
	TmpDirectory    string   `json:"tmpDirectory,omitempty"`
	Workers         int      `json:"workers,omitempty"`
	Compression     string   `json:"compression,omitempty"`
	Exclude         []string `json:"exclude,omitempty"`
	Filter          Filter   `json:"filter,omitempty"`
	RevisionFromGit bool     `json:"revisionFromGit,omitempty"`
}

// Filter holds the optional Lua listing predicate.
type Filter struct {
	Inline string `json:"inline,omitempty"`
}

// Default returns a config with the current version and nothing else set.
func Default() Config {
	return Config{ConfigVersion: CurrentConfigVersion}
}

// Load reads and validates a CUE config file.
func Load(path string) (Config, error) {
	if filepath.Ext(path) != ".cue" {
		return Config{}, errors.New("unsupported config format: expected .cue")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse validates CUE source against the config schema and decodes it.
func Parse(data []byte) (Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %v", err)
	}
	if err := requireStringField(v, "configVersion"); err != nil {
		return Config{}, err
	}
	var version string
	if err := v.LookupPath(cue.ParsePath("configVersion")).Decode(&version); err != nil {
		return Config{}, fmt.Errorf("invalid value for configVersion: %v", err)
	}
	if err := CheckVersion(version); err != nil {
		return Config{}, err
	}

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %v", err)
	}
	var c Config
	if err := unified.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %v", err)
	}
	return c, nil
}

func requireStringField(v cue.Value, name string) error {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return fmt.Errorf("missing required field: %s", name)
	}
	if f.Kind() != cue.StringKind {
		return fmt.Errorf("invalid type for field: %s (expected string)", name)
	}
	return nil
}
