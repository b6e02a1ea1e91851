package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/flarebyte/deltapack/internal/buildinfo"
)

func pinVersion(t *testing.T) {
	t.Helper()
	oldVersion, oldCommit, oldDate := buildinfo.Version, buildinfo.Commit, buildinfo.Date
	t.Cleanup(func() {
		buildinfo.Version, buildinfo.Commit, buildinfo.Date = oldVersion, oldCommit, oldDate
	})
	buildinfo.Version = "dev"
	buildinfo.Commit = "-"
	buildinfo.Date = ""
}

func TestVersionDefaultOutputStable(t *testing.T) {
	pinVersion(t)
	cmd := NewCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "deltapack dev (commit=-)\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestVersionJSON(t *testing.T) {
	pinVersion(t)
	cmd := NewCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got["version"] != "dev" || got["commit"] != "-" || got["timestamp"] == "" {
		t.Fatalf("unexpected object: %v", got)
	}
	if stderr.String() != "deltapack version: dev (commit=-)\n" {
		t.Fatalf("stderr: %q", stderr.String())
	}
}
