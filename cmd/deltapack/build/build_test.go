package build

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flarebyte/deltapack/internal/stage"
	"github.com/flarebyte/deltapack/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestBuild_FlagsOnly(t *testing.T) {
	oldDir, newDir := testutil.NewTrees(t, map[string]string{"a": "1"}, map[string]string{"a": "2", "b": "3"})
	outDir := t.TempDir()
	delta := filepath.Join(outDir, "pkg")
	stdout, _, err := execute(t,
		"--old", oldDir, "--new", newDir,
		"--old-rev", "a", "--new-rev", "b",
		"--delta", delta, "--tmp", t.TempDir(), "--workers", "1",
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fi, err := os.Stat(delta)
	if err != nil {
		t.Fatalf("stat delta: %v", err)
	}
	want := fmt.Sprintf(`{"ok":true,"package":"patcha_b","size":"%d","operations":2}`+"\n", fi.Size())
	if stdout != want {
		t.Fatalf("stdout\nwant %q\ngot  %q", want, stdout)
	}
	if _, err := os.Stat(delta + ".json"); err != nil {
		t.Fatalf("metadata: %v", err)
	}
}

func TestBuild_FlagsOverrideConfig(t *testing.T) {
	_, newDir := testutil.NewTrees(t, nil, map[string]string{"a": "1"})
	outDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "deltapack.cue")
	cfg := fmt.Sprintf(`configVersion: "1"
newDirectory: %q
newRevision: "from-config"
deltaFile: %q
compression: "lz4"
exclude: ["*.tmp"]
`, newDir, filepath.Join(outDir, "from-config"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := execute(t, "--config", cfgPath, "--new-rev", "from-flag", "--delta", filepath.Join(outDir, "from-flag"), "--tmp", t.TempDir())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var got summary
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.Package != "complete_from-flag" || got.Operations != 1 {
		t.Fatalf("summary: %+v", got)
	}
	if _, err := os.Stat(filepath.Join(outDir, "from-flag")); err != nil {
		t.Fatalf("delta not at flag path: %v", err)
	}
	meta, err := os.ReadFile(filepath.Join(outDir, "from-flag.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(meta), `"dataCompression": "lz4"`) {
		t.Fatalf("config compression not applied:\n%s", meta)
	}
}

func TestBuild_VerboseLogsToStderr(t *testing.T) {
	_, newDir := testutil.NewTrees(t, nil, map[string]string{"a": "1"})
	_, stderr, err := execute(t, "--new", newDir, "--new-rev", "v", "--delta", filepath.Join(t.TempDir(), "d"), "--tmp", t.TempDir(), "-v")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"directory comparison done", "operations created", "stage=write-metadata"} {
		if !strings.Contains(stderr, want) {
			t.Fatalf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestBuild_ExitCodes(t *testing.T) {
	_, newDir := testutil.NewTrees(t, nil, map[string]string{"a": "1"})
	existing := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(existing, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"missing new directory", []string{"--new-rev", "v"}, stage.ExitCodeConfig},
		{"bad config extension", []string{"--config", "deltapack.yaml"}, stage.ExitCodeConfig},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "none.cue")}, stage.ExitCodeConfig},
		{"existing delta", []string{"--new", newDir, "--new-rev", "v", "--delta", existing}, stage.ExitCodeConfig},
		{"bad compression", []string{"--new", newDir, "--new-rev", "v", "--compression", "xz", "--delta", filepath.Join(t.TempDir(), "d")}, stage.ExitCodeConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			var ec interface{ ExitCode() int }
			if !errors.As(err, &ec) {
				t.Fatalf("expected an exit coder, got %v", err)
			}
			if ec.ExitCode() != tc.code {
				t.Fatalf("exit code %d, want %d (%v)", ec.ExitCode(), tc.code, err)
			}
			if strings.Contains(err.Error(), "\n") {
				t.Fatalf("multi-line error: %q", err.Error())
			}
		})
	}
}

func TestBuild_ExcludeFlagReplacesConfigPatterns(t *testing.T) {
	_, newDir := testutil.NewTrees(t, nil, map[string]string{"keep.tmp": "t", "drop.log": "l", "a": "1"})
	outDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "deltapack.cue")
	cfg := fmt.Sprintf(`configVersion: "1"
newDirectory: %q
newRevision: "v"
exclude: ["*.tmp"]
`, newDir)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	delta := filepath.Join(outDir, "pkg")
	if _, _, err := execute(t, "--config", cfgPath, "--exclude", "*.log", "--delta", delta, "--tmp", t.TempDir()); err != nil {
		t.Fatalf("build: %v", err)
	}
	meta := string(testutil.MustRead(t, delta+".json"))
	if !strings.Contains(meta, `"path": "keep.tmp"`) {
		t.Fatalf("config pattern still applied:\n%s", meta)
	}
	if strings.Contains(meta, `"path": "drop.log"`) {
		t.Fatalf("flag pattern not applied:\n%s", meta)
	}
}
