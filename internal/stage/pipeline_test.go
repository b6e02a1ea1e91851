package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/flarebyte/deltapack/internal/config"
	"github.com/flarebyte/deltapack/internal/operation"
	"github.com/flarebyte/deltapack/internal/pkgmeta"
	"github.com/flarebyte/deltapack/internal/task"
	"github.com/flarebyte/deltapack/internal/testutil"
)

type fixture struct {
	cfg    config.Config
	outDir string
	tmpDir string
}

func newFixture(t *testing.T, oldFiles, newFiles map[string]string) *fixture {
	t.Helper()
	oldDir, newDir := testutil.NewTrees(t, oldFiles, newFiles)
	f := &fixture{outDir: t.TempDir(), tmpDir: t.TempDir()}
	f.cfg = config.Default()
	f.cfg.OldDirectory = oldDir
	f.cfg.NewDirectory = newDir
	f.cfg.OldRevision = "r1"
	f.cfg.NewRevision = "r2"
	f.cfg.DeltaFile = filepath.Join(f.outDir, "delta.bin")
	f.cfg.TmpDirectory = f.tmpDir
	f.cfg.Workers = 2
	return f
}

func (f *fixture) run(t *testing.T) (Envelope, error) {
	t.Helper()
	cfg := f.cfg
	return RunPipeline(context.Background(), Envelope{Meta: &Meta{Config: &cfg}}, Deps{})
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunPipeline_WritesDeltaAndMetadata(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.txt": "one", "same": "s", "gone/x": "x"},
		map[string]string{"a.txt": "two", "same": "s", "new.txt": "fresh"},
	)
	out, err := f.run(t)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Meta.Stage != WriteMetadataStage {
		t.Fatalf("last stage: %q", out.Meta.Stage)
	}
	if got := out.PackageID(); got != "patchr1_r2" {
		t.Fatalf("package id: %q", got)
	}

	delta, err := os.ReadFile(f.cfg.DeltaFile)
	if err != nil {
		t.Fatalf("read delta: %v", err)
	}
	mf, err := os.Open(f.cfg.DeltaFile + ".json")
	if err != nil {
		t.Fatalf("open metadata: %v", err)
	}
	defer mf.Close()
	m, err := pkgmeta.Decode(mf)
	if err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if m.Package.Size != uint64(len(delta)) {
		t.Fatalf("size %d, delta has %d bytes", m.Package.Size, len(delta))
	}
	var types []operation.Type
	for _, op := range m.Operations {
		types = append(types, op.Type)
		if op.Data == nil {
			continue
		}
		content, err := op.Decode(delta[op.Data.Offset : op.Data.Offset+op.Data.Size])
		if err != nil {
			t.Fatalf("decode %s: %v", op.Path, err)
		}
		if op.Path == "new.txt" && string(content) != "fresh" {
			t.Fatalf("new.txt content: %q", content)
		}
	}
	want := []operation.Type{operation.TypePatch, operation.TypeRemove, operation.TypeRemoveDir, operation.TypeAdd, operation.TypePatch}
	if len(types) != len(want) {
		t.Fatalf("operations: %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("operation %d: got %s want %s", i, types[i], want[i])
		}
	}
	if names := outputNames(t, f.tmpDir); len(names) != 0 {
		t.Fatalf("workspace left behind: %v", names)
	}
}

func TestRunPipeline_CompletePackage(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"a": "1", "d/b": "2"})
	f.cfg.OldDirectory = ""
	f.cfg.OldRevision = "ignored"
	f.cfg.DeltaFile = ""
	f.cfg.MetadataFile = ""
	t.Chdir(f.outDir)

	out, err := f.run(t)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.Package.IsComplete() || out.Package.ID() != "complete_r2" {
		t.Fatalf("package: %+v", out.Package)
	}
	names := outputNames(t, f.outDir)
	if len(names) != 2 || names[0] != "complete_r2" || names[1] != "complete_r2.json" {
		t.Fatalf("outputs: %v", names)
	}
}

func TestRunPipeline_ExistingDeltaIsNotOverwritten(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "2"})
	if err := os.WriteFile(f.cfg.DeltaFile, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := f.run(t)
	if KindOf(err) != KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	if b, _ := os.ReadFile(f.cfg.DeltaFile); string(b) != "keep" {
		t.Fatalf("existing delta modified: %q", b)
	}
	if _, err := os.Stat(f.cfg.DeltaFile + ".json"); !os.IsNotExist(err) {
		t.Fatalf("metadata created: %v", err)
	}
}

func TestRunPipeline_ExistingMetadataReleasesDelta(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"a": "1"})
	f.cfg.MetadataFile = filepath.Join(f.outDir, "meta.json")
	if err := os.WriteFile(f.cfg.MetadataFile, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := f.run(t)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}
	if names := outputNames(t, f.outDir); len(names) != 1 || names[0] != "meta.json" {
		t.Fatalf("outputs: %v", names)
	}
}

func TestRunPipeline_TaskFailureRemovesOutputs(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "2", "b": "3"})
	// a dangling link lists as a file and fails when opened
	if err := os.Symlink("missing-target", filepath.Join(f.cfg.NewDirectory, "broken")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, err := f.run(t)
	if KindOf(err) != KindTask {
		t.Fatalf("expected task error, got %v", err)
	}
	var te *task.Error
	if !errors.As(err, &te) || te.Path != "broken" || te.Kind != task.Add {
		t.Fatalf("task error: %#v", err)
	}
	if n := strings.Count(err.Error(), "add broken"); n != 1 {
		t.Fatalf("task named %d times in %q", n, err.Error())
	}
	if names := outputNames(t, f.outDir); len(names) != 0 {
		t.Fatalf("outputs left behind: %v", names)
	}
	if names := outputNames(t, f.tmpDir); len(names) != 0 {
		t.Fatalf("workspace left behind: %v", names)
	}
}

func TestRunPipeline_FollowsDirectorySymlink(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "1", "real/x": "content"})
	if err := os.Symlink("real", filepath.Join(f.cfg.NewDirectory, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	out, err := f.run(t)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var paths []string
	for _, op := range out.Metadata.Operations {
		paths = append(paths, string(op.Type)+" "+op.Path)
	}
	want := []string{"patch a", "add link/x", "add real/x"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("operations: %v", paths)
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"missing new directory", func(c *config.Config) { c.NewDirectory = "" }},
		{"new directory does not exist", func(c *config.Config) { c.NewDirectory = filepath.Join(c.NewDirectory, "nope") }},
		{"old directory does not exist", func(c *config.Config) { c.OldDirectory = filepath.Join(c.OldDirectory, "nope") }},
		{"missing new revision", func(c *config.Config) { c.NewRevision = "" }},
		{"missing old revision", func(c *config.Config) { c.OldRevision = "" }},
		{"unsupported version", func(c *config.Config) { c.ConfigVersion = "2" }},
		{"bad compression", func(c *config.Config) { c.Compression = "xz" }},
		{"negative workers", func(c *config.Config) { c.Workers = -1 }},
		{"bad filter", func(c *config.Config) { c.Filter.Inline = "return (" }},
		{"same output paths", func(c *config.Config) { c.MetadataFile = c.DeltaFile }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "1"})
			tc.mutate(&f.cfg)
			_, err := f.run(t)
			if KindOf(err) != KindConfig {
				t.Fatalf("expected config error, got %v", err)
			}
			if names := outputNames(t, f.outDir); len(names) != 0 {
				t.Fatalf("outputs left behind: %v", names)
			}
		})
	}
}

func TestValidateConfig_Defaults(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "1"})
	f.cfg.Workers = 0
	cfg := f.cfg
	out, err := ValidateConfig(context.Background(), Envelope{Meta: &Meta{Config: &cfg}}, Deps{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	defer out.Output.Abort()
	s := out.Meta.Settings
	if s.Workers <= 0 {
		t.Fatalf("workers not defaulted: %d", s.Workers)
	}
	if s.Compression != operation.CompressionZstd {
		t.Fatalf("compression: %s", s.Compression)
	}
	if s.MetadataFile != f.cfg.DeltaFile+".json" {
		t.Fatalf("metadata file: %s", s.MetadataFile)
	}
	if filepath.Dir(out.Output.Workspace) != f.tmpDir {
		t.Fatalf("workspace %s not under %s", out.Output.Workspace, f.tmpDir)
	}
	out.Output.Abort()
	if names := outputNames(t, f.outDir); len(names) != 0 {
		t.Fatalf("abort left outputs: %v", names)
	}
}

func commitAll(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := wt.AddGlob("."); err != nil {
		t.Fatalf("add: %v", err)
	}
	h, err := wt.Commit("snapshot", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return h.String()
}

func TestValidateConfig_RevisionFromGit(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "1"}, map[string]string{"a": "2"})
	oldHash := commitAll(t, f.cfg.OldDirectory)
	newHash := commitAll(t, f.cfg.NewDirectory)
	f.cfg.OldRevision, f.cfg.NewRevision = "", ""
	f.cfg.RevisionFromGit = true

	out, err := f.run(t)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Package.From != oldHash[:shortHashLen] || out.Package.To != newHash[:shortHashLen] {
		t.Fatalf("package: %+v", out.Package)
	}
	// the .git directories never reach the package
	for _, op := range out.Metadata.Operations {
		if op.Path != "a" {
			t.Fatalf("unexpected operation on %s", op.Path)
		}
	}
}

func TestValidateConfig_RevisionFromGitWithoutRepository(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"a": "1"})
	f.cfg.NewRevision = ""
	f.cfg.RevisionFromGit = true
	_, err := f.run(t)
	if KindOf(err) != KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRun_UnknownStage(t *testing.T) {
	_, err := Run(context.Background(), "nope", Envelope{}, Deps{})
	var unknown ErrUnknown
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestError_SingleLine(t *testing.T) {
	err := newError(KindIO, AssembleDeltaStage, errors.New("disk\nfull  now"))
	if got := err.Error(); got != "assemble-delta: disk full now" {
		t.Fatalf("message: %q", got)
	}
	if KindOf(err) != KindIO || KindOf(errors.New("x")) != 0 {
		t.Fatal("KindOf")
	}
}

func TestError_ExitCodes(t *testing.T) {
	cases := map[ErrorKind]int{
		KindConfig: ExitCodeConfig,
		KindIO:     ExitCodeIO,
		KindTask:   ExitCodeTask,
		KindFormat: ExitCodeFormat,
		0:          ExitCodeFailure,
	}
	for kind, want := range cases {
		if got := NewError(kind, "x", errors.New("y")).ExitCode(); got != want {
			t.Fatalf("%s: got %d want %d", kind, got, want)
		}
	}
}
