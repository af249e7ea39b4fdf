package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestCollector_DefaultPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "design_0.pdb", "ATOM")
	writeFile(t, dir, "scores/design_0.json", "{}")
	writeFile(t, dir, "notes.txt", "ignored")

	c := &Collector{}
	manifest, err := c.Collect(context.Background(), "job-1", dir)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}

	if manifest["file_count"] != 2 {
		t.Fatalf("file_count = %v, want 2", manifest["file_count"])
	}

	files, ok := manifest["files"].([]Artifact)
	if !ok {
		t.Fatalf("files has unexpected type %T", manifest["files"])
	}
	// Sorted by relative path.
	if files[0].Path != "design_0.pdb" || files[1].Path != "scores/design_0.json" {
		t.Fatalf("unexpected manifest contents: %+v", files)
	}
	if files[0].Size != 4 {
		t.Fatalf("size not recorded: %+v", files[0])
	}
}

func TestCollector_MissingDirIsEmptyManifest(t *testing.T) {
	c := &Collector{}
	manifest, err := c.Collect(context.Background(), "job-1", filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if manifest["file_count"] != 0 {
		t.Fatalf("missing dir should yield empty manifest: %+v", manifest)
	}
}

func TestCollector_CustomPatternsAndCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.log", "x")
	writeFile(t, dir, "b.log", "x")
	writeFile(t, dir, "c.pdb", "x")

	c := &Collector{Patterns: []string{"**/*.log"}, MaxFiles: 1}
	manifest, err := c.Collect(context.Background(), "job-1", dir)
	if err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if manifest["file_count"] != 1 {
		t.Fatalf("cap not applied: %+v", manifest)
	}
	files := manifest["files"].([]Artifact)
	if files[0].Path != "a.log" {
		t.Fatalf("unexpected capped selection: %+v", files)
	}
}

func TestStagerConfig_Validate(t *testing.T) {
	cfg := StagerConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty bucket should fail validation")
	}

	cfg = StagerConfig{Bucket: "b", AccessKeyID: "only-one"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("lone access key should fail validation")
	}

	cfg = StagerConfig{Bucket: "b"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
