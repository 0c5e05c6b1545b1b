package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestManager(t *testing.T, watch bool) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "shaders"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shaders", "boxes.hlsl"), []byte("VS PS"), 0o644); err != nil {
		t.Fatal(err)
	}
	am, err := NewAssetManager(nil)
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	t.Cleanup(func() { am.Shutdown() })
	if err := am.Initialize(dir, watch); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return am, dir
}

func TestLoadShader(t *testing.T) {
	am, _ := newTestManager(t, false)

	data, err := am.LoadShader("boxes.hlsl")
	if err != nil {
		t.Fatalf("LoadShader: %v", err)
	}
	if string(data) != "VS PS" {
		t.Fatalf("data = %q", data)
	}
	if _, err := am.LoadShader("missing.hlsl"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestInitializeMissingDirectory(t *testing.T) {
	am, err := NewAssetManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(filepath.Join(t.TempDir(), "nope"), true); err != nil {
		t.Fatalf("a missing asset directory should only warn, got %v", err)
	}
	if am.Count() != 0 {
		t.Fatalf("Count = %d", am.Count())
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	am, dir := newTestManager(t, true)

	cfg := filepath.Join(t.TempDir(), "novus.toml")
	if err := os.WriteFile(cfg, []byte("[log]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := am.WatchFile(cfg); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	shader := filepath.Join(dir, "shaders", "boxes.hlsl")
	if err := os.WriteFile(shader, []byte("VS2 PS2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	seen := map[AssetType]bool{}
	timeout := time.After(5 * time.Second)
	for !seen[AssetTypeShader] || !seen[AssetTypeConfig] {
		select {
		case c := <-am.Changes():
			if c.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				seen[c.Type] = true
			}
		case <-timeout:
			t.Fatalf("timed out waiting for changes, saw %v", seen)
		}
	}
}
