package prefswatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/feedrelay/pkg/feedrelay"
	"github.com/bft-labs/feedrelay/pkg/log"
)

func startPlugin(t *testing.T, path string, reloads *atomic.Int32) *Plugin {
	t.Helper()
	p := New(Config{DebounceDelay: 20 * time.Millisecond})
	err := p.Initialize(context.Background(), feedrelay.PluginConfig{
		PrefsPath: path,
		Logger:    log.NewNoopLogger(),
		Reload:    func() { reloads.Add(1) },
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func waitReloads(t *testing.T, reloads *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reloads.Load() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("reloads = %d, want %d", reloads.Load(), want)
}

func TestPlugin_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preferences.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	startPlugin(t, path, &reloads)

	if err := os.WriteFile(path, []byte(`{"news_feed_url":"https://x.example/rss"}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitReloads(t, &reloads, 1)
}

func TestPlugin_ReloadsOnRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preferences.json")

	var reloads atomic.Int32
	startPlugin(t, path, &reloads)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	waitReloads(t, &reloads, 1)
}

func TestPlugin_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preferences.json")

	var reloads atomic.Int32
	startPlugin(t, path, &reloads)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}
	}
	waitReloads(t, &reloads, 1)
	time.Sleep(150 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Errorf("reloads = %d, want 1 after a burst", got)
	}
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preferences.json")

	var reloads atomic.Int32
	startPlugin(t, path, &reloads)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := reloads.Load(); got != 0 {
		t.Errorf("reloads = %d, want 0", got)
	}
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	p := New(Config{})
	if err := p.Initialize(context.Background(), feedrelay.PluginConfig{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_MissingDirectory(t *testing.T) {
	p := New(Config{})
	err := p.Initialize(context.Background(), feedrelay.PluginConfig{
		PrefsPath: filepath.Join(t.TempDir(), "missing", "preferences.json"),
		Reload:    func() {},
	})
	if err == nil {
		t.Fatal("Initialize should fail when the directory does not exist")
	}
}

func TestPlugin_WiredIntoRelay(t *testing.T) {
	dir := t.TempDir()
	r, err := feedrelay.New(feedrelay.Config{
		LinkAddr:  "127.0.0.1:0",
		PrefsPath: filepath.Join(dir, "preferences.json"),
	}, WithDefaultPrefsWatcher())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if r.Status() != feedrelay.StateRunning {
		t.Errorf("Status = %v, want Running", r.Status())
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
