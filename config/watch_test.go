package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suballoc.yaml")

	if err := os.WriteFile(path, []byte("minFillPct: 0.5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, initial, err := WatchFile(path)
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	defer w.Close()

	if initial.MinFillPct != 0.5 {
		t.Fatalf("initial MinFillPct = %v, want 0.5", initial.MinFillPct)
	}

	if err := os.WriteFile(path, []byte("minFillPct: 0.9\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case updated := <-w.Updates():
		if updated.MinFillPct != 0.9 {
			t.Fatalf("reloaded MinFillPct = %v, want 0.9", updated.MinFillPct)
		}
	case err := <-w.Errors():
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload notification")
	}
}
