package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	s := New()

	if s.DefaultBlockElems != 1 {
		t.Errorf("DefaultBlockElems = %d, want 1", s.DefaultBlockElems)
	}

	if s.MinFillPct != 0.5 {
		t.Errorf("MinFillPct = %v, want 0.5", s.MinFillPct)
	}
}

func TestNewWithOptions(t *testing.T) {
	s := New(WithDefaultBlockElems(32), WithMinFillPct(0.8), WithBucketElems(16), WithPinBuffers(true))

	if s.DefaultBlockElems != 32 || s.MinFillPct != 0.8 || s.BucketElems != 16 || !s.PinBuffers {
		t.Fatalf("unexpected Settings after options: %+v", s)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suballoc.yaml")

	content := "defaultBlockElems: 64\nminFillPct: 0.75\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.DefaultBlockElems != 64 {
		t.Errorf("DefaultBlockElems = %d, want 64", s.DefaultBlockElems)
	}

	if s.MinFillPct != 0.75 {
		t.Errorf("MinFillPct = %v, want 0.75", s.MinFillPct)
	}

	// bucketElems wasn't present in the file; default must survive.
	if s.BucketElems != 64 {
		t.Errorf("BucketElems = %d, want unchanged default 64", s.BucketElems)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
