package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")

	path, err := WriteAtomic(dir, "rec.mp4", strings.NewReader("some bytes"))
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if path != filepath.Join(dir, "rec.mp4") {
		t.Errorf("path = %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "some bytes" {
		t.Errorf("content = %q, want some bytes", got)
	}

	// No temp files survive a successful write
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestWriteAtomicOverwrites(t *testing.T) {
	dir := t.TempDir()

	if _, err := WriteAtomic(dir, "rec.mp4", strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	path, err := WriteAtomic(dir, "rec.mp4", strings.NewReader("second"))
	if err != nil {
		t.Fatal(err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "second" {
		t.Errorf("content = %q, want second", got)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, os.ErrClosed
}

func TestWriteAtomicReadError(t *testing.T) {
	dir := t.TempDir()

	if _, err := WriteAtomic(dir, "rec.mp4", failingReader{}); err == nil {
		t.Fatal("WriteAtomic succeeded with failing reader, want error")
	}
	if _, err := os.Stat(filepath.Join(dir, "rec.mp4")); !os.IsNotExist(err) {
		t.Error("destination file exists after failed write")
	}
}
