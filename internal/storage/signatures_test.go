package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pickup-42.png")
	if err := os.WriteFile(path, []byte("sig"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewDirSignatureStore(dir)
	store.Remove("https://parc.local/signatures/pickup-42.png")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}
}

func TestRemoveToleratesMissingFile(t *testing.T) {
	store := NewDirSignatureStore(t.TempDir())
	store.Remove("https://parc.local/signatures/never-existed.png")
	store.Remove("")
}

func TestRemoveDoesNotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside.png")
	if err := os.WriteFile(outside, []byte("sig"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "sigs")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	// Only the trailing path segment is used, so traversal stays in Dir
	store := NewDirSignatureStore(sub)
	store.Remove("../outside.png")

	if _, err := os.Stat(outside); err != nil {
		t.Error("Expected file outside the store dir to survive")
	}
}
