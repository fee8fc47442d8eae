package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFootprint(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "otoshimono.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "index")
	if err := os.MkdirAll(filepath.Join(index, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "store", "seg"), []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Footprint(db, index)
	if err != nil {
		t.Fatal(err)
	}
	if got != 18 {
		t.Errorf("Footprint = %d, want 18", got)
	}

	got, err = Footprint(filepath.Join(dir, "missing.db"), "")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("missing paths: got %d, want 0", got)
	}
}
