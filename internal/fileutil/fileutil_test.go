package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "archive", "na", "2018", "dst.pdf")

	content := []byte("%PDF-1.4 gazette")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := CopyFile(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Fatalf("expected %d bytes written, got %d", len(content), n)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}

	same, err := SameContent(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !same {
		t.Fatal("expected copies to match")
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.pdf")
	if _, err := WriteAtomic(dst, strings.NewReader("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteAtomic(dst, strings.NewReader("second")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.pdf" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "second" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestSameContentDetectsDifference(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	same, err := SameContent(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if same {
		t.Fatal("expected different content")
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}
