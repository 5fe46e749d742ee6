package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorage_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	meta, err := s.Put(ctx, "videos/a.mp4", bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatal(err)
	}
	if meta.SizeBytes != 5 {
		t.Fatalf("size = %d", meta.SizeBytes)
	}

	r, err := s.Get(ctx, "videos/a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	data := make([]byte, 5)
	if _, err := r.Read(data); err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}
}

func TestLocalStorage_ExistsAndDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	ok, _ := s.Exists(ctx, "missing")
	if ok {
		t.Fatal("expected missing key to not exist")
	}

	s.Put(ctx, "present", bytes.NewReader([]byte("x")))
	ok, _ = s.Exists(ctx, "present")
	if !ok {
		t.Fatal("expected present key to exist")
	}

	if err := s.Delete(ctx, "present"); err != nil {
		t.Fatal(err)
	}
	ok, _ = s.Exists(ctx, "present")
	if ok {
		t.Fatal("expected deleted key to not exist")
	}

	if err := s.Delete(ctx, "present"); err != nil {
		t.Fatalf("deleting an absent key should not error: %v", err)
	}
}

// TestLocalStorage_ListIsRecursive pins the §9 resolution: List walks every
// nested file under a prefix, not just its immediate children.
func TestLocalStorage_ListIsRecursive(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	s.Put(ctx, "videos/2024/a.mp4", bytes.NewReader([]byte("a")))
	s.Put(ctx, "videos/2024/01/b.mp4", bytes.NewReader([]byte("bb")))
	s.Put(ctx, "other/c.mp4", bytes.NewReader([]byte("ccc")))

	results, err := s.List(ctx, "videos")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
}

func TestLocalStorage_PutFileAndGetFile(t *testing.T) {
	dir := t.TempDir()
	srcDir := t.TempDir()
	s := NewLocalStorage(dir)
	ctx := context.Background()

	src := filepath.Join(srcDir, "in.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutFile(ctx, "out.bin", src); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(srcDir, "out.bin")
	if err := s.GetFile(ctx, "out.bin", dst); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "payload" {
		t.Fatalf("data = %q", data)
	}
}
