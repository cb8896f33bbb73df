// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package archive

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/forgelogic/core/errkind"
	"github.com/forgelogic/core/vfs"
)

func buildTestArchive(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "assets.far")
	w, err := Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Add("models/crate.obj", []byte("v 0 0 0\nv 1 0 0\n"), Uncompressed); err != nil {
		t.Fatalf("add uncompressed: %v", err)
	}
	if err := w.Add("source/big.txt", []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), Zstd); err != nil {
		t.Fatalf("add zstd: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return p
}

func TestOpenReadRoundTrip(t *testing.T) {
	p := buildTestArchive(t)
	a, err := Open("assets", "base", p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	if !a.Exists("models/crate.obj") {
		t.Fatal("expected crate.obj to exist")
	}
	rc, err := a.OpenRead("models/crate.obj")
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	got, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(got) != "v 0 0 0\nv 1 0 0\n" {
		t.Fatalf("content mismatch: %q, err=%v", got, err)
	}

	rc2, err := a.OpenRead("source/big.txt")
	if err != nil {
		t.Fatalf("open zstd read: %v", err)
	}
	got2, err := io.ReadAll(rc2)
	rc2.Close()
	if err != nil || len(got2) != 52 {
		t.Fatalf("zstd content mismatch: len=%d, err=%v", len(got2), err)
	}
}

func TestStatAndMissing(t *testing.T) {
	p := buildTestArchive(t)
	a, err := Open("assets", "base", p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	st, err := a.Stat("models/crate.obj")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size != 16 {
		t.Fatalf("stat size = %d, want 16", st.Size)
	}

	if _, err := a.Stat("does/not/exist"); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestOpenWriteRejected(t *testing.T) {
	p := buildTestArchive(t)
	a, err := Open("assets", "base", p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	if _, err := a.OpenWrite("models/crate.obj"); !errkind.Is(err, errkind.Conflict) {
		t.Fatalf("expected Conflict for write to read-only archive, got %v", err)
	}
}

func TestArchiveServesAsMount(t *testing.T) {
	p := buildTestArchive(t)
	a, err := Open("assets", "base", p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	f := vfs.New()
	f.AddDataDirectory(a)

	rc, err := f.OpenFileToRead(":assets/models/crate.obj")
	if err != nil {
		t.Fatalf("open through FS: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "v 0 0 0\nv 1 0 0\n" {
		t.Fatalf("content through FS mount = %q", got)
	}
}

func TestReaderPoolReuse(t *testing.T) {
	p := buildTestArchive(t)
	a, err := Open("assets", "base", p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	for i := 0; i < 3; i++ {
		rc, err := a.OpenRead("models/crate.obj")
		if err != nil {
			t.Fatalf("iteration %d: open read: %v", i, err)
		}
		if _, err := io.ReadAll(rc); err != nil {
			t.Fatalf("iteration %d: read: %v", i, err)
		}
		rc.Close()
	}
}
