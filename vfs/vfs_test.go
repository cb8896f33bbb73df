// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package vfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgelogic/core/errkind"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOverrideMountWins(t *testing.T) {
	base := t.TempDir()
	patch := t.TempDir()
	writeFile(t, base, "shaders/basic.fsh", "base-version")
	writeFile(t, patch, "shaders/basic.fsh", "patch-version")

	f := New()
	f.AddDataDirectory(NewOSDataDir("base", "g1", base, ReadOnly))
	f.AddDataDirectory(NewOSDataDir("patch", "g2", patch, ReadOnly))

	rc, err := f.OpenFileToRead("shaders/basic.fsh")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "patch-version" {
		t.Fatalf("got %q, want patch-version (most recently mounted wins)", got)
	}
}

func TestRootPrefixPinsMount(t *testing.T) {
	base := t.TempDir()
	patch := t.TempDir()
	writeFile(t, base, "cfg.json", "base-version")
	writeFile(t, patch, "cfg.json", "patch-version")

	f := New()
	f.AddDataDirectory(NewOSDataDir("base", "g1", base, ReadOnly))
	f.AddDataDirectory(NewOSDataDir("patch", "g2", patch, ReadOnly))

	rc, err := f.OpenFileToRead(":base/cfg.json")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "base-version" {
		t.Fatalf("got %q, want base-version (:base pins the mount)", got)
	}
}

func TestRemoveDataDirectoryGroup(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "a.txt", "hi")

	f := New()
	f.AddDataDirectory(NewOSDataDir("base", "mods", base, ReadOnly))
	if !f.ExistsFile("a.txt") {
		t.Fatal("expected a.txt to exist before removal")
	}
	f.RemoveDataDirectoryGroup("mods")
	if f.ExistsFile("a.txt") {
		t.Fatal("expected a.txt to be gone after group removal")
	}
}

func TestOpenFileToWriteRequiresAllowWrites(t *testing.T) {
	dir := t.TempDir()
	f := New()
	f.AddDataDirectory(NewOSDataDir("ro", "g", dir, ReadOnly))
	if _, err := f.OpenFileToWrite("out.txt"); !errkind.Is(err, errkind.Conflict) {
		t.Fatalf("expected Conflict writing to read-only mount, got %v", err)
	}

	f2 := New()
	f2.AddDataDirectory(NewOSDataDir("rw", "g", dir, AllowWrites))
	wc, err := f2.OpenFileToWrite("out.txt")
	if err != nil {
		t.Fatalf("open write: %v", err)
	}
	wc.Write([]byte("saved"))
	wc.Close()
	if got, _ := os.ReadFile(filepath.Join(dir, "out.txt")); string(got) != "saved" {
		t.Fatalf("file content = %q, want saved", got)
	}
}

func TestOpenFileToWriteRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	f := New()
	f.AddDataDirectory(NewOSDataDir("rw", "g", dir, AllowWrites))
	if _, err := f.OpenFileToWrite("../../etc/passwd"); !errkind.Is(err, errkind.Invalid) {
		t.Fatalf("expected Invalid for path escape, got %v", err)
	}
}

func TestResolveSpecialDirectory(t *testing.T) {
	dir := t.TempDir()
	f := New()
	f.AddDataDirectory(NewOSDataDir("sdk", "g", dir, ReadOnly))
	f.SetSpecialDirectory("user", "/home/player")

	got, err := f.ResolveSpecialDirectory(":sdk/models/crate.obj")
	if err != nil || got != "models/crate.obj" {
		t.Fatalf("root resolve = %q, err=%v", got, err)
	}

	got, err = f.ResolveSpecialDirectory(">user/saves/slot1.sav")
	if err != nil || got != "/home/player/saves/slot1.sav" {
		t.Fatalf("special resolve = %q, err=%v", got, err)
	}

	if _, err := f.ResolveSpecialDirectory(">missing/x"); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound for unset special dir, got %v", err)
	}
}

func TestGetFileStatsNotFound(t *testing.T) {
	f := New()
	f.AddDataDirectory(NewOSDataDir("base", "g", t.TempDir(), ReadOnly))
	if _, err := f.GetFileStats("nope.txt"); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
