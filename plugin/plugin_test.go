// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package plugin

import (
	"testing"
)

// resetRegistry clears package-level registration state between tests,
// since Register/RegisterStatic are deliberately process-global (plugins
// register themselves from init()).
func resetRegistry() {
	regMu.Lock()
	defer regMu.Unlock()
	regs = map[string]*registration{}
	statik = nil
}

// TestDependencyOrder: B depends on A; loading B loads A first and
// fires A.OnLoaded before B.OnLoaded. UnloadAllPlugins then fires
// B.OnUnloaded before A.OnUnloaded.
func TestDependencyOrder(t *testing.T) {
	resetRegistry()
	var fired []string

	RegisterStatic("A")
	RegisterStatic("B")
	Register("A", nil, Hooks{
		OnLoaded:   func() { fired = append(fired, "A.loaded") },
		OnUnloaded: func() { fired = append(fired, "A.unloaded") },
	})
	Register("B", []string{"A"}, Hooks{
		OnLoaded:   func() { fired = append(fired, "B.loaded") },
		OnUnloaded: func() { fired = append(fired, "B.unloaded") },
	})

	l := New(t.TempDir(), nil)
	if err := l.InitializeStaticallyLinkedPlugins(); err != nil {
		t.Fatalf("init static plugins: %v", err)
	}

	want := []string{"A.loaded", "B.loaded"}
	if !equal(fired, want) {
		t.Fatalf("load order = %v, want %v", fired, want)
	}

	l.UnloadAllPlugins()
	want = append(want, "B.unloaded", "A.unloaded")
	if !equal(fired, want) {
		t.Fatalf("unload order = %v, want %v", fired, want)
	}
}

// TestThirdPluginNoOpForSharedDeps exercises the rest of S5: a third
// plugin C depending on both A and B loads only C's own OnLoaded since A
// and B are already loaded.
func TestThirdPluginNoOpForSharedDeps(t *testing.T) {
	resetRegistry()
	var fired []string
	RegisterStatic("A")
	RegisterStatic("B")
	Register("A", nil, Hooks{OnLoaded: func() { fired = append(fired, "A") }})
	Register("B", []string{"A"}, Hooks{OnLoaded: func() { fired = append(fired, "B") }})
	Register("C", []string{"A", "B"}, Hooks{OnLoaded: func() { fired = append(fired, "C") }})

	l := New(t.TempDir(), nil)
	if err := l.InitializeStaticallyLinkedPlugins(); err != nil {
		t.Fatalf("init: %v", err)
	}
	fired = nil // only care about what happens loading C afterwards.
	RegisterStatic("C")
	if err := l.LoadPlugin("C", 0); err != nil {
		t.Fatalf("load C: %v", err)
	}
	if !equal(fired, []string{"C"}) {
		t.Fatalf("loading C fired %v, want only [C]", fired)
	}
}

func TestLoadPluginIdempotent(t *testing.T) {
	resetRegistry()
	count := 0
	RegisterStatic("A")
	Register("A", nil, Hooks{OnLoaded: func() { count++ }})
	l := New(t.TempDir(), nil)
	if err := l.InitializeStaticallyLinkedPlugins(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := l.LoadPlugin("A", 0); err != nil {
		t.Fatalf("reload A: %v", err)
	}
	if count != 1 {
		t.Fatalf("OnLoaded fired %d times, want 1", count)
	}
}

func TestLoadPluginMissingFileRequired(t *testing.T) {
	resetRegistry()
	l := New(t.TempDir(), nil)
	if err := l.LoadPlugin("does-not-exist", 0); err == nil {
		t.Fatal("expected error loading missing required plugin")
	}
}

func TestLoadPluginMissingFileOptional(t *testing.T) {
	resetRegistry()
	l := New(t.TempDir(), nil)
	if err := l.LoadPlugin("does-not-exist", PluginIsOptional); err != nil {
		t.Fatalf("optional missing plugin should not error: %v", err)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
