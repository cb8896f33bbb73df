// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadManifestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	writeFile(t, path, `
plugins:
  - name: renderer-vk
    depends_on: [core-math]
  - name: core-math
  - name: audio-fmod
    optional: true
`)

	m, err := LoadManifestFile(path)
	require.NoError(t, err)
	require.Len(t, m.Plugins, 3)
	require.Equal(t, ManifestEntry{Name: "renderer-vk", DependsOn: []string{"core-math"}}, m.Plugins[0])
	require.Equal(t, ManifestEntry{Name: "core-math"}, m.Plugins[1])
	require.Equal(t, ManifestEntry{Name: "audio-fmod", Optional: true}, m.Plugins[2])
}

func TestLoadManifestFillsUnregistered(t *testing.T) {
	resetRegistry()
	Register("core-math", nil, Hooks{}) // already has a real registration.

	LoadManifest(&Manifest{Plugins: []ManifestEntry{
		{Name: "core-math", DependsOn: []string{"should-be-ignored"}},
		{Name: "renderer-vk", DependsOn: []string{"core-math"}},
	}})

	require.Empty(t, regs["core-math"].dependsOn, "manifest must not override an existing Register call")
	require.Equal(t, []string{"core-math"}, regs["renderer-vk"].dependsOn)
}

func TestManifestEntryFlags(t *testing.T) {
	opt := ManifestEntry{Name: "audio-fmod", Optional: true}
	require.Equal(t, CustomDependency|PluginIsOptional, opt.ManifestFlags())

	req := ManifestEntry{Name: "core-math"}
	require.Equal(t, CustomDependency, req.ManifestFlags())
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
