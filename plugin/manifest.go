// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package plugin

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forgelogic/core/errkind"
)

// ManifestEntry declares one plugin's dependency edges and optionality
// from a manifest file rather than the plugin's own init() registration.
// This is the CustomDependency path: the caller supplies the dependency
// set instead of the loader discovering it from the plugin's Register
// call, which matters for plugins built without this module's Go ABI
// (eg. a scripted or externally-built plugin with no Register hook).
type ManifestEntry struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
	Optional  bool     `yaml:"optional"`
}

// Manifest is the on-disk shape of a plugin manifest file: a flat list
// of plugin declarations, loaded once at startup before any LoadPlugin
// call.
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

// LoadManifestFile parses a YAML manifest file into a Manifest.
func LoadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "plugin", fmt.Sprintf("read manifest %s", path), err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errkind.Wrap(errkind.Invalid, "plugin", fmt.Sprintf("parse manifest %s", path), err)
	}
	return &m, nil
}

// LoadManifest registers every entry in m as if each plugin had called
// Register itself, with CustomDependency implied: the loader will not
// re-discover these dependency edges from the plugin binary. Entries
// already registered via a real Register call are left untouched so a
// manifest only fills in plugins that have none.
func LoadManifest(m *Manifest) {
	regMu.Lock()
	defer regMu.Unlock()
	for _, e := range m.Plugins {
		if _, ok := regs[e.Name]; ok {
			continue
		}
		regs[e.Name] = &registration{name: e.Name, dependsOn: append([]string(nil), e.DependsOn...)}
	}
}

// ManifestFlags returns the Flags a manifest entry implies for LoadPlugin,
// combining CustomDependency (the manifest supplied the dependency set)
// with PluginIsOptional when the entry is marked optional.
func (e ManifestEntry) ManifestFlags() Flags {
	flags := CustomDependency
	if e.Optional {
		flags |= PluginIsOptional
	}
	return flags
}
