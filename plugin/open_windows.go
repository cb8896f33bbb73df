// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

//go:build windows

package plugin

import "golang.org/x/sys/windows"

// pluginExt is the shared-library extension this platform loads.
const pluginExt = ".dll"

// windowsModule wraps a loaded DLL handle. The standard library's
// plugin package does not build on windows at all, so this is the only
// backing representation for a loaded plugin here.
type windowsModule struct {
	handle windows.Handle
}

// openLibrary loads path with LoadLibrary. Unlike the unix dlopen path,
// symbol resolution against Go code isn't available here: windows
// plugins participate through OnLoaded/OnUnloaded side effects run by
// the DLL's own entry point, not through exported Go symbols.
func openLibrary(path string) (any, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, err
	}
	return &windowsModule{handle: h}, nil
}

// Close releases the module with FreeLibrary. Unused today (Loader
// never unloads a dlopen'd file, only runs OnUnloaded hooks), kept so a
// future UnloadAllPlugins that also frees the backing module has
// somewhere to call into.
func (m *windowsModule) Close() error {
	return windows.FreeLibrary(m.handle)
}
