// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

//go:build !windows

package plugin

import stdplugin "plugin"

// pluginExt is the shared-library extension this platform's dlopen
// expects.
const pluginExt = ".so"

// openLibrary dlopen's path via the standard library's plugin package.
func openLibrary(path string) (any, error) {
	return stdplugin.Open(path)
}
