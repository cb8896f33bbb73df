// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package plugin

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers a hot-reload (copy-to-next-slot + reload) whenever a
// plugin that was loaded with LoadCopy has its source binary rebuilt on
// disk, replacing manual re-issue of LoadPlugin during development.
type Watcher struct {
	l       *Loader
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]bool // plugin name -> currently watched.
	done    chan struct{}
}

// NewWatcher starts an fsnotify watch on the loader's plugin directory.
func NewWatcher(l *Loader) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(l.dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{l: l, fsw: fsw, watched: map[string]bool{}, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// EnableHotReload arms hot reload for an already-loaded plugin: the next
// time its source file (name.so) is rewritten, it is copied to a new
// numbered slot and reloaded.
func (w *Watcher) EnableHotReload(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched[name] = true
}

// DisableHotReload disarms hot reload for name.
func (w *Watcher) DisableHotReload(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, name)
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := trimPluginExt(filepath.Base(ev.Name))
			w.mu.Lock()
			armed := w.watched[name]
			w.mu.Unlock()
			if !armed {
				continue
			}
			w.l.log.Info("plugin source changed, hot-reloading", "plugin", name, "file", ev.Name)
			w.l.BeginPluginChanges()
			w.l.reload(name)
			w.l.EndPluginChanges()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.l.log.Warn("plugin watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func trimPluginExt(name string) string {
	if len(name) > len(pluginExt) && name[len(name)-len(pluginExt):] == pluginExt {
		return name[:len(name)-len(pluginExt)]
	}
	return name
}

// reload unloads a single plugin (if loaded) and reloads it with
// LoadCopy so the new binary lands in a fresh numbered slot. Dependents
// are not automatically reloaded: hot reload targets leaf development
// iteration, not full dependency-graph invalidation.
func (l *Loader) reload(name string) {
	l.mu.Lock()
	if s, ok := l.loaded[name]; ok && s.loaded {
		if reg, ok := regs[name]; ok && reg.hooks.OnUnloaded != nil {
			reg.hooks.OnUnloaded()
		}
		s.loaded = false
		for i, n := range l.order {
			if n == name {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	}
	l.mu.Unlock()

	if err := l.LoadPlugin(name, LoadCopy); err != nil {
		l.log.Error("hot reload failed", "plugin", name, "error", err)
	}
}
