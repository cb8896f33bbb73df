// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package plugin loads and unloads dynamic code modules, resolving
// declared dependency edges so that dependency on-load hooks fire before
// their dependents' and unload runs in strict reverse order. It mirrors
// the component-manager bookkeeping style of the engine's asset loader
// (see resource.Manager) but for whole shared-library units rather than
// individual typed assets.
package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/forgelogic/core/errkind"
)

// Flags control how a single LoadPlugin call behaves.
type Flags uint32

const (
	LoadCopy         Flags = 1 << iota // copy to a free numbered slot before loading.
	PluginIsOptional                   // missing file/deps are a warning, not an error.
	CustomDependency                   // dependency set was supplied by the caller, not discovered.
)

// Hooks are the lifecycle callbacks a plugin registers with the loader,
// normally from an init() in the plugin's own package via Register.
type Hooks struct {
	OnLoaded   func()
	OnUnloaded func()
}

// Info describes a loaded plugin for GetAllPluginInfos.
type Info struct {
	Name      string
	Path      string   // the file actually dlopen'd (may be a numbered copy).
	DependsOn []string
	Optional  bool
}

// registration is what a plugin's package-level init() submits via
// Register before the loader ever calls LoadPlugin for it.
type registration struct {
	name      string
	dependsOn []string
	hooks     Hooks
}

var (
	regMu  sync.Mutex
	regs   = map[string]*registration{}
	statik []string // names of statically-linked plugins, in registration order.
)

// Register records a plugin's declared dependencies and lifecycle hooks.
// Plugins call this from an init() function so the loader can see the
// dependency graph before LoadPlugin is asked to load anything.
func Register(name string, dependsOn []string, hooks Hooks) {
	regMu.Lock()
	defer regMu.Unlock()
	regs[name] = &registration{name: name, dependsOn: append([]string(nil), dependsOn...), hooks: hooks}
}

// RegisterStatic marks a plugin as statically linked into the host binary:
// InitializeStaticallyLinkedPlugins will run its hooks without any dlopen.
func RegisterStatic(name string) {
	regMu.Lock()
	defer regMu.Unlock()
	statik = append(statik, name)
}

// event is published on the broadcast bus around a batch of plugin changes.
type event struct {
	kind string // "before_changes", "after_changes", "loaded", "unloaded"
	name string
}

// Bus is the minimal broadcast interface the loader publishes events to.
// Applications subscribe with Subscribe.
type Bus struct {
	mu   sync.Mutex
	subs []chan event
}

func newBus() *Bus { return &Bus{} }

// Subscribe returns a channel of lifecycle events. The channel is
// buffered; slow subscribers miss nothing as long as they keep draining.
func (b *Bus) Subscribe() <-chan event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan event, 64)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) publish(e event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default: // drop rather than block the loader on a stalled subscriber.
		}
	}
}

// slot tracks one loaded plugin instance.
type slot struct {
	info   Info
	handle any // *plugin.Plugin on unix, a windows.Handle wrapper on windows; nil for statically linked plugins.
	loaded bool
}

// Loader owns the set of loaded plugins and their dependency graph.
type Loader struct {
	mu      sync.Mutex
	log     *slog.Logger
	dir     string // directory plugin files (and numbered copies) live in.
	loaded  map[string]*slot
	order   []string // load order, for strict-reverse unload.
	inBatch bool
	bus     *Bus
}

// New creates a Loader that looks for plugin files in dir.
func New(dir string, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{dir: dir, log: log, loaded: map[string]*slot{}, bus: newBus()}
}

// Events exposes the loader's broadcast bus.
func (l *Loader) Events() <-chan event { return l.bus.Subscribe() }

// InitializeStaticallyLinkedPlugins runs OnLoaded for every plugin that
// registered via RegisterStatic, in registration order. Used for builds
// where plugins are compiled directly into the host binary rather than
// dlopen'd.
func (l *Loader) InitializeStaticallyLinkedPlugins() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, name := range statik {
		if _, ok := regs[name]; !ok {
			return errkind.New(errkind.NotFound, "plugin", fmt.Sprintf("static plugin %q never called Register", name))
		}
		if err := l.loadLocked(name, 0); err != nil {
			return err
		}
	}
	return nil
}

// BeginPluginChanges brackets a batch of LoadPlugin/UnloadAllPlugins calls
// so dependents observe one BeforePluginChanges/AfterPluginChanges pair
// instead of one per plugin.
func (l *Loader) BeginPluginChanges() {
	l.mu.Lock()
	l.inBatch = true
	l.mu.Unlock()
	l.bus.publish(event{kind: "before_changes"})
}

// EndPluginChanges closes a batch started with BeginPluginChanges.
func (l *Loader) EndPluginChanges() {
	l.mu.Lock()
	l.inBatch = false
	l.mu.Unlock()
	l.bus.publish(event{kind: "after_changes"})
}

// LoadPlugin loads name and, recursively, any of its declared
// dependencies that are not already loaded. All transitive OnLoaded
// hooks fire, deepest dependency first, before name's own OnLoaded.
// Loading an already-loaded plugin is idempotent and returns nil.
func (l *Loader) LoadPlugin(name string, flags Flags) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(name, flags)
}

func (l *Loader) loadLocked(name string, flags Flags) error {
	if s, ok := l.loaded[name]; ok && s.loaded {
		return nil // idempotent.
	}
	reg, ok := regs[name]
	if !ok {
		reg = &registration{name: name} // custom/unknown dependency with no hooks.
	}
	// Load dependencies first so their OnLoaded hooks run before ours.
	for _, dep := range reg.dependsOn {
		if err := l.loadLocked(dep, flags&^LoadCopy); err != nil {
			if flags&PluginIsOptional != 0 {
				l.log.Warn("optional plugin dependency failed", "plugin", name, "dependency", dep, "error", err)
				continue
			}
			return errkind.Wrap(errkind.NotFound, "plugin", fmt.Sprintf("%s: missing dependency %s", name, dep), err)
		}
	}

	path, handle, err := l.open(name, flags)
	if err != nil {
		if flags&PluginIsOptional != 0 {
			l.log.Warn("optional plugin failed to load", "plugin", name, "error", err)
			return nil
		}
		return err
	}

	s := &slot{info: Info{Name: name, Path: path, DependsOn: reg.dependsOn, Optional: flags&PluginIsOptional != 0}, handle: handle, loaded: true}
	l.loaded[name] = s
	l.order = append(l.order, name)
	if reg.hooks.OnLoaded != nil {
		reg.hooks.OnLoaded()
	}
	l.bus.publish(event{kind: "loaded", name: name})
	return nil
}

// open resolves the on-disk plugin file (optionally through a free
// numbered copy so the source binary can be rebuilt concurrently) and
// loads it with the platform's dynamic-library call. Statically
// registered plugins with no backing file are opened with a nil handle.
func (l *Loader) open(name string, flags Flags) (path string, handle any, err error) {
	src := filepath.Join(l.dir, name+pluginExt)
	if _, statErr := os.Stat(src); statErr != nil {
		for _, s := range statik {
			if s == name {
				return "static:" + name, nil, nil
			}
		}
		return "", nil, errkind.Wrap(errkind.NotFound, "plugin", fmt.Sprintf("plugin file %s not found", src), statErr)
	}

	path = src
	if flags&LoadCopy != 0 {
		if path, err = copyToFreeSlot(l.dir, name); err != nil {
			return "", nil, errkind.Wrap(errkind.IO, "plugin", fmt.Sprintf("%s: copy to hot-reload slot", name), err)
		}
	}

	h, err := openLibrary(path)
	if err != nil {
		return "", nil, errkind.Wrap(errkind.IO, "plugin", fmt.Sprintf("load %s", path), err)
	}
	return path, h, nil
}

// copyToFreeSlot copies name's plugin file to the first "name.N.so" slot
// that does not already exist, supporting up to maxSlots concurrent
// instances (eg. a running engine plus a rebuild-in-progress copy).
func copyToFreeSlot(dir, name string) (string, error) {
	const maxSlots = 16
	src := filepath.Join(dir, name+pluginExt)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	for n := 0; n < maxSlots; n++ {
		dst := filepath.Join(dir, fmt.Sprintf("%s.%d%s", name, n, pluginExt))
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				return "", err
			}
			return dst, nil
		}
	}
	return "", fmt.Errorf("no free hot-reload slot for %s (max %d)", name, maxSlots)
}

// UnloadAllPlugins runs OnUnloaded for every loaded plugin in strict
// reverse load order.
func (l *Loader) UnloadAllPlugins() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.order) - 1; i >= 0; i-- {
		name := l.order[i]
		s, ok := l.loaded[name]
		if !ok || !s.loaded {
			continue
		}
		if reg, ok := regs[name]; ok && reg.hooks.OnUnloaded != nil {
			reg.hooks.OnUnloaded()
		}
		s.loaded = false
		l.bus.publish(event{kind: "unloaded", name: name})
	}
	l.order = nil
	l.loaded = map[string]*slot{}
}

// GetAllPluginInfos returns the currently loaded plugins, in load order.
func (l *Loader) GetAllPluginInfos() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	infos := make([]Info, 0, len(l.order))
	for _, name := range l.order {
		if s := l.loaded[name]; s != nil && s.loaded {
			infos = append(infos, s.info)
		}
	}
	return infos
}
