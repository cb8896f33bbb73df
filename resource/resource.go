// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package resource is the asynchronous typed-resource loader: handles,
// reference counting, quality levels, and reload. Loads are queued to a
// fixed pool of background goroutines; callers choose per-acquire how
// to wait via the ResourceLock modes.
package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is a resource's load lifecycle position.
type State int

const (
	Unloaded State = iota
	LoadedPartially
	Loaded
)

// Quality levels bracket how much of a resource's data is present.
type Quality int

// AcquireMode controls how LoadResource/ResourceLock behaves when the
// resource is not yet ready.
type AcquireMode int

const (
	PointerOnly AcquireMode = iota
	BlockTillLoaded_NeverFail
	AllowLoadingFallback_NeverFail
	NoFallback
)

// LockState is what a ResourceLock actually got.
type LockState int

const (
	Final LockState = iota
	LoadingFallback
	MissingFallback
	Missing
)

// Stream is the pull-reader a ResourceTypeLoader.OpenDataStream hands
// to a resource's UpdateContent; typically an *os.File or a vfs.File.
type Stream = io.ReadCloser

// ResourceTypeLoader is the per-type hook a host registers via
// SetResourceTypeLoader. OpenDataStream obtains the backing data for
// one load attempt plus opaque per-load userdata threaded back into
// Content's UpdateContent.
type ResourceTypeLoader interface {
	OpenDataStream(id string) (Stream, any, error)
}

// Content is the resource-type-specific payload a handle addresses.
// UpdateContent consumes stream (and the userdata OpenDataStream
// produced) and reports the resulting state and quality levels.
// UnloadData releases memory for the given unload scope.
type Content interface {
	UpdateContent(stream Stream, userdata any) (state State, discard Quality, loadable Quality, err error)
	UnloadData(scope UnloadScope)
}

// UnloadScope selects how much of a resource's memory UnloadData
// releases.
type UnloadScope int

const (
	AllQualityLevels UnloadScope = iota
	OneQualityLevel
)

// Resource is the bookkeeping record for one loaded asset: identity,
// state, quality levels, and the strong ref-count that gates eviction.
type Resource struct {
	ID       string
	TypeName string
	mu       sync.Mutex
	content  Content
	state    State
	discard  Quality
	loadable Quality
	refCount int
	loading  bool
	priority int
	dirty    bool // set by ReloadAllResources; re-enters the pipeline.
}

// State returns the resource's current lifecycle state.
func (r *Resource) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RefCount returns the current strong reference count.
func (r *Resource) RefCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refCount
}

// typeRegistry stores every Resource of one type, keyed by id, plus
// the loader and content constructor for that type.
type typeRegistry struct {
	mu         sync.Mutex
	loader     ResourceTypeLoader
	resources  map[string]*Resource
	newContent func(id string) Content
}

// Manager is the resource manager: one typed registry per resource
// type name, a background worker pool that drives the load pipeline,
// and the nested-acquire whitelist.
type Manager struct {
	mu        sync.RWMutex
	types     map[string]*typeRegistry
	whitelist map[[2]string]bool // (parentType, childType) pairs allowed to block-acquire during UpdateContent.

	jobs   chan loadJob
	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context

	log *slog.Logger
}

type loadJob struct {
	typeName string
	res      *Resource
}

// New creates a resource manager with workerCount background loaders.
func New(workerCount int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		types:     map[string]*typeRegistry{},
		whitelist: map[[2]string]bool{},
		jobs:      make(chan loadJob, 64),
		cancel:    cancel,
		ctx:       ctx,
		log:       log,
	}
	for i := 0; i < workerCount; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Close stops the background workers once they have run the jobs
// already queued. A load in progress is not interrupted.
func (m *Manager) Close() {
	m.cancel()
	close(m.jobs)
	m.wg.Wait()
}

// SetResourceTypeLoader registers the loader and content constructor
// for typeName. newContent builds an empty Content the loader will
// populate via UpdateContent.
func (m *Manager) SetResourceTypeLoader(typeName string, loader ResourceTypeLoader, newContent func(id string) Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[typeName] = &typeRegistry{loader: loader, resources: map[string]*Resource{}, newContent: newContent}
}

// AllowResourceTypeAcquireDuringUpdateContent whitelists childType so
// parentType's UpdateContent may synchronously block-acquire it
// in-line instead of only being allowed to kick off an async load.
func (m *Manager) AllowResourceTypeAcquireDuringUpdateContent(parentType, childType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whitelist[[2]string{parentType, childType}] = true
}

func (m *Manager) registry(typeName string) (*typeRegistry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.types[typeName]
	if !ok {
		return nil, fmt.Errorf("resource: no loader registered for type %q", typeName)
	}
	return reg, nil
}

// IsNestedAcquireAllowed reports whether parentType's UpdateContent may
// synchronously block-acquire a childType resource in-line, per
// AllowResourceTypeAcquireDuringUpdateContent. Callers inside
// UpdateContent should check this before calling ResourceLock with a
// blocking mode; without the whitelist, a nested LoadResource call
// must return a not-yet-final state and let the child load
// asynchronously.
func (m *Manager) IsNestedAcquireAllowed(parentType, childType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.whitelist[[2]string{parentType, childType}]
}

// LoadResource returns the Resource for id, creating it and kicking
// off a background load on first request. The handle's identity is
// stable across reloads.
func (m *Manager) LoadResource(typeName, id string) (*Resource, error) {
	reg, err := m.registry(typeName)
	if err != nil {
		return nil, err
	}
	reg.mu.Lock()
	res, ok := reg.resources[id]
	if !ok {
		res = &Resource{ID: id, TypeName: typeName, content: reg.newContent(id)}
		reg.resources[id] = res
	}
	needsLoad := !ok || (res.state == Unloaded && !res.loading)
	if needsLoad {
		res.loading = true
	}
	reg.mu.Unlock()
	if needsLoad {
		m.jobs <- loadJob{typeName: typeName, res: res}
	}
	return res, nil
}

// PreloadResource kicks off a load for an already-acquired handle
// without changing its ref-count.
func (m *Manager) PreloadResource(res *Resource) {
	res.mu.Lock()
	already := res.loading || res.state == Loaded
	if !already {
		res.loading = true
	}
	res.mu.Unlock()
	if !already {
		m.jobs <- loadJob{typeName: res.TypeName, res: res}
	}
}

// worker drains jobs and drives one resource through OpenDataStream +
// UpdateContent.
func (m *Manager) worker() {
	defer m.wg.Done()
	for job := range m.jobs {
		m.runLoad(job)
	}
}

func (m *Manager) runLoad(job loadJob) {
	reg, err := m.registry(job.typeName)
	if err != nil {
		m.log.Error("resource: load without registered type", "type", job.typeName)
		return
	}
	stream, userdata, err := reg.loader.OpenDataStream(job.res.ID)
	if err != nil {
		job.res.mu.Lock()
		job.res.loading = false
		job.res.mu.Unlock()
		m.log.Warn("resource: open data stream failed", "id", job.res.ID, "type", job.typeName, "err", err)
		return
	}
	defer stream.Close()

	state, discard, loadable, err := job.res.content.UpdateContent(stream, userdata)
	job.res.mu.Lock()
	job.res.loading = false
	if err != nil {
		m.log.Warn("resource: update content failed", "id", job.res.ID, "type", job.typeName, "err", err)
	} else {
		job.res.state = state
		job.res.discard = discard
		job.res.loadable = loadable
		job.res.dirty = false
	}
	job.res.mu.Unlock()
}

// ResourceLock acquires a strong reference to res under mode and
// returns the outcome. The caller must call Release when done with
// the reference.
func (m *Manager) ResourceLock(res *Resource, mode AcquireMode) LockState {
	res.mu.Lock()
	res.refCount++
	state, loading := res.state, res.loading
	res.mu.Unlock()

	switch mode {
	case PointerOnly:
		return Final
	case BlockTillLoaded_NeverFail:
		m.waitLoaded(res)
		return Final
	case AllowLoadingFallback_NeverFail:
		if state == Loaded {
			return Final
		}
		if loading {
			return LoadingFallback
		}
		return MissingFallback
	case NoFallback:
		m.waitLoaded(res)
		if res.State() == Loaded {
			return Final
		}
		return Missing
	default:
		return Missing
	}
}

// Release decrements res's strong reference count. A resource at
// ref-count zero becomes eligible for FreeAllUnusedResources.
func (m *Manager) Release(res *Resource) {
	res.mu.Lock()
	if res.refCount > 0 {
		res.refCount--
	}
	res.mu.Unlock()
}

func (m *Manager) waitLoaded(res *Resource) {
	for {
		res.mu.Lock()
		loading := res.loading
		res.mu.Unlock()
		if !loading {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// FreeAllUnusedResources unloads and drops every resource across every
// type whose ref-count is zero and that has no outstanding load.
func (m *Manager) FreeAllUnusedResources() {
	m.mu.RLock()
	regs := make([]*typeRegistry, 0, len(m.types))
	for _, reg := range m.types {
		regs = append(regs, reg)
	}
	m.mu.RUnlock()

	for _, reg := range regs {
		reg.mu.Lock()
		for id, res := range reg.resources {
			res.mu.Lock()
			eligible := res.refCount == 0 && !res.loading
			res.mu.Unlock()
			if eligible {
				res.content.UnloadData(AllQualityLevels)
				delete(reg.resources, id)
			}
		}
		reg.mu.Unlock()
	}
}

// ReloadAllResources marks every currently Loaded resource dirty and
// re-enters the loading pipeline without changing its handle.
func (m *Manager) ReloadAllResources() {
	m.mu.RLock()
	regs := make(map[string]*typeRegistry, len(m.types))
	for name, reg := range m.types {
		regs[name] = reg
	}
	m.mu.RUnlock()

	for typeName, reg := range regs {
		reg.mu.Lock()
		targets := make([]*Resource, 0, len(reg.resources))
		for _, res := range reg.resources {
			res.mu.Lock()
			if res.state == Loaded {
				res.dirty = true
				res.loading = true
				targets = append(targets, res)
			}
			res.mu.Unlock()
		}
		reg.mu.Unlock()
		for _, res := range targets {
			m.jobs <- loadJob{typeName: typeName, res: res}
		}
	}
}
