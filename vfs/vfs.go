// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package vfs mounts named data directories and resolves virtual paths
// against them. Mounts are application-registered roots with their own
// read/write policy; a path can probe every mount in override order or
// pin itself to one root.
package vfs

import (
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgelogic/core/errkind"
)

// Usage controls whether a mount accepts writes.
type Usage int

const (
	ReadOnly Usage = iota
	AllowWrites
)

// Stats mirrors GetFileStats: {is-directory, size, last-modified-time,
// name, parent-path}.
type Stats struct {
	IsDir    bool
	Size     int64
	ModTime  time.Time
	Name     string
	ParentOf string
}

// DataDir is one mounted root: a named, registration-ordered source of
// files addressable by a virtual path.
type DataDir interface {
	Root() string // the rootName this mount was registered under.
	Group() string
	Usage() Usage
	OpenRead(virtualPath string) (io.ReadCloser, error)
	OpenWrite(virtualPath string) (io.WriteCloser, error)
	Exists(virtualPath string) bool
	Stat(virtualPath string) (Stats, error)
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// mount wraps a DataDir with its registration order and an optional
// GUID redirection table the mount owns.
type mount struct {
	dd       DataDir
	order    int
	redirect map[string]string // asset-GUID -> real virtual path.
}

// FS resolves virtual paths across every mounted DataDir plus the
// special-directory table (":rootName/..." and ">specialName/...").
type FS struct {
	mu       sync.RWMutex
	mounts   []*mount
	specials map[string]string // name -> absolute filesystem path.
	seq      int
}

// New creates an FS with the built-in special directories registered as
// empty; callers set real paths with SetSpecialDirectory.
func New() *FS {
	return &FS{specials: map[string]string{"sdk": "", "user": "", "appdir": ""}}
}

// SetSpecialDirectory resolves a special directory name (eg "sdk",
// "user", "appdir", or a custom name) to an absolute filesystem path.
func (f *FS) SetSpecialDirectory(name, absPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specials[name] = absPath
}

// ResolveSpecialDirectory resolves ":rootName/suffix" against a mount's
// root name, or ">specialName/suffix" against the special-directory
// table. Absolute paths (not starting with : or >) are returned as-is.
func (f *FS) ResolveSpecialDirectory(virtualPath string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	switch {
	case strings.HasPrefix(virtualPath, ":"):
		rest := virtualPath[1:]
		root, suffix, _ := strings.Cut(rest, "/")
		for _, m := range f.mounts {
			if m.dd.Root() == root {
				return suffix, nil
			}
		}
		return "", errkind.New(errkind.NotFound, "vfs", "no mount with root "+root)
	case strings.HasPrefix(virtualPath, ">"):
		rest := virtualPath[1:]
		name, suffix, _ := strings.Cut(rest, "/")
		base, ok := f.specials[name]
		if !ok || base == "" {
			return "", errkind.New(errkind.NotFound, "vfs", "special directory "+name+" not resolved")
		}
		return path.Join(base, suffix), nil
	default:
		return virtualPath, nil
	}
}

// AddDataDirectory registers dd as a new mount. Mounts are probed for
// reads in reverse-registration order (most recently added wins), matching
// the override semantics of a patch/mod directory layered over a base.
func (f *FS) AddDataDirectory(dd DataDir) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.mounts = append(f.mounts, &mount{dd: dd, order: f.seq, redirect: map[string]string{}})
}

// RemoveDataDirectoryGroup unmounts every DataDir registered with the
// given group name.
func (f *FS) RemoveDataDirectoryGroup(group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.mounts[:0]
	for _, m := range f.mounts {
		if m.dd.Group() != group {
			kept = append(kept, m)
		}
	}
	f.mounts = kept
}

// SetRedirect registers an asset-GUID to virtual-path mapping owned by
// the mount with the given root name.
func (f *FS) SetRedirect(rootName, guid, targetPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mounts {
		if m.dd.Root() == rootName {
			m.redirect[guid] = targetPath
			return
		}
	}
}

// mountsReverse returns the registered mounts, most-recently-added first.
func (f *FS) mountsReverse() []*mount {
	out := make([]*mount, len(f.mounts))
	for i, m := range f.mounts {
		out[len(f.mounts)-1-i] = m
	}
	return out
}

// resolveWithin applies GUID redirection (if virtualPath looks like a UUID and
// a mount owns a redirect for it) and returns the path to actually look
// up within each mount.
func (f *FS) resolveWithin(m *mount, virtualPath string) string {
	if uuidPattern.MatchString(virtualPath) {
		if target, ok := m.redirect[virtualPath]; ok {
			return cleanPath(target)
		}
	}
	return cleanPath(virtualPath)
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))[1:]
}

// target splits a ":rootName/..." path into the root it pins the lookup
// to and the path within that mount. Paths with no mount prefix return
// an empty root, meaning "probe every mount".
func target(virtualPath string) (root, rest string) {
	if strings.HasPrefix(virtualPath, ":") {
		root, rest, _ = strings.Cut(virtualPath[1:], "/")
		return root, rest
	}
	return "", virtualPath
}

// OpenFileToRead probes mounts in reverse-registration order and opens
// the first that holds virtualPath. A ":rootName/..." path probes only
// the named mount.
func (f *FS) OpenFileToRead(virtualPath string) (io.ReadCloser, error) {
	root, _ := target(virtualPath)
	resolved, err := f.ResolveSpecialDirectory(virtualPath)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	mounts := f.mountsReverse()
	f.mu.RUnlock()
	for _, m := range mounts {
		if root != "" && m.dd.Root() != root {
			continue
		}
		p := f.resolveWithin(m, resolved)
		if m.dd.Exists(p) {
			return m.dd.OpenRead(p)
		}
	}
	return nil, errkind.New(errkind.NotFound, "vfs", "file not found in any mount: "+virtualPath)
}

// OpenFileToWrite opens virtualPath for writing in the first mount (most
// recently registered first) that both holds the path's root and allows
// writes, rejecting paths that would escape the mount root.
func (f *FS) OpenFileToWrite(virtualPath string) (io.WriteCloser, error) {
	resolved, err := f.ResolveSpecialDirectory(virtualPath)
	if err != nil {
		return nil, err
	}
	if strings.Contains(resolved, "..") {
		return nil, errkind.New(errkind.Invalid, "vfs", "write path escapes mount root: "+virtualPath)
	}
	root, _ := target(virtualPath)
	f.mu.RLock()
	mounts := f.mountsReverse()
	f.mu.RUnlock()
	for _, m := range mounts {
		if m.dd.Usage() != AllowWrites {
			continue
		}
		if root != "" && m.dd.Root() != root {
			continue
		}
		p := f.resolveWithin(m, resolved)
		return m.dd.OpenWrite(p)
	}
	return nil, errkind.New(errkind.Conflict, "vfs", "no writable mount for "+virtualPath)
}

// ExistsFile reports whether virtualPath resolves within any mount.
func (f *FS) ExistsFile(virtualPath string) bool {
	root, _ := target(virtualPath)
	resolved, err := f.ResolveSpecialDirectory(virtualPath)
	if err != nil {
		return false
	}
	f.mu.RLock()
	mounts := f.mountsReverse()
	f.mu.RUnlock()
	for _, m := range mounts {
		if root != "" && m.dd.Root() != root {
			continue
		}
		if m.dd.Exists(f.resolveWithin(m, resolved)) {
			return true
		}
	}
	return false
}

// GetFileStats returns Stats for the first mount that holds virtualPath.
func (f *FS) GetFileStats(virtualPath string) (Stats, error) {
	root, _ := target(virtualPath)
	resolved, err := f.ResolveSpecialDirectory(virtualPath)
	if err != nil {
		return Stats{}, err
	}
	f.mu.RLock()
	mounts := f.mountsReverse()
	f.mu.RUnlock()
	for _, m := range mounts {
		if root != "" && m.dd.Root() != root {
			continue
		}
		p := f.resolveWithin(m, resolved)
		if m.dd.Exists(p) {
			return m.dd.Stat(p)
		}
	}
	return Stats{}, errkind.New(errkind.NotFound, "vfs", "no stats, file not found: "+virtualPath)
}

// List lists mounted root names in sorted order, for diagnostics.
func (f *FS) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.mounts))
	for _, m := range f.mounts {
		out = append(out, m.dd.Root())
	}
	sort.Strings(out)
	return out
}

var _ fs.FS = (*adapter)(nil)

// adapter lets an *FS be used anywhere an io/fs.FS is expected (eg
// http.FileServer, text/template.ParseFS) without exposing mount/write
// semantics to that consumer.
type adapter struct{ f *FS }

// Adapter returns a read-only io/fs.FS view of f.
func Adapter(f *FS) fs.FS { return &adapter{f: f} }

func (a *adapter) Open(name string) (fs.File, error) {
	rc, err := a.f.OpenFileToRead(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	st, statErr := a.f.GetFileStats(name)
	return &adapterFile{ReadCloser: rc, name: path.Base(name), size: st.Size, modTime: st.ModTime, statErr: statErr}, nil
}

type adapterFile struct {
	io.ReadCloser
	name    string
	size    int64
	modTime time.Time
	statErr error
}

func (a *adapterFile) Stat() (fs.FileInfo, error) { return fileInfo{a.name, a.size, a.modTime}, a.statErr }

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.size }
func (fi fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi fileInfo) ModTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return nil }
