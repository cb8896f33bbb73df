// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package vfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/forgelogic/core/errkind"
)

// osDataDir serves a DataDir straight off the local filesystem.
type osDataDir struct {
	root  string // rootName this mount answers to.
	group string
	base  string // absolute directory on disk.
	usage Usage
}

// NewOSDataDir mounts the directory at base under rootName/group.
func NewOSDataDir(rootName, group, base string, usage Usage) DataDir {
	return &osDataDir{root: rootName, group: group, base: base, usage: usage}
}

func (d *osDataDir) Root() string  { return d.root }
func (d *osDataDir) Group() string { return d.group }
func (d *osDataDir) Usage() Usage  { return d.usage }

func (d *osDataDir) resolve(virtualPath string) string {
	return filepath.Join(d.base, filepath.FromSlash(virtualPath))
}

func (d *osDataDir) OpenRead(virtualPath string) (io.ReadCloser, error) {
	f, err := os.Open(d.resolve(virtualPath))
	if err != nil {
		return nil, errkind.Wrap(errkind.NotFound, "vfs", "open "+virtualPath, err)
	}
	return f, nil
}

func (d *osDataDir) OpenWrite(virtualPath string) (io.WriteCloser, error) {
	if d.usage != AllowWrites {
		return nil, errkind.New(errkind.Conflict, "vfs", "mount "+d.root+" is read-only")
	}
	p := d.resolve(virtualPath)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, errkind.Wrap(errkind.IO, "vfs", "mkdir for "+virtualPath, err)
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "vfs", "create "+virtualPath, err)
	}
	return f, nil
}

func (d *osDataDir) Exists(virtualPath string) bool {
	_, err := os.Stat(d.resolve(virtualPath))
	return err == nil
}

func (d *osDataDir) Stat(virtualPath string) (Stats, error) {
	fi, err := os.Stat(d.resolve(virtualPath))
	if err != nil {
		return Stats{}, errkind.Wrap(errkind.NotFound, "vfs", "stat "+virtualPath, err)
	}
	return Stats{
		IsDir:    fi.IsDir(),
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
		Name:     fi.Name(),
		ParentOf: filepath.Dir(virtualPath),
	}, nil
}
