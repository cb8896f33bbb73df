// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package archive backs a read-only mount with a single indexed file:
// [blob][table-of-contents]. The custom TOC lets each entry be stored
// uncompressed or zstd-compressed, with pooled readers per mode, where
// a zip container would pin every entry to deflate.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/forgelogic/core/errkind"
	"github.com/forgelogic/core/vfs"
)

// Compression identifies how a TOC entry's bytes are stored in the blob.
type Compression uint8

const (
	Uncompressed Compression = iota
	Zstd
)

// entry is one TOC record: {path-string-index, offset, stored-size,
// uncompressed-size, compression}.
type entry struct {
	path             string
	offset           uint64
	storedSize       uint64
	uncompressedSize uint64
	compression      Compression
}

const magic = "FGAR" // Forgelogic Archive.

var _ vfs.DataDir = (*Archive)(nil)

// Archive is an opened, indexed archive file serving as a read-only
// vfs.DataDir.
type Archive struct {
	root    string
	group   string
	f       *os.File
	modTime time.Time
	toc     map[string]entry

	mu    sync.Mutex
	pools map[Compression]*sync.Pool
}

// Open reads the TOC at the tail of path and returns a ready Archive.
func Open(rootName, group, filePath string) (*Archive, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errkind.Wrap(errkind.NotFound, "archive", "open "+filePath, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errkind.Wrap(errkind.IO, "archive", "stat "+filePath, err)
	}
	toc, err := readTOC(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	a := &Archive{
		root: rootName, group: group, f: f, modTime: fi.ModTime(), toc: toc,
		pools: map[Compression]*sync.Pool{},
	}
	a.pools[Uncompressed] = &sync.Pool{New: func() any { return new(rawReader) }}
	a.pools[Zstd] = &sync.Pool{New: func() any {
		d, _ := zstd.NewReader(nil)
		return d
	}}
	return a, nil
}

// readTOC parses the trailing table-of-contents: magic, entry count, then
// entries of {path-index u32, offset u64, stored-size u64, uncompressed
// u64, compression u8} followed by a flat null-joined string table.
func readTOC(f *os.File, size int64) (map[string]entry, error) {
	if size < 16 {
		return nil, errkind.New(errkind.Invalid, "archive", "file too small to hold a table of contents")
	}
	var tail [12]byte // tocOffset(8) + tocSize(4)
	if _, err := f.ReadAt(tail[:], size-12); err != nil {
		return nil, errkind.Wrap(errkind.IO, "archive", "read toc trailer", err)
	}
	tocOffset := binary.LittleEndian.Uint64(tail[0:8])
	tocSize := binary.LittleEndian.Uint32(tail[8:12])
	buf := make([]byte, tocSize)
	if _, err := f.ReadAt(buf, int64(tocOffset)); err != nil {
		return nil, errkind.Wrap(errkind.IO, "archive", "read toc", err)
	}
	r := bytes.NewReader(buf)
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil || string(hdr[:]) != magic {
		return nil, errkind.New(errkind.Invalid, "archive", "bad archive magic")
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc count", err)
	}
	type rawEntry struct {
		PathIdx          uint32
		Offset           uint64
		StoredSize       uint64
		UncompressedSize uint64
		Compression      uint8
	}
	raws := make([]rawEntry, count)
	for i := range raws {
		if err := binary.Read(r, binary.LittleEndian, &raws[i].PathIdx); err != nil {
			return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc entry", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &raws[i].Offset); err != nil {
			return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc entry", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &raws[i].StoredSize); err != nil {
			return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc entry", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &raws[i].UncompressedSize); err != nil {
			return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc entry", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &raws[i].Compression); err != nil {
			return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc entry", err)
		}
	}
	strTable, err := io.ReadAll(r)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, "archive", "read toc string table", err)
	}
	names := strings.Split(string(strTable), "\x00")
	toc := make(map[string]entry, count)
	for _, re := range raws {
		if int(re.PathIdx) >= len(names) {
			return nil, errkind.New(errkind.Invalid, "archive", "toc path index out of range")
		}
		p := makeCleanPath(names[re.PathIdx])
		toc[p] = entry{
			path: p, offset: re.Offset, storedSize: re.StoredSize,
			uncompressedSize: re.UncompressedSize, compression: Compression(re.Compression),
		}
	}
	return toc, nil
}

// makeCleanPath normalizes a TOC key to forward slashes with no leading
// slash, matching the lookup convention entries were written under.
func makeCleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (a *Archive) Root() string       { return a.root }
func (a *Archive) Group() string      { return a.group }
func (a *Archive) Usage() vfs.Usage   { return vfs.ReadOnly }
func (a *Archive) Exists(p string) bool {
	_, ok := a.toc[makeCleanPath(p)]
	return ok
}

func (a *Archive) Stat(p string) (vfs.Stats, error) {
	e, ok := a.toc[makeCleanPath(p)]
	if !ok {
		return vfs.Stats{}, errkind.New(errkind.NotFound, "archive", "no such entry: "+p)
	}
	return vfs.Stats{
		IsDir: false, Size: int64(e.uncompressedSize), ModTime: a.modTime,
		Name: path.Base(e.path), ParentOf: path.Dir(e.path),
	}, nil
}

// OpenWrite always fails: archives are shared, read-only mounts; exclusive
// access is rejected.
func (a *Archive) OpenWrite(string) (io.WriteCloser, error) {
	return nil, errkind.New(errkind.Conflict, "archive", "archive mounts are read-only")
}

// OpenRead pops a pooled reader for the entry's compression mode and
// wraps a bounded view of the blob at its stored offset/size.
func (a *Archive) OpenRead(p string) (io.ReadCloser, error) {
	e, ok := a.toc[makeCleanPath(p)]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "archive", "no such entry: "+p)
	}
	section := io.NewSectionReader(a.f, int64(e.offset), int64(e.storedSize))
	switch e.compression {
	case Uncompressed:
		rr := a.pools[Uncompressed].Get().(*rawReader)
		rr.section = section
		rr.onClose = func() { a.pools[Uncompressed].Put(rr) }
		return rr, nil
	case Zstd:
		dec := a.pools[Zstd].Get().(*zstd.Decoder)
		if err := dec.Reset(section); err != nil {
			a.pools[Zstd].Put(dec)
			return nil, errkind.Wrap(errkind.IO, "archive", "reset zstd reader for "+p, err)
		}
		return &zstdReader{Decoder: dec, onClose: func() { a.pools[Zstd].Put(dec) }}, nil
	default:
		return nil, errkind.New(errkind.Invalid, "archive", fmt.Sprintf("unknown compression mode %d for %s", e.compression, p))
	}
}

// Close releases the underlying archive file handle.
func (a *Archive) Close() error { return a.f.Close() }

// rawReader serves an uncompressed entry directly from its bounded
// section, returning itself to the pool on Close.
type rawReader struct {
	section *io.SectionReader
	onClose func()
}

func (r *rawReader) Read(p []byte) (int, error) { return r.section.Read(p) }
func (r *rawReader) Close() error               { r.onClose(); return nil }

// zstdReader wraps a pooled *zstd.Decoder reset onto a fresh section for
// one Zstd-compressed entry, returning the decoder to the pool on Close.
type zstdReader struct {
	*zstd.Decoder
	onClose func()
}

func (z *zstdReader) Close() error { z.onClose(); return nil }
