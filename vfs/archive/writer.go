// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package archive

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/forgelogic/core/errkind"
)

// Writer builds an archive file one entry at a time, then finalizes the
// table of contents at Close.
type Writer struct {
	f       *os.File
	offset  uint64
	entries []entry
}

// Create opens path for writing a new archive.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "archive", "create "+path, err)
	}
	return &Writer{f: f}, nil
}

// Add writes data under virtualPath, optionally zstd-compressing it.
func (w *Writer) Add(virtualPath string, data []byte, compress Compression) error {
	stored := data
	if compress == Zstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errkind.Wrap(errkind.IO, "archive", "new zstd encoder", err)
		}
		stored = enc.EncodeAll(data, nil)
		enc.Close()
	}
	n, err := w.f.Write(stored)
	if err != nil {
		return errkind.Wrap(errkind.IO, "archive", "write entry "+virtualPath, err)
	}
	w.entries = append(w.entries, entry{
		path: makeCleanPath(virtualPath), offset: w.offset, storedSize: uint64(n),
		uncompressedSize: uint64(len(data)), compression: compress,
	})
	w.offset += uint64(n)
	return nil
}

// Close writes the table of contents and closes the underlying file.
func (w *Writer) Close() error {
	var strs strings.Builder
	idx := make([]uint32, len(w.entries))
	for i, e := range w.entries {
		idx[i] = uint32(i)
		strs.WriteString(e.path)
		strs.WriteByte(0)
	}

	var toc bytes.Buffer
	toc.WriteString(magic)
	binary.Write(&toc, binary.LittleEndian, uint32(len(w.entries)))
	for i, e := range w.entries {
		binary.Write(&toc, binary.LittleEndian, idx[i])
		binary.Write(&toc, binary.LittleEndian, e.offset)
		binary.Write(&toc, binary.LittleEndian, e.storedSize)
		binary.Write(&toc, binary.LittleEndian, e.uncompressedSize)
		binary.Write(&toc, binary.LittleEndian, uint8(e.compression))
	}
	toc.WriteString(strs.String())

	tocOffset := w.offset
	if _, err := w.f.Write(toc.Bytes()); err != nil {
		return errkind.Wrap(errkind.IO, "archive", "write toc", err)
	}
	var tail [12]byte
	binary.LittleEndian.PutUint64(tail[0:8], tocOffset)
	binary.LittleEndian.PutUint32(tail[8:12], uint32(toc.Len()))
	if _, err := w.f.Write(tail[:]); err != nil {
		return errkind.Wrap(errkind.IO, "archive", "write toc trailer", err)
	}
	return w.f.Close()
}

var _ io.Closer = (*Writer)(nil)
