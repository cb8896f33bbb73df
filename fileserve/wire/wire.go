// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package wire encodes and decodes the file-serve frame protocol: every
// message is a 4-char group, a 4-char id, and a payload. It is the
// marshalling layer shared by fileserve's client and server, kept
// separate so neither side depends on the other's connection handling.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/forgelogic/core/errkind"
)

// Group is the protocol namespace every frame is stamped with.
const Group = "FSRV"

// ID identifies a message's payload shape.
type ID string

const (
	HELO ID = "HELO" // empty keep-alive.
	RUTR ID = "RUTR" // discovery ping.
	YES  ID = " YES" // discovery pong.
	MNT  ID = " MNT" // client->server mount.
	UMNT ID = "UMNT" // unmount.
	READ ID = "READ" // download request.
	DWNL ID = "DWNL" // download chunk.
	DWNF ID = "DWNF" // download finished / file-state.
	UPLH ID = "UPLH" // upload begin.
	UPLD ID = "UPLD" // upload chunk.
	UPLF ID = "UPLF" // upload finish.
	UACK ID = "UACK" // upload acknowledged.
	DELF ID = "DELF" // delete file.
	RLDR ID = "RLDR" // broadcast reload.
	NSIP ID = "NSIP" // connection-info beacon query.
	MYIP ID = "MYIP" // connection-info beacon reply.
)

// FileState is the server's verdict on a client's cached copy of a file.
type FileState int8

const (
	SameTimestamp     FileState = 0
	SameHash          FileState = 1
	Different         FileState = 2
	NonExistant       FileState = 3 // file missing on the server.
	NonExistantEither FileState = 4 // file missing on both sides.
)

// ChunkSize is the fixed transfer unit for download and upload bodies.
const ChunkSize = 1024

// Frame is one decoded group+id+payload message.
type Frame struct {
	Group   string
	ID      ID
	Payload []byte
}

// WriteFrame writes group(4) + id(4) + len(u32) + payload to w.
func WriteFrame(w io.Writer, id ID, payload []byte) error {
	var hdr [12]byte
	copy(hdr[0:4], Group)
	copy(hdr[4:8], string(id))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errkind.Wrap(errkind.IO, "fileserve/wire", "write frame header", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errkind.Wrap(errkind.IO, "fileserve/wire", "write frame payload", err)
		}
	}
	return nil
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, errkind.Wrap(errkind.IO, "fileserve/wire", "read frame header", err)
	}
	group := string(hdr[0:4])
	if group != Group {
		return Frame{}, errkind.New(errkind.Invalid, "fileserve/wire", fmt.Sprintf("unknown frame group %q", group))
	}
	id := ID(hdr[4:8])
	size := binary.LittleEndian.Uint32(hdr[8:12])
	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, errkind.Wrap(errkind.IO, "fileserve/wire", "read frame payload", err)
		}
	}
	return Frame{Group: group, ID: id, Payload: payload}, nil
}

// --- payload encodings -----------------------------------------------------

// putString writes a u16 length-prefixed string.
func putString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// MountRequest is the ' MNT' payload.
type MountRequest struct {
	Path           string
	RootName       string
	MountPointHash string
	MountID        uint16
}

func EncodeMount(m MountRequest) []byte {
	var buf bytes.Buffer
	putString(&buf, m.Path)
	putString(&buf, m.RootName)
	putString(&buf, m.MountPointHash)
	binary.Write(&buf, binary.LittleEndian, m.MountID)
	return buf.Bytes()
}

func DecodeMount(payload []byte) (MountRequest, error) {
	r := bytes.NewReader(payload)
	var m MountRequest
	var err error
	if m.Path, err = getString(r); err != nil {
		return m, wireErr(err)
	}
	if m.RootName, err = getString(r); err != nil {
		return m, wireErr(err)
	}
	if m.MountPointHash, err = getString(r); err != nil {
		return m, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &m.MountID); err != nil {
		return m, wireErr(err)
	}
	return m, nil
}

// Unmount is the 'UMNT' payload: just a mount id.
func EncodeUnmount(mountID uint16) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, mountID)
	return buf.Bytes()
}

func DecodeUnmount(payload []byte) (uint16, error) {
	r := bytes.NewReader(payload)
	var id uint16
	err := binary.Read(r, binary.LittleEndian, &id)
	return id, wireErr(err)
}

// ReadRequest is the 'READ' payload.
type ReadRequest struct {
	MountID         uint16
	ForceThisDir    uint8
	Path            string
	RequestUUID     [16]byte
	ClientTimestamp int64
	ClientHash      uint64
}

func EncodeRead(r ReadRequest) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, r.MountID)
	binary.Write(&buf, binary.LittleEndian, r.ForceThisDir)
	putString(&buf, r.Path)
	buf.Write(r.RequestUUID[:])
	binary.Write(&buf, binary.LittleEndian, r.ClientTimestamp)
	binary.Write(&buf, binary.LittleEndian, r.ClientHash)
	return buf.Bytes()
}

func DecodeRead(payload []byte) (ReadRequest, error) {
	r := bytes.NewReader(payload)
	var rr ReadRequest
	var err error
	if err = binary.Read(r, binary.LittleEndian, &rr.MountID); err != nil {
		return rr, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &rr.ForceThisDir); err != nil {
		return rr, wireErr(err)
	}
	if rr.Path, err = getString(r); err != nil {
		return rr, wireErr(err)
	}
	if _, err = io.ReadFull(r, rr.RequestUUID[:]); err != nil {
		return rr, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &rr.ClientTimestamp); err != nil {
		return rr, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &rr.ClientHash); err != nil {
		return rr, wireErr(err)
	}
	return rr, nil
}

// DownloadChunk is one 'DWNL' message.
type DownloadChunk struct {
	UUID      [16]byte
	ChunkSize uint16
	TotalSize uint32
	Data      []byte
}

func EncodeDownloadChunk(c DownloadChunk) []byte {
	var buf bytes.Buffer
	buf.Write(c.UUID[:])
	binary.Write(&buf, binary.LittleEndian, c.ChunkSize)
	binary.Write(&buf, binary.LittleEndian, c.TotalSize)
	buf.Write(c.Data)
	return buf.Bytes()
}

func DecodeDownloadChunk(payload []byte) (DownloadChunk, error) {
	r := bytes.NewReader(payload)
	var c DownloadChunk
	if _, err := io.ReadFull(r, c.UUID[:]); err != nil {
		return c, wireErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &c.ChunkSize); err != nil {
		return c, wireErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &c.TotalSize); err != nil {
		return c, wireErr(err)
	}
	c.Data = make([]byte, c.ChunkSize)
	if _, err := io.ReadFull(r, c.Data); err != nil {
		return c, wireErr(err)
	}
	return c, nil
}

// DownloadFinished is the 'DWNF' payload.
type DownloadFinished struct {
	UUID            [16]byte
	State           FileState
	ServerTimestamp int64
	ServerHash      uint64
	ResolvedMountID uint16
}

func EncodeDownloadFinished(f DownloadFinished) []byte {
	var buf bytes.Buffer
	buf.Write(f.UUID[:])
	binary.Write(&buf, binary.LittleEndian, int8(f.State))
	binary.Write(&buf, binary.LittleEndian, f.ServerTimestamp)
	binary.Write(&buf, binary.LittleEndian, f.ServerHash)
	binary.Write(&buf, binary.LittleEndian, f.ResolvedMountID)
	return buf.Bytes()
}

func DecodeDownloadFinished(payload []byte) (DownloadFinished, error) {
	r := bytes.NewReader(payload)
	var f DownloadFinished
	var state int8
	if _, err := io.ReadFull(r, f.UUID[:]); err != nil {
		return f, wireErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &state); err != nil {
		return f, wireErr(err)
	}
	f.State = FileState(state)
	if err := binary.Read(r, binary.LittleEndian, &f.ServerTimestamp); err != nil {
		return f, wireErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &f.ServerHash); err != nil {
		return f, wireErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &f.ResolvedMountID); err != nil {
		return f, wireErr(err)
	}
	return f, nil
}

// UploadHeader is the 'UPLH' payload.
type UploadHeader struct {
	UUID      [16]byte
	TotalSize uint32
	MountID   uint16
	Path      string
}

func EncodeUploadHeader(h UploadHeader) []byte {
	var buf bytes.Buffer
	buf.Write(h.UUID[:])
	binary.Write(&buf, binary.LittleEndian, h.TotalSize)
	binary.Write(&buf, binary.LittleEndian, h.MountID)
	putString(&buf, h.Path)
	return buf.Bytes()
}

func DecodeUploadHeader(payload []byte) (UploadHeader, error) {
	r := bytes.NewReader(payload)
	var h UploadHeader
	var err error
	if _, err = io.ReadFull(r, h.UUID[:]); err != nil {
		return h, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &h.TotalSize); err != nil {
		return h, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &h.MountID); err != nil {
		return h, wireErr(err)
	}
	if h.Path, err = getString(r); err != nil {
		return h, wireErr(err)
	}
	return h, nil
}

// UploadChunk is one 'UPLD' message.
type UploadChunk struct {
	UUID      [16]byte
	ChunkSize uint16
	Data      []byte
}

func EncodeUploadChunk(c UploadChunk) []byte {
	var buf bytes.Buffer
	buf.Write(c.UUID[:])
	binary.Write(&buf, binary.LittleEndian, c.ChunkSize)
	buf.Write(c.Data)
	return buf.Bytes()
}

func DecodeUploadChunk(payload []byte) (UploadChunk, error) {
	r := bytes.NewReader(payload)
	var c UploadChunk
	if _, err := io.ReadFull(r, c.UUID[:]); err != nil {
		return c, wireErr(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &c.ChunkSize); err != nil {
		return c, wireErr(err)
	}
	c.Data = make([]byte, c.ChunkSize)
	if _, err := io.ReadFull(r, c.Data); err != nil {
		return c, wireErr(err)
	}
	return c, nil
}

// UploadFinish is the 'UPLF' payload.
type UploadFinish struct {
	UUID    [16]byte
	MountID uint16
	Path    string
}

func EncodeUploadFinish(f UploadFinish) []byte {
	var buf bytes.Buffer
	buf.Write(f.UUID[:])
	binary.Write(&buf, binary.LittleEndian, f.MountID)
	putString(&buf, f.Path)
	return buf.Bytes()
}

func DecodeUploadFinish(payload []byte) (UploadFinish, error) {
	r := bytes.NewReader(payload)
	var f UploadFinish
	var err error
	if _, err = io.ReadFull(r, f.UUID[:]); err != nil {
		return f, wireErr(err)
	}
	if err = binary.Read(r, binary.LittleEndian, &f.MountID); err != nil {
		return f, wireErr(err)
	}
	if f.Path, err = getString(r); err != nil {
		return f, wireErr(err)
	}
	return f, nil
}

// DeleteFile is the 'DELF' payload.
type DeleteFile struct {
	MountID uint16
	Path    string
}

func EncodeDeleteFile(d DeleteFile) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, d.MountID)
	putString(&buf, d.Path)
	return buf.Bytes()
}

func DecodeDeleteFile(payload []byte) (DeleteFile, error) {
	r := bytes.NewReader(payload)
	var d DeleteFile
	var err error
	if err = binary.Read(r, binary.LittleEndian, &d.MountID); err != nil {
		return d, wireErr(err)
	}
	if d.Path, err = getString(r); err != nil {
		return d, wireErr(err)
	}
	return d, nil
}

// ConnInfo is the 'MYIP' beacon reply payload.
type ConnInfo struct {
	Port uint16
	IPs  []string
}

func EncodeConnInfo(c ConnInfo) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, c.Port)
	binary.Write(&buf, binary.LittleEndian, uint8(len(c.IPs)))
	for _, ip := range c.IPs {
		putString(&buf, ip)
	}
	return buf.Bytes()
}

func DecodeConnInfo(payload []byte) (ConnInfo, error) {
	r := bytes.NewReader(payload)
	var c ConnInfo
	if err := binary.Read(r, binary.LittleEndian, &c.Port); err != nil {
		return c, wireErr(err)
	}
	var n uint8
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return c, wireErr(err)
	}
	for i := 0; i < int(n); i++ {
		ip, err := getString(r)
		if err != nil {
			return c, wireErr(err)
		}
		c.IPs = append(c.IPs, ip)
	}
	return c, nil
}

func wireErr(err error) error {
	if err == nil {
		return nil
	}
	return errkind.Wrap(errkind.Invalid, "fileserve/wire", "decode payload", err)
}
