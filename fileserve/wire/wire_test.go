// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := EncodeMount(MountRequest{Path: "assets", RootName: "base", MountPointHash: "abc123", MountID: 7})
	if err := WriteFrame(&buf, MNT, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.ID != MNT {
		t.Fatalf("id = %q, want MNT", f.ID)
	}
	m, err := DecodeMount(f.Payload)
	if err != nil {
		t.Fatalf("decode mount: %v", err)
	}
	if m.Path != "assets" || m.RootName != "base" || m.MountPointHash != "abc123" || m.MountID != 7 {
		t.Fatalf("decoded mount = %+v", m)
	}
}

func TestReadRequestRoundTrip(t *testing.T) {
	var uuid [16]byte
	copy(uuid[:], "0123456789abcdef")
	want := ReadRequest{MountID: 3, ForceThisDir: 1, Path: "shaders/basic.fsh", RequestUUID: uuid, ClientTimestamp: 1234567890, ClientHash: 0xdeadbeef}
	got, err := DecodeRead(EncodeRead(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDownloadChunkRoundTrip(t *testing.T) {
	var uuid [16]byte
	copy(uuid[:], "fedcba9876543210")
	data := bytes.Repeat([]byte{0x42}, 100)
	want := DownloadChunk{UUID: uuid, ChunkSize: 100, TotalSize: 500, Data: data}
	got, err := DecodeDownloadChunk(EncodeDownloadChunk(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ChunkSize != want.ChunkSize || got.TotalSize != want.TotalSize || !bytes.Equal(got.Data, want.Data) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDownloadFinishedRoundTrip(t *testing.T) {
	var uuid [16]byte
	want := DownloadFinished{UUID: uuid, State: SameHash, ServerTimestamp: 42, ServerHash: 99, ResolvedMountID: 2}
	got, err := DecodeDownloadFinished(EncodeDownloadFinished(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestConnInfoRoundTrip(t *testing.T) {
	want := ConnInfo{Port: 9000, IPs: []string{"192.168.1.5", "10.0.0.2"}}
	got, err := DecodeConnInfo(EncodeConnInfo(want))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Port != want.Port || len(got.IPs) != 2 || got.IPs[0] != want.IPs[0] || got.IPs[1] != want.IPs[1] {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReadFrameRejectsUnknownGroup(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("XXXX")
	buf.WriteString("HELO")
	buf.Write([]byte{0, 0, 0, 0})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected error for unknown frame group")
	}
}
