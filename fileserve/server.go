// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// Package fileserve implements the development file-serve protocol: a
// server that exposes one or more mounted vfs.DataDirs to connected
// clients, and a client that mirrors them locally with a content-hash
// cache, so a target device can read a host machine's data dirs as if
// they were local mounts.
package fileserve

import (
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/forgelogic/core/errkind"
	"github.com/forgelogic/core/fileserve/wire"
	"github.com/forgelogic/core/vfs"
)

// Activity is a structured event the server publishes for UI/log
// consumers: connect/disconnect, mount/unmount, transfers, reloads.
type Activity struct {
	Kind     string // "connect", "disconnect", "mount", "unmount", "read", "upload", "delete", "reload"
	ClientID string
	Detail   string
}

// serverMount is one entry in a client's mount-id table: {client-path,
// server-path, root-name}.
type serverMount struct {
	clientPath string
	serverPath string
	rootName   string
}

// clientConn is per-connection state the server keeps for one client.
type clientConn struct {
	conn   net.Conn
	appID  string
	mounts map[uint16]serverMount
	mu     sync.Mutex
}

// Server is the symmetric side of the file-serve protocol: it answers
// mount/read/upload/delete requests against a vfs.FS and broadcasts
// reload-resources to all connected clients.
type Server struct {
	log      *slog.Logger
	fs       *vfs.FS
	activity chan Activity

	mu      sync.Mutex
	clients map[string]*clientConn
	ln      net.Listener
}

// NewServer creates a Server exposing fs's mounts.
func NewServer(fs *vfs.FS, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, fs: fs, clients: map[string]*clientConn{}, activity: make(chan Activity, 256)}
}

// Activities returns the server's structured-event channel.
func (s *Server) Activities() <-chan Activity { return s.activity }

func (s *Server) publish(a Activity) {
	select {
	case s.activity <- a:
	default:
		s.log.Warn("fileserve: activity channel full, dropping event", "kind", a.Kind)
	}
}

// ListenAndServe accepts client connections on addr until the listener
// is closed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errkind.Wrap(errkind.IO, "fileserve", "listen on "+addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return errkind.Wrap(errkind.IO, "fileserve", "accept", err)
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) serveConn(conn net.Conn) {
	id := conn.RemoteAddr().String()
	cc := &clientConn{conn: conn, mounts: map[uint16]serverMount{}}
	s.mu.Lock()
	s.clients[id] = cc
	s.mu.Unlock()
	s.publish(Activity{Kind: "connect", ClientID: id})
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		s.publish(Activity{Kind: "disconnect", ClientID: id})
	}()

	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		if err := s.handle(id, cc, f); err != nil {
			s.log.Warn("fileserve: request failed", "client", id, "msg", f.ID, "error", err)
		}
	}
}

func (s *Server) handle(clientID string, cc *clientConn, f wire.Frame) error {
	switch f.ID {
	case wire.HELO:
		return nil
	case wire.RUTR:
		return wire.WriteFrame(cc.conn, wire.YES, nil)
	case wire.MNT:
		return s.handleMount(clientID, cc, f.Payload)
	case wire.UMNT:
		return s.handleUnmount(clientID, cc, f.Payload)
	case wire.READ:
		return s.handleRead(clientID, cc, f.Payload)
	case wire.UPLH:
		return s.handleUploadHeader(clientID, cc, f.Payload)
	case wire.UPLD:
		return s.handleUploadChunk(cc, f.Payload)
	case wire.UPLF:
		return s.handleUploadFinish(clientID, cc, f.Payload)
	case wire.DELF:
		return s.handleDelete(clientID, f.Payload)
	default:
		s.log.Warn("fileserve: unhandled message", "id", f.ID)
		return nil
	}
}

func (s *Server) handleMount(clientID string, cc *clientConn, payload []byte) error {
	req, err := wire.DecodeMount(payload)
	if err != nil {
		return err
	}
	serverPath, err := s.fs.ResolveSpecialDirectory(req.Path)
	if err != nil {
		return err
	}
	cc.mu.Lock()
	cc.mounts[req.MountID] = serverMount{clientPath: req.Path, serverPath: serverPath, rootName: req.RootName}
	cc.mu.Unlock()
	s.publish(Activity{Kind: "mount", ClientID: clientID, Detail: req.RootName})
	return nil
}

func (s *Server) handleUnmount(clientID string, cc *clientConn, payload []byte) error {
	mountID, err := wire.DecodeUnmount(payload)
	if err != nil {
		return err
	}
	cc.mu.Lock()
	delete(cc.mounts, mountID)
	cc.mu.Unlock()
	s.publish(Activity{Kind: "unmount", ClientID: clientID})
	return nil
}

func (s *Server) handleRead(clientID string, cc *clientConn, payload []byte) error {
	req, err := wire.DecodeRead(payload)
	if err != nil {
		return err
	}
	s.publish(Activity{Kind: "read", ClientID: clientID, Detail: req.Path})

	rc, statErr := s.fs.OpenFileToRead(req.Path)
	if statErr != nil {
		// A zero timestamp+hash means the client has no cached copy either.
		state := wire.NonExistant
		if req.ClientTimestamp == 0 && req.ClientHash == 0 {
			state = wire.NonExistantEither
		}
		return wire.WriteFrame(cc.conn, wire.DWNF, wire.EncodeDownloadFinished(wire.DownloadFinished{
			UUID: req.RequestUUID, State: state, ResolvedMountID: req.MountID,
		}))
	}
	defer rc.Close()

	st, _ := s.fs.GetFileStats(req.Path)
	content, readErr := io.ReadAll(rc)
	if readErr != nil {
		return errkind.Wrap(errkind.IO, "fileserve", "read file content", readErr)
	}
	hash := xxhash.Sum64(content)

	state := wire.Different
	switch {
	case st.ModTime.Unix() == req.ClientTimestamp:
		state = wire.SameTimestamp
	case hash == req.ClientHash:
		state = wire.SameHash
	}

	if state == wire.SameTimestamp {
		return wire.WriteFrame(cc.conn, wire.DWNF, wire.EncodeDownloadFinished(wire.DownloadFinished{
			UUID: req.RequestUUID, State: state, ServerTimestamp: st.ModTime.Unix(), ServerHash: hash, ResolvedMountID: req.MountID,
		}))
	}

	if state == wire.Different {
		for off := 0; off < len(content); off += wire.ChunkSize {
			end := off + wire.ChunkSize
			if end > len(content) {
				end = len(content)
			}
			chunk := wire.DownloadChunk{UUID: req.RequestUUID, ChunkSize: uint16(end - off), TotalSize: uint32(len(content)), Data: content[off:end]}
			if err := wire.WriteFrame(cc.conn, wire.DWNL, wire.EncodeDownloadChunk(chunk)); err != nil {
				return err
			}
		}
	}

	return wire.WriteFrame(cc.conn, wire.DWNF, wire.EncodeDownloadFinished(wire.DownloadFinished{
		UUID: req.RequestUUID, State: state, ServerTimestamp: st.ModTime.Unix(), ServerHash: hash, ResolvedMountID: req.MountID,
	}))
}

// pendingUpload accumulates chunks for an in-flight UPLH/UPLD*/UPLF
// sequence, keyed by request uuid.
type pendingUpload struct {
	mountID uint16
	path    string
	data    []byte
}

var uploadsMu sync.Mutex
var uploads = map[[16]byte]*pendingUpload{}

func (s *Server) handleUploadHeader(clientID string, cc *clientConn, payload []byte) error {
	h, err := wire.DecodeUploadHeader(payload)
	if err != nil {
		return err
	}
	uploadsMu.Lock()
	uploads[h.UUID] = &pendingUpload{mountID: h.MountID, path: h.Path, data: make([]byte, 0, h.TotalSize)}
	uploadsMu.Unlock()
	return nil
}

func (s *Server) handleUploadChunk(cc *clientConn, payload []byte) error {
	c, err := wire.DecodeUploadChunk(payload)
	if err != nil {
		return err
	}
	uploadsMu.Lock()
	defer uploadsMu.Unlock()
	if p, ok := uploads[c.UUID]; ok {
		p.data = append(p.data, c.Data...)
	}
	return nil
}

func (s *Server) handleUploadFinish(clientID string, cc *clientConn, payload []byte) error {
	f, err := wire.DecodeUploadFinish(payload)
	if err != nil {
		return err
	}
	uploadsMu.Lock()
	p, ok := uploads[f.UUID]
	delete(uploads, f.UUID)
	uploadsMu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, "fileserve", "upload finish with no matching header")
	}

	wc, err := s.fs.OpenFileToWrite(f.Path)
	if err != nil {
		return err
	}
	if _, err := wc.Write(p.data); err != nil {
		wc.Close()
		return errkind.Wrap(errkind.IO, "fileserve", "write uploaded file "+f.Path, err)
	}
	if err := wc.Close(); err != nil {
		return errkind.Wrap(errkind.IO, "fileserve", "close uploaded file "+f.Path, err)
	}

	s.publish(Activity{Kind: "upload", ClientID: clientID, Detail: f.Path})
	return wire.WriteFrame(cc.conn, wire.UACK, f.UUID[:])
}

func (s *Server) handleDelete(clientID string, payload []byte) error {
	d, err := wire.DecodeDeleteFile(payload)
	if err != nil {
		return err
	}
	resolved, err := s.fs.ResolveSpecialDirectory(d.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return errkind.Wrap(errkind.IO, "fileserve", "delete "+d.Path, err)
	}
	s.publish(Activity{Kind: "delete", ClientID: clientID, Detail: d.Path})
	return nil
}

// BroadcastReload sends 'RLDR' to every connected client.
func (s *Server) BroadcastReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cc := range s.clients {
		if err := wire.WriteFrame(cc.conn, wire.RLDR, nil); err != nil {
			s.log.Warn("fileserve: reload broadcast failed", "client", id, "error", err)
		}
	}
	s.publish(Activity{Kind: "reload"})
}
