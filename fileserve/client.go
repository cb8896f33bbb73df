// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package fileserve

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/forgelogic/core/errkind"
	"github.com/forgelogic/core/fileserve/wire"
	"github.com/forgelogic/core/vfs"
)

// cacheStatusTTL is how long a cache-status answer is trusted before the
// client re-asks the server.
const cacheStatusTTL = 5 * time.Second

// cacheStatus is the memoized answer to "is my local copy current".
type cacheStatus struct {
	state   wire.FileState
	checked time.Time
}

// clientMount mirrors one remote data dir: its local cache-content and
// cache-meta directories plus the mount id the server assigned it.
type clientMount struct {
	mountID    uint16
	rootName   string
	remotePath string
	cacheDir   string // mirrored file content.
	metaDir    string // timestamp+hash sidecars, 16 bytes each.
}

// Client mirrors a remote host's data dirs locally, serving reads from an
// on-disk cache keyed by (timestamp, content-hash) and refreshed through
// the file-serve protocol.
type Client struct {
	log  *slog.Logger
	conn net.Conn
	r    *bufio.Reader

	mu      sync.Mutex
	mounts  map[string]*clientMount // rootName -> mount.
	nextID  uint16
	status  map[string]cacheStatus // virtualPath -> last-known state.
	pending map[[16]byte]chan wire.Frame
}

// DialOptions configures how the client locates a server, trying each
// non-empty source in order: an explicit address, a config-file address
// next to the running binary, a user-directory override, then UDP
// broadcast discovery.
type DialOptions struct {
	ServerAddr      string
	ConfigFilePath  string
	UserFilePath    string
	DiscoveryAddr   string // UDP broadcast address, eg "255.255.255.255:9001".
	DiscoveryWindow time.Duration
}

// resolveServerAddr applies the DialOptions preference order.
func resolveServerAddr(opts DialOptions) (string, error) {
	if opts.ServerAddr != "" {
		return opts.ServerAddr, nil
	}
	for _, p := range []string{opts.ConfigFilePath, opts.UserFilePath} {
		if p == "" {
			continue
		}
		if data, err := os.ReadFile(p); err == nil {
			if addr := trimmedFirstLine(data); addr != "" {
				return addr, nil
			}
		}
	}
	if opts.DiscoveryAddr != "" {
		if addr, err := discover(opts.DiscoveryAddr, opts.DiscoveryWindow); err == nil {
			return addr, nil
		}
	}
	return "", errkind.New(errkind.NotFound, "fileserve", "no server address resolved from any source")
}

func trimmedFirstLine(data []byte) string {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return string(data[:i])
		}
	}
	return string(data)
}

// discover sends an 'NSIP' query on broadcastAddr and waits up to window
// for a 'MYIP' reply, returning "host:port".
func discover(broadcastAddr string, window time.Duration) (string, error) {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	conn, err := net.Dial("udp", broadcastAddr)
	if err != nil {
		return "", errkind.Wrap(errkind.IO, "fileserve", "dial discovery broadcast", err)
	}
	defer conn.Close()
	if err := wire.WriteFrame(conn, wire.NSIP, nil); err != nil {
		return "", err
	}
	conn.SetReadDeadline(time.Now().Add(window))
	// UDP is message-oriented: read the whole reply datagram in one Read
	// call before handing it to the stream-style frame decoder.
	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		return "", errkind.Wrap(errkind.Timeout, "fileserve", "discovery handshake timed out", err)
	}
	f, err := wire.ReadFrame(bytes.NewReader(buf[:n]))
	if err != nil {
		return "", err
	}
	info, err := wire.DecodeConnInfo(f.Payload)
	if err != nil || len(info.IPs) == 0 {
		return "", errkind.New(errkind.NotFound, "fileserve", "discovery reply had no usable address")
	}
	return net.JoinHostPort(info.IPs[0], itoa(info.Port)), nil
}

func itoa(n uint16) string {
	if n == 0 {
		return "0"
	}
	var digits [5]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// Dial connects to a file-serve server resolved from opts.
func Dial(opts DialOptions, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	addr, err := resolveServerAddr(opts)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "fileserve", "dial "+addr, err)
	}
	c := &Client{
		log: log, conn: conn, r: bufio.NewReader(conn),
		mounts: map[string]*clientMount{}, status: map[string]cacheStatus{},
		pending: map[[16]byte]chan wire.Frame{},
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		f, err := wire.ReadFrame(c.r)
		if err != nil {
			return
		}
		switch f.ID {
		case wire.DWNL:
			ch, _ := wire.DecodeDownloadChunk(f.Payload)
			c.deliver(ch.UUID, f)
		case wire.DWNF:
			fin, _ := wire.DecodeDownloadFinished(f.Payload)
			c.deliver(fin.UUID, f)
		case wire.UACK:
			var uuidKey [16]byte
			copy(uuidKey[:], f.Payload)
			c.deliver(uuidKey, f)
		case wire.RLDR:
			c.mu.Lock()
			c.status = map[string]cacheStatus{}
			c.mu.Unlock()
		}
	}
}

func (c *Client) deliver(id [16]byte, f wire.Frame) {
	c.mu.Lock()
	ch := c.pending[id]
	c.mu.Unlock()
	if ch != nil {
		ch <- f
	}
}

func (c *Client) register(id [16]byte) chan wire.Frame {
	ch := make(chan wire.Frame, 256)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) unregister(id [16]byte) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Mount registers a remote root under rootName, mirrored locally under
// cacheRoot/{content,meta}/rootName.
func (c *Client) Mount(remotePath, rootName, cacheRoot string) error {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	cacheDir := filepath.Join(cacheRoot, "content", rootName)
	metaDir := filepath.Join(cacheRoot, "meta", rootName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return errkind.Wrap(errkind.IO, "fileserve", "create cache dir", err)
	}
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return errkind.Wrap(errkind.IO, "fileserve", "create cache-meta dir", err)
	}

	hash := xxhash.Sum64String(remotePath)
	payload := wire.EncodeMount(wire.MountRequest{Path: remotePath, RootName: rootName, MountPointHash: itoa64(hash), MountID: id})
	if err := wire.WriteFrame(c.conn, wire.MNT, payload); err != nil {
		return err
	}

	c.mu.Lock()
	c.mounts[rootName] = &clientMount{mountID: id, rootName: rootName, remotePath: remotePath, cacheDir: cacheDir, metaDir: metaDir}
	c.mu.Unlock()
	return nil
}

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// Unmount unregisters rootName both locally and with the server.
func (c *Client) Unmount(rootName string) error {
	c.mu.Lock()
	m, ok := c.mounts[rootName]
	delete(c.mounts, rootName)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return wire.WriteFrame(c.conn, wire.UMNT, wire.EncodeUnmount(m.mountID))
}

// metaSidecar is the 16-byte {i64 timestamp, u64 hash} cache-meta record.
type metaSidecar struct {
	timestamp int64
	hash      uint64
}

func readMeta(path string) (metaSidecar, bool) {
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 16 {
		return metaSidecar{}, false
	}
	var m metaSidecar
	m.timestamp = int64(le64(data[0:8]))
	m.hash = le64(data[8:16])
	return m, true
}

func writeMeta(path string, m metaSidecar) error {
	var data [16]byte
	putLE64(data[0:8], uint64(m.timestamp))
	putLE64(data[8:16], m.hash)
	return os.WriteFile(path, data[:], 0o644)
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// Get returns the current content of virtualPath under rootName, reading
// from the local cache when the server confirms it is current and
// downloading otherwise. Repeat calls within cacheStatusTTL skip the
// network round-trip entirely.
func (c *Client) Get(rootName, virtualPath string) ([]byte, error) {
	c.mu.Lock()
	m, ok := c.mounts[rootName]
	key := rootName + "/" + virtualPath
	cached, haveStatus := c.status[key]
	c.mu.Unlock()
	if !ok {
		return nil, errkind.New(errkind.NotFound, "fileserve", "no such mount: "+rootName)
	}

	contentPath := filepath.Join(m.cacheDir, filepath.FromSlash(virtualPath))
	metaPath := filepath.Join(m.metaDir, filepath.FromSlash(virtualPath)+".meta")

	// Within the TTL the last verdict stands: the content cache was
	// refreshed when that verdict arrived, so no round-trip is needed.
	if haveStatus && time.Since(cached.checked) < cacheStatusTTL {
		switch cached.state {
		case wire.NonExistant, wire.NonExistantEither:
			return nil, errkind.New(errkind.NotFound, "fileserve", virtualPath+" not found on server")
		default:
			if data, err := os.ReadFile(contentPath); err == nil {
				return data, nil
			}
		}
	}

	meta, _ := readMeta(metaPath)
	reqID := uuidBytes()
	ch := c.register(reqID)
	defer c.unregister(reqID)

	req := wire.EncodeRead(wire.ReadRequest{
		MountID: m.mountID, Path: virtualPath, RequestUUID: reqID,
		ClientTimestamp: meta.timestamp, ClientHash: meta.hash,
	})
	if err := wire.WriteFrame(c.conn, wire.READ, req); err != nil {
		return nil, err
	}

	var content []byte
	for {
		f := <-ch
		switch f.ID {
		case wire.DWNL:
			chunk, err := wire.DecodeDownloadChunk(f.Payload)
			if err != nil {
				return nil, err
			}
			content = append(content, chunk.Data...)
		case wire.DWNF:
			fin, err := wire.DecodeDownloadFinished(f.Payload)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			c.status[key] = cacheStatus{state: fin.State, checked: time.Now()}
			c.mu.Unlock()

			switch fin.State {
			case wire.NonExistantEither:
				// no writes.
				return nil, errkind.New(errkind.NotFound, "fileserve", virtualPath+" not found on either side")
			case wire.SameTimestamp:
				// no writes.
				return os.ReadFile(contentPath)
			case wire.SameHash:
				writeMeta(metaPath, metaSidecar{timestamp: fin.ServerTimestamp, hash: fin.ServerHash})
				return os.ReadFile(contentPath)
			case wire.Different:
				if err := os.MkdirAll(filepath.Dir(contentPath), 0o755); err != nil {
					return nil, errkind.Wrap(errkind.IO, "fileserve", "mkdir cache content dir", err)
				}
				if err := os.WriteFile(contentPath, content, 0o644); err != nil {
					return nil, errkind.Wrap(errkind.IO, "fileserve", "write cache content", err)
				}
				if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
					return nil, errkind.Wrap(errkind.IO, "fileserve", "mkdir cache meta dir", err)
				}
				writeMeta(metaPath, metaSidecar{timestamp: fin.ServerTimestamp, hash: fin.ServerHash})
				return content, nil
			case wire.NonExistant:
				return nil, errkind.New(errkind.NotFound, "fileserve", virtualPath+" not found on server")
			}
		}
	}
}

// Put uploads data as virtualPath through rootName's mount only, chunked
// at 1 KiB, and synchronously awaits the server's UACK. Other mounts are
// not written.
func (c *Client) Put(rootName, virtualPath string, data []byte) error {
	c.mu.Lock()
	m, ok := c.mounts[rootName]
	c.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, "fileserve", "no such mount: "+rootName)
	}

	id := uuidBytes()
	ch := c.register(id)
	defer c.unregister(id)

	hdr := wire.EncodeUploadHeader(wire.UploadHeader{UUID: id, TotalSize: uint32(len(data)), MountID: m.mountID, Path: virtualPath})
	if err := wire.WriteFrame(c.conn, wire.UPLH, hdr); err != nil {
		return err
	}
	for off := 0; off < len(data); off += wire.ChunkSize {
		end := off + wire.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := wire.EncodeUploadChunk(wire.UploadChunk{UUID: id, ChunkSize: uint16(end - off), Data: data[off:end]})
		if err := wire.WriteFrame(c.conn, wire.UPLD, chunk); err != nil {
			return err
		}
	}
	fin := wire.EncodeUploadFinish(wire.UploadFinish{UUID: id, MountID: m.mountID, Path: virtualPath})
	if err := wire.WriteFrame(c.conn, wire.UPLF, fin); err != nil {
		return err
	}
	<-ch // await UACK.
	return nil
}

// Delete removes virtualPath on the server.
func (c *Client) Delete(rootName, virtualPath string) error {
	c.mu.Lock()
	m, ok := c.mounts[rootName]
	c.mu.Unlock()
	if !ok {
		return errkind.New(errkind.NotFound, "fileserve", "no such mount: "+rootName)
	}
	return wire.WriteFrame(c.conn, wire.DELF, wire.EncodeDeleteFile(wire.DeleteFile{MountID: m.mountID, Path: virtualPath}))
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func uuidBytes() [16]byte {
	u := uuid.New()
	var out [16]byte
	copy(out[:], u[:])
	return out
}

var _ vfs.DataDir = (*remoteDataDir)(nil)

// remoteDataDir adapts a Client mount to vfs.DataDir so a file-serve
// mount can be registered on a vfs.FS alongside local mounts.
type remoteDataDir struct {
	c        *Client
	rootName string
}

// AsDataDir wraps rootName (already Mount'ed on c) as a vfs.DataDir.
func AsDataDir(c *Client, rootName string) vfs.DataDir { return &remoteDataDir{c: c, rootName: rootName} }

func (d *remoteDataDir) Root() string     { return d.rootName }
func (d *remoteDataDir) Group() string    { return "fileserve" }
func (d *remoteDataDir) Usage() vfs.Usage { return vfs.AllowWrites }

func (d *remoteDataDir) OpenRead(virtualPath string) (io.ReadCloser, error) {
	data, err := d.c.Get(d.rootName, virtualPath)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(&byteReader{data: data}), nil
}

func (d *remoteDataDir) OpenWrite(virtualPath string) (io.WriteCloser, error) {
	return &uploadWriter{client: d.c, root: d.rootName, path: virtualPath}, nil
}

func (d *remoteDataDir) Exists(virtualPath string) bool {
	_, err := d.c.Get(d.rootName, virtualPath)
	return err == nil
}

func (d *remoteDataDir) Stat(virtualPath string) (vfs.Stats, error) {
	data, err := d.c.Get(d.rootName, virtualPath)
	if err != nil {
		return vfs.Stats{}, err
	}
	return vfs.Stats{Size: int64(len(data)), Name: filepath.Base(virtualPath)}, nil
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

type uploadWriter struct {
	client *Client
	root   string
	path   string
	buf    []byte
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *uploadWriter) Close() error {
	return w.client.Put(w.root, w.path, w.buf)
}
