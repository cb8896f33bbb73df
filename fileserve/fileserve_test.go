// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package fileserve

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgelogic/core/vfs"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "basic.fsh"), []byte("void main(){}"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := vfs.New()
	fs.AddDataDirectory(vfs.NewOSDataDir("base", "g", base, vfs.AllowWrites))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(fs, nil)
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serveConn(conn)
		}
	}()
	t.Cleanup(func() { s.Close() })
	return s, ln.Addr().String()
}

func dialTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(DialOptions{ServerAddr: addr}, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientGetsFreshFileOnFirstRequest(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestClient(t, addr)

	if err := c.Mount("/", "base", t.TempDir()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	data, err := c.Get("base", "basic.fsh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "void main(){}" {
		t.Fatalf("content = %q", data)
	}
}

func TestClientCacheStatusTTLAvoidsRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestClient(t, addr)
	if err := c.Mount("/", "base", t.TempDir()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, err := c.Get("base", "basic.fsh"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	key := "base/basic.fsh"
	c.mu.Lock()
	before := c.status[key]
	c.mu.Unlock()

	if _, err := c.Get("base", "basic.fsh"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	c.mu.Lock()
	after := c.status[key]
	c.mu.Unlock()
	if !after.checked.Equal(before.checked) {
		t.Fatalf("expected cached status to be reused within TTL window")
	}
}

func TestClientPutThenGetRoundTrip(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestClient(t, addr)
	if err := c.Mount("/", "base", t.TempDir()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := c.Put("base", "new.txt", []byte("uploaded content")); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(20 * time.Millisecond) // allow the server's write to land before re-reading.

	data, err := c.Get("base", "new.txt")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if string(data) != "uploaded content" {
		t.Fatalf("content = %q", data)
	}
}

func TestClientDeleteRemovesFile(t *testing.T) {
	_, addr := startTestServer(t)
	c := dialTestClient(t, addr)
	if err := c.Mount("/", "base", t.TempDir()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := c.Put("base", "gone.txt", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.Delete("base", "gone.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
