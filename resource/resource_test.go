// Copyright © 2024-2026 Forgelogic Software Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package resource

import (
	"bytes"
	"io"
	"testing"
	"time"
)

type fakeLoader struct {
	data map[string][]byte
}

func (f *fakeLoader) OpenDataStream(id string) (Stream, any, error) {
	d, ok := f.data[id]
	if !ok {
		d = []byte("default")
	}
	return io.NopCloser(bytes.NewReader(d)), nil, nil
}

type fakeContent struct {
	loadedBytes []byte
	unloaded    bool
}

func (c *fakeContent) UpdateContent(stream Stream, userdata any) (State, Quality, Quality, error) {
	b, err := io.ReadAll(stream)
	if err != nil {
		return Unloaded, 0, 0, err
	}
	c.loadedBytes = b
	return Loaded, 1, 1, nil
}

func (c *fakeContent) UnloadData(scope UnloadScope) { c.unloaded = true }

func TestLoadResourceReachesLoaded(t *testing.T) {
	m := New(2, nil)
	defer m.Close()
	loader := &fakeLoader{data: map[string][]byte{"a": []byte("hello")}}
	m.SetResourceTypeLoader("mesh", loader, func(id string) Content { return &fakeContent{} })

	res, err := m.LoadResource("mesh", "a")
	if err != nil {
		t.Fatalf("LoadResource: %v", err)
	}
	state := m.ResourceLock(res, BlockTillLoaded_NeverFail)
	if state != Final {
		t.Fatalf("lock state = %v, want Final", state)
	}
	if res.State() != Loaded {
		t.Fatalf("resource state = %v, want Loaded", res.State())
	}
	if res.RefCount() != 1 {
		t.Fatalf("ref count = %d, want 1", res.RefCount())
	}
	m.Release(res)
	if res.RefCount() != 0 {
		t.Fatalf("ref count after release = %d, want 0", res.RefCount())
	}
}

func TestFreeAllUnusedResourcesRespectsRefCount(t *testing.T) {
	m := New(1, nil)
	defer m.Close()
	content := &fakeContent{}
	loader := &fakeLoader{data: map[string][]byte{}}
	m.SetResourceTypeLoader("tex", loader, func(id string) Content { return content })

	res, _ := m.LoadResource("tex", "x")
	m.ResourceLock(res, BlockTillLoaded_NeverFail)

	m.FreeAllUnusedResources()
	if content.unloaded {
		t.Fatal("resource with ref-count > 0 must not be collected")
	}

	m.Release(res)
	m.FreeAllUnusedResources()
	if !content.unloaded {
		t.Fatal("resource with ref-count == 0 should be collected")
	}
}

func TestReloadAllResourcesKeepsHandleStable(t *testing.T) {
	m := New(1, nil)
	defer m.Close()
	loader := &fakeLoader{data: map[string][]byte{"a": []byte("v1")}}
	m.SetResourceTypeLoader("mesh", loader, func(id string) Content { return &fakeContent{} })

	res, _ := m.LoadResource("mesh", "a")
	m.ResourceLock(res, BlockTillLoaded_NeverFail)

	loader.data["a"] = []byte("v2")
	m.ReloadAllResources()
	time.Sleep(20 * time.Millisecond)

	res2, _ := m.LoadResource("mesh", "a")
	if res != res2 {
		t.Fatal("reload must not change the resource's identity")
	}
}

func TestAllowNestedAcquireWhitelist(t *testing.T) {
	m := New(1, nil)
	defer m.Close()
	if m.IsNestedAcquireAllowed("model", "texture") {
		t.Fatal("expected no whitelist entry by default")
	}
	m.AllowResourceTypeAcquireDuringUpdateContent("model", "texture")
	if !m.IsNestedAcquireAllowed("model", "texture") {
		t.Fatal("expected whitelist entry after Allow call")
	}
}
