package fs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestPutGetListRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	payload := `{"token":"abc"}`
	info, err := store.Put(ctx, "imports/1/abc.json", strings.NewReader(payload), "application/json")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", info.Size)
	}

	got, rc, err := store.Get(ctx, "imports/1/abc.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("content mismatch: %q", data)
	}
	if got.Key != "imports/1/abc.json" {
		t.Fatalf("unexpected key %q", got.Key)
	}

	if _, err := store.Put(ctx, "imports/2/def.json", strings.NewReader("{}"), "application/json"); err != nil {
		t.Fatalf("put second: %v", err)
	}
	infos, err := store.List(ctx, "imports/1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "imports/1/abc.json" {
		t.Fatalf("prefix filter broken: %+v", infos)
	}
}

func TestPutOverwritesExistingKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "k.json", strings.NewReader("one"), ""); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "k.json", strings.NewReader("two"), ""); err != nil {
		t.Fatalf("second put: %v", err)
	}
	_, rc, err := store.Get(ctx, "k.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != "two" {
		t.Fatalf("overwrite lost: %q", data)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "/abs", "../escape", "a/../../b"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), ""); err == nil {
			t.Fatalf("key %q should have been rejected", key)
		}
	}
}
