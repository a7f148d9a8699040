package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/awagdata/objectstore/internal/cache"
	"github.com/awagdata/objectstore/internal/storage"
)

// newTestStore creates a store backed by a temp-file database so tests run
// against the same WAL and pool configuration as production.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreAt(t, t.TempDir()+"/objectstore.db", cache.NewMappings())
}

func newTestStoreAt(t *testing.T, path string, mappings *cache.Mappings) *Store {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Path = path

	store, err := NewStore(cfg, mappings, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})
	return store
}

func TestStore_FirstRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	res, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"a":1}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if !res.NewVersion {
		t.Error("expected new_version=true on first store")
	}
	if res.RevisionID == "" {
		t.Error("expected a revision id")
	}
	if res.Timestamp == "" {
		t.Error("expected a timestamp")
	}

	got, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "", "")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if got.ObjectJSON != `{"a":1}` {
		t.Errorf("ObjectJSON mismatch: got %s, want %s", got.ObjectJSON, `{"a":1}`)
	}
	if got.RevisionID != res.RevisionID {
		t.Errorf("RevisionID mismatch: got %s, want %s", got.RevisionID, res.RevisionID)
	}
	if got.Timestamp != res.Timestamp {
		t.Errorf("Timestamp mismatch: got %s, want %s", got.Timestamp, res.Timestamp)
	}
}

func TestStore_ContentDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"a":1,"b":2}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	// Same content, different key order: structurally equal.
	second, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"b":2,"a":1}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if second.NewVersion {
		t.Error("expected new_version=false for identical content")
	}
	if second.RevisionID != first.RevisionID {
		t.Errorf("RevisionID mismatch: got %s, want %s", second.RevisionID, first.RevisionID)
	}
	if second.Timestamp != first.Timestamp {
		t.Errorf("Timestamp mismatch: got %s, want %s", second.Timestamp, first.Timestamp)
	}

	revisions, err := store.ListRevisions(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	if len(revisions) != 1 {
		t.Errorf("expected 1 revision, got %d", len(revisions))
	}
}

func TestStore_NewRevisionOnContentChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"a":1}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	second, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"a":2}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if !second.NewVersion {
		t.Error("expected new_version=true for changed content")
	}
	if second.RevisionID == first.RevisionID {
		t.Error("expected a fresh revision id for changed content")
	}

	// Head is the latest revision.
	head, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "", "")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if head.RevisionID != second.RevisionID {
		t.Errorf("head RevisionID mismatch: got %s, want %s", head.RevisionID, second.RevisionID)
	}
	if head.ObjectJSON != `{"a":2}` {
		t.Errorf("head ObjectJSON mismatch: got %s", head.ObjectJSON)
	}

	// The old revision stays addressable.
	old, err := store.GetObject(ctx, "c1", "ns1", "obj-1", first.RevisionID, "")
	if err != nil {
		t.Fatalf("GetObject by revision failed: %v", err)
	}
	if old.ObjectJSON != `{"a":1}` {
		t.Errorf("old ObjectJSON mismatch: got %s", old.ObjectJSON)
	}
}

func TestStore_DedupComparesHeadOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payloads := []string{`{"v":1}`, `{"v":2}`, `{"v":1}`}
	for i, p := range payloads {
		res, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", p, nil)
		if err != nil {
			t.Fatalf("StoreObject %d failed: %v", i, err)
		}
		if !res.NewVersion {
			t.Errorf("store %d: expected new_version=true", i)
		}
	}

	revisions, err := store.ListRevisions(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	if len(revisions) != 3 {
		t.Errorf("expected 3 revisions, got %d", len(revisions))
	}
}

func TestStore_GetObjectNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetObject(ctx, "c1", "ns1", "missing", "", ""); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"a":1}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "no-such-revision", ""); !errors.Is(err, storage.ErrRevisionNotFound) {
		t.Errorf("expected ErrRevisionNotFound, got %v", err)
	}
}

func TestStore_GetObjectByTag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"a":1}`, []string{"alpha"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	got, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "", "alpha")
	if err != nil {
		t.Fatalf("GetObject by tag failed: %v", err)
	}
	if got.ObjectID != "obj-1" {
		t.Errorf("ObjectID mismatch: got %s", got.ObjectID)
	}

	if _, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "", "beta"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound for absent tag, got %v", err)
	}
}

func TestStore_ListRevisionsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	second, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":2}`, nil)
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	revisions, err := store.ListRevisions(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revisions))
	}
	if revisions[0].RevisionID != second.RevisionID {
		t.Errorf("newest first: got %s, want %s", revisions[0].RevisionID, second.RevisionID)
	}
	if revisions[1].RevisionID != first.RevisionID {
		t.Errorf("oldest last: got %s, want %s", revisions[1].RevisionID, first.RevisionID)
	}

	if _, err := store.ListRevisions(ctx, "c1", "ns1", "missing"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestStore_DeleteSingleRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, []string{"alpha"})
	if err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":2}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	if err := store.DeleteObject(ctx, "c1", "ns1", "obj-1", first.RevisionID); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}

	revisions, err := store.ListRevisions(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	if len(revisions) != 1 {
		t.Errorf("expected 1 revision left, got %d", len(revisions))
	}

	// Other revisions remain, so the tag bindings stay.
	tags, err := store.GetTags(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"alpha"}) {
		t.Errorf("tags mismatch: got %v", tags)
	}
}

func TestStore_DeleteObjectRemovesBindings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, []string{"alpha", "beta"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":2}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	if err := store.DeleteObject(ctx, "c1", "ns1", "obj-1", ""); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if _, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "", ""); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
	}

	// Re-storing the same id starts from a clean tag set, proving the
	// bindings died with the last revision.
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":3}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	tags, err := store.GetTags(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("expected no tags after object delete, got %v", tags)
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.DeleteObject(ctx, "c1", "ns1", "missing", ""); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if err := store.DeleteObject(ctx, "c1", "ns1", "obj-1", "no-such-revision"); !errors.Is(err, storage.ErrRevisionNotFound) {
		t.Errorf("expected ErrRevisionNotFound, got %v", err)
	}
}

func TestStore_ListObjectIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.ListObjectIDs(ctx, "c1", "ns1", "")
	if err != nil {
		t.Fatalf("ListObjectIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty namespace, got %v", ids)
	}

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, []string{"alpha"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-2", `{"v":2}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	// Several revisions of one object still count once.
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":9}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	ids, err = store.ListObjectIDs(ctx, "c1", "ns1", "")
	if err != nil {
		t.Fatalf("ListObjectIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 object ids, got %v", ids)
	}

	tagged, err := store.ListObjectIDs(ctx, "c1", "ns1", "alpha")
	if err != nil {
		t.Fatalf("ListObjectIDs by tag failed: %v", err)
	}
	if !reflect.DeepEqual(tagged, []string{"obj-1"}) {
		t.Errorf("tagged ids mismatch: got %v", tagged)
	}
}

func TestStore_ClearNamespace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, []string{"alpha"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-2", `{"v":2}`, []string{"beta"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	if err := store.ClearNamespace(ctx, "c1", "ns1", nil); err != nil {
		t.Fatalf("ClearNamespace failed: %v", err)
	}

	ids, err := store.ListObjectIDs(ctx, "c1", "ns1", "")
	if err != nil {
		t.Fatalf("ListObjectIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty namespace after clear, got %v", ids)
	}

	// Bindings went with the objects.
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	tags, err := store.GetTags(ctx, "c1", "ns1", "obj-1")
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("expected no tags after clear, got %v", tags)
	}
}

func TestStore_ClearNamespaceByTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, []string{"alpha"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-2", `{"v":2}`, []string{"beta"}); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}
	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-3", `{"v":3}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	if err := store.ClearNamespace(ctx, "c1", "ns1", []string{"alpha"}); err != nil {
		t.Fatalf("ClearNamespace failed: %v", err)
	}

	if _, err := store.GetObject(ctx, "c1", "ns1", "obj-1", "", ""); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected obj-1 cleared, got %v", err)
	}
	if _, err := store.GetObject(ctx, "c1", "ns1", "obj-2", "", ""); err != nil {
		t.Errorf("expected obj-2 to survive: %v", err)
	}
	if _, err := store.GetObject(ctx, "c1", "ns1", "obj-3", "", ""); err != nil {
		t.Errorf("expected obj-3 to survive: %v", err)
	}

	// The beta binding is untouched.
	tags, err := store.GetTags(ctx, "c1", "ns1", "obj-2")
	if err != nil {
		t.Fatalf("GetTags failed: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"beta"}) {
		t.Errorf("tags mismatch: got %v", tags)
	}
}

func TestStore_TenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StoreObject(ctx, "c1", "ns1", "obj-1", `{"v":1}`, nil); err != nil {
		t.Fatalf("StoreObject failed: %v", err)
	}

	// Same namespace name under another client is a different binding.
	if _, err := store.GetObject(ctx, "c2", "ns1", "obj-1", "", ""); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("expected isolation across clients, got %v", err)
	}

	ids, err := store.ListObjectIDs(ctx, "c2", "ns1", "")
	if err != nil {
		t.Fatalf("ListObjectIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty namespace for c2, got %v", ids)
	}
}

func TestStore_IsHealthy(t *testing.T) {
	store := newTestStore(t)
	if !store.IsHealthy(context.Background()) {
		t.Error("expected healthy store")
	}
}
