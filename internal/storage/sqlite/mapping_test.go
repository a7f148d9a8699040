package sqlite

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/awagdata/objectstore/internal/cache"
	"github.com/awagdata/objectstore/internal/ident"
	"github.com/awagdata/objectstore/internal/storage"
)

func TestResolve_Stable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Resolve(ctx, "c1", "ns1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !ident.IsValidSuffix(first) {
		t.Errorf("suffix %q is not six lowercase alphanumerics", first)
	}

	second, err := store.Resolve(ctx, "c1", "ns1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if second != first {
		t.Errorf("resolve not stable: got %s, want %s", second, first)
	}
}

func TestResolve_DistinctBindings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]string)
	for _, binding := range []struct{ client, namespace string }{
		{"c1", "ns1"},
		{"c1", "ns2"},
		{"c2", "ns1"},
	} {
		suffix, err := store.Resolve(ctx, binding.client, binding.namespace)
		if err != nil {
			t.Fatalf("Resolve(%s, %s) failed: %v", binding.client, binding.namespace, err)
		}
		if prev, ok := seen[suffix]; ok {
			t.Errorf("suffix %s reused by %s and %s/%s", suffix, prev, binding.client, binding.namespace)
		}
		seen[suffix] = binding.client + "/" + binding.namespace
	}
}

func TestResolve_AdoptsCommittedMapping(t *testing.T) {
	path := t.TempDir() + "/objectstore.db"

	first := newTestStoreAt(t, path, cache.NewMappings())
	ctx := context.Background()

	suffix, err := first.Resolve(ctx, "c1", "ns1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A second store with a cold cache must read the committed mapping,
	// not mint a fresh suffix.
	second := newTestStoreAt(t, path, cache.NewMappings())
	adopted, err := second.Resolve(ctx, "c1", "ns1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if adopted != suffix {
		t.Errorf("expected adopted suffix %s, got %s", suffix, adopted)
	}
}

func TestResolve_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	suffixes := make([]string, workers)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			suffix, err := store.Resolve(ctx, "c1", "ns1")
			if err != nil {
				return err
			}
			suffixes[i] = suffix
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Resolve failed: %v", err)
	}

	for i := 1; i < workers; i++ {
		if suffixes[i] != suffixes[0] {
			t.Errorf("worker %d got %s, want %s", i, suffixes[i], suffixes[0])
		}
	}

	// Exactly one mapping row exists.
	records, err := store.ListMappings(ctx, "")
	if err != nil {
		t.Fatalf("ListMappings failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 mapping, got %d", len(records))
	}
}

func TestListMappings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.ListMappings(ctx, ""); !errors.Is(err, storage.ErrNoMappings) {
		t.Errorf("expected ErrNoMappings on empty table, got %v", err)
	}

	// Resolve in an order that differs from the expected listing order.
	if _, err := store.Resolve(ctx, "c2", "ns1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := store.Resolve(ctx, "c1", "ns2"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := store.Resolve(ctx, "c1", "ns1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	records, err := store.ListMappings(ctx, "")
	if err != nil {
		t.Fatalf("ListMappings failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 mappings, got %d", len(records))
	}
	want := [][2]string{{"c1", "ns1"}, {"c1", "ns2"}, {"c2", "ns1"}}
	for i, w := range want {
		if records[i].ClientID != w[0] || records[i].NamespaceID != w[1] {
			t.Errorf("row %d: got (%s, %s), want (%s, %s)",
				i, records[i].ClientID, records[i].NamespaceID, w[0], w[1])
		}
		if records[i].Timestamp == "" {
			t.Errorf("row %d: missing timestamp", i)
		}
	}

	filtered, err := store.ListMappings(ctx, "ns1")
	if err != nil {
		t.Fatalf("ListMappings filtered failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("expected 2 mappings for ns1, got %d", len(filtered))
	}

	if _, err := store.ListMappings(ctx, "absent"); !errors.Is(err, storage.ErrNoMappings) {
		t.Errorf("expected ErrNoMappings for unknown namespace, got %v", err)
	}
}

func TestTableNameValidation(t *testing.T) {
	for _, suffix := range []string{"", "abc", "ABCDEF", "abc!23", "abcdefg", "a b c d"} {
		if _, err := objectTableName(suffix); err == nil {
			t.Errorf("objectTableName(%q): expected error", suffix)
		}
		if _, err := tagTableName(suffix); err == nil {
			t.Errorf("tagTableName(%q): expected error", suffix)
		}
	}

	name, err := objectTableName("ab12cd")
	if err != nil {
		t.Fatalf("objectTableName failed: %v", err)
	}
	if name != "objects_ab12cd" {
		t.Errorf("objectTableName mismatch: got %s", name)
	}
	name, err = tagTableName("ab12cd")
	if err != nil {
		t.Fatalf("tagTableName failed: %v", err)
	}
	if name != "objects_tags_ab12cd" {
		t.Errorf("tagTableName mismatch: got %s", name)
	}
}
