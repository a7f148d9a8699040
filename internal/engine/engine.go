// Package engine implements the core object store service: payload
// canonicalization, content-dedup stores, revisioned reads, tag management,
// and namespace maintenance on top of a storage backend.
package engine

import (
	"context"

	"github.com/awagdata/objectstore/internal/ident"
	"github.com/awagdata/objectstore/internal/jsonutil"
	"github.com/awagdata/objectstore/internal/storage"
)

// Engine is the core object store service.
type Engine struct {
	store storage.Store
}

// New creates an Engine backed by store.
func New(store storage.Store) *Engine {
	return &Engine{store: store}
}

// Store writes payload as a revision of an object, minting an object id when
// the caller supplies none. Content identical to the head revision reuses
// the head's revision id instead of creating a new one. Submitted tags are
// bound to the object.
func (e *Engine) Store(ctx context.Context, clientID, namespaceID, objectID string, payload []byte, tags []string) (*storage.StoreResult, error) {
	if len(payload) == 0 {
		return nil, invalidArgf("Missing request body")
	}
	objectJSON, err := jsonutil.Canonicalize(payload)
	if err != nil {
		return nil, invalidArgf("%s", err)
	}

	if objectID == "" {
		objectID = ident.NewObjectID()
	}
	return e.store.StoreObject(ctx, clientID, namespaceID, objectID, objectJSON, tags)
}

// Retrieve returns the head revision of an object, a specific revision when
// revisionID is set, and restricts the lookup to a tag when tag is set.
func (e *Engine) Retrieve(ctx context.Context, clientID, namespaceID, objectID, revisionID, tag string) (*storage.RevisionRecord, error) {
	return e.store.GetObject(ctx, clientID, namespaceID, objectID, revisionID, tag)
}

// Revisions returns the object's revision history, newest first.
func (e *Engine) Revisions(ctx context.Context, clientID, namespaceID, objectID string) ([]storage.RevisionInfo, error) {
	return e.store.ListRevisions(ctx, clientID, namespaceID, objectID)
}

// Delete removes one revision when revisionID is set, otherwise the whole
// object including its tag bindings.
func (e *Engine) Delete(ctx context.Context, clientID, namespaceID, objectID, revisionID string) error {
	return e.store.DeleteObject(ctx, clientID, namespaceID, objectID, revisionID)
}

// ListObjects returns the distinct object ids in a namespace, optionally
// restricted to objects carrying tag.
func (e *Engine) ListObjects(ctx context.Context, clientID, namespaceID, tag string) ([]string, error) {
	return e.store.ListObjectIDs(ctx, clientID, namespaceID, tag)
}

// Clear removes namespace content. Without tags everything goes; with tags,
// only objects carrying any of the named tags and those tags' bindings.
// The caller must pass confirm=true.
func (e *Engine) Clear(ctx context.Context, clientID, namespaceID string, tags []string, confirm bool) error {
	if !confirm {
		return invalidArgf("Missing required parameter: confirm=true")
	}
	return e.store.ClearNamespace(ctx, clientID, namespaceID, tags)
}

// AddTags binds tags to an object. At least one tag is required.
func (e *Engine) AddTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error {
	if len(tags) == 0 {
		return invalidArgf("Missing required parameter: tags")
	}
	return e.store.AddTags(ctx, clientID, namespaceID, objectID, tags)
}

// ReplaceTags replaces an object's tag set. At least one tag is required.
func (e *Engine) ReplaceTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error {
	if len(tags) == 0 {
		return invalidArgf("Missing required parameter: tags")
	}
	return e.store.ReplaceTags(ctx, clientID, namespaceID, objectID, tags)
}

// RemoveTags removes the named tags from an object, or all of its tags when
// tags is empty.
func (e *Engine) RemoveTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error {
	return e.store.RemoveTags(ctx, clientID, namespaceID, objectID, tags)
}

// Tags returns an object's tag list.
func (e *Engine) Tags(ctx context.Context, clientID, namespaceID, objectID string) ([]string, error) {
	return e.store.GetTags(ctx, clientID, namespaceID, objectID)
}

// Mappings lists namespace mappings, optionally filtered to one namespace.
func (e *Engine) Mappings(ctx context.Context, namespaceID string) ([]*storage.MappingRecord, error) {
	return e.store.ListMappings(ctx, namespaceID)
}

// Resolve returns the physical table suffix for a namespace binding. It is
// exposed so responses can report which mapping served the request.
func (e *Engine) Resolve(ctx context.Context, clientID, namespaceID string) (string, error) {
	return e.store.Resolve(ctx, clientID, namespaceID)
}

// IsHealthy reports whether the backing store is reachable.
func (e *Engine) IsHealthy(ctx context.Context) bool {
	return e.store.IsHealthy(ctx)
}
