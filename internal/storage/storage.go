// Package storage provides storage interfaces and implementations for the object store.
package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrNoMappings       = errors.New("no mappings found")
)

// MappingRecord represents one row of the namespace mapping table.
type MappingRecord struct {
	ClientID       string `json:"client_id"`
	NamespaceID    string `json:"namespace_id"`
	IdentifierName string `json:"identifier_name"`
	Timestamp      string `json:"timestamp"`
}

// RevisionRecord represents a stored object revision.
type RevisionRecord struct {
	ClientID    string   `json:"client_id"`
	NamespaceID string   `json:"namespace_id"`
	ObjectID    string   `json:"object_id"`
	RevisionID  string   `json:"revision_id"`
	ObjectJSON  string   `json:"-"`
	ObjectTags  []string `json:"object_tags"`
	Timestamp   string   `json:"timestamp"`
}

// RevisionInfo identifies one revision of an object.
type RevisionInfo struct {
	RevisionID string `json:"revision_id"`
	Timestamp  string `json:"timestamp"`
}

// StoreResult reports the outcome of a content-dedup write.
type StoreResult struct {
	ObjectID   string
	RevisionID string
	NewVersion bool
	Timestamp  string
}

// Recorder observes storage internals. Implementations must be safe for
// concurrent use. All methods are optional no-ops for a nil Recorder.
type Recorder interface {
	RecordStorageOperation(operation string, duration time.Duration, err error)
	RecordStore(newVersion bool)
	RecordCacheAccess(cache string, hit bool)
	UpdateCacheSize(cache string, size float64)
}

// Store defines the interface for object store backends.
//
// Every namespaced operation resolves the (clientID, namespaceID) mapping
// first, provisioning the physical tables on first use, and then runs its
// statements inside a single transaction: one request, one transaction.
type Store interface {
	// Resolve returns the physical-table suffix for (clientID, namespaceID),
	// minting a new mapping and creating the namespace tables on first use.
	// The mapping insert commits independently of any later operation.
	Resolve(ctx context.Context, clientID, namespaceID string) (string, error)

	// Object operations
	StoreObject(ctx context.Context, clientID, namespaceID, objectID, objectJSON string, tags []string) (*StoreResult, error)
	GetObject(ctx context.Context, clientID, namespaceID, objectID, revisionID, tag string) (*RevisionRecord, error)
	ListRevisions(ctx context.Context, clientID, namespaceID, objectID string) ([]RevisionInfo, error)
	DeleteObject(ctx context.Context, clientID, namespaceID, objectID, revisionID string) error
	ListObjectIDs(ctx context.Context, clientID, namespaceID, tag string) ([]string, error)
	ClearNamespace(ctx context.Context, clientID, namespaceID string, tags []string) error

	// Tag operations. All require the object to have at least one revision.
	AddTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error
	ReplaceTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error
	RemoveTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error
	GetTags(ctx context.Context, clientID, namespaceID, objectID string) ([]string, error)

	// Mapping operations
	ListMappings(ctx context.Context, namespaceID string) ([]*MappingRecord, error)

	// Lifecycle
	Close() error
	IsHealthy(ctx context.Context) bool
}
