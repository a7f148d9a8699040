package sqlite

import (
	"fmt"

	"github.com/awagdata/objectstore/internal/ident"
)

// migrations contains the fixed database schema. Per-namespace object and
// tag tables are created on demand when a mapping is resolved.
var migrations = []string{
	// Migration 1: Mapping registry. Each (client_id, namespace_id) pair
	// owns exactly one suffix; each suffix belongs to exactly one pair.
	`CREATE TABLE IF NOT EXISTS objects_mapping (
		client_id TEXT NOT NULL,
		namespace_id TEXT NOT NULL,
		identifier_name TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (client_id, namespace_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_objects_mapping_namespace ON objects_mapping(namespace_id)`,
}

// createObjectTableTmpl is the revision table for one namespace binding.
// Every stored revision is one row; object_json holds the canonical document
// and object_tags a JSON snapshot of the object's tag list.
const createObjectTableTmpl = `CREATE TABLE IF NOT EXISTS %s (
	client_id TEXT NOT NULL,
	namespace_id TEXT NOT NULL,
	object_id TEXT NOT NULL,
	revision_id TEXT NOT NULL,
	object_json TEXT NOT NULL,
	object_tags TEXT NOT NULL DEFAULT '[]',
	timestamp TEXT NOT NULL,
	PRIMARY KEY (client_id, namespace_id, object_id, revision_id)
)`

// createTagTableTmpl is the tag index for one namespace binding. One row per
// (object, tag) pair.
const createTagTableTmpl = `CREATE TABLE IF NOT EXISTS %s (
	client_id TEXT NOT NULL,
	namespace_id TEXT NOT NULL,
	object_id TEXT NOT NULL,
	object_tag TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	PRIMARY KEY (client_id, namespace_id, object_id, object_tag)
)`

// objectTableName returns the revision table name for a mapping suffix. The
// suffix is validated before interpolation; table names cannot be bound as
// SQL parameters.
func objectTableName(suffix string) (string, error) {
	if !ident.IsValidSuffix(suffix) {
		return "", fmt.Errorf("invalid mapping identifier %q", suffix)
	}
	return "objects_" + suffix, nil
}

// tagTableName returns the tag table name for a mapping suffix.
func tagTableName(suffix string) (string, error) {
	if !ident.IsValidSuffix(suffix) {
		return "", fmt.Errorf("invalid mapping identifier %q", suffix)
	}
	return "objects_tags_" + suffix, nil
}
