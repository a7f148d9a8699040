package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/awagdata/objectstore/internal/ident"
	"github.com/awagdata/objectstore/internal/jsonutil"
	"github.com/awagdata/objectstore/internal/storage"
)

// StoreObject writes one revision of an object using content dedup: when
// the payload is structurally equal to the head revision, the head's
// revision_id and timestamp are reused and no row is inserted. Submitted
// tags are merged into the tag table and the denormalized tag snapshot is
// rewritten on every revision row, all within one transaction.
func (s *Store) StoreObject(ctx context.Context, clientID, namespaceID, objectID, objectJSON string, tags []string) (*storage.StoreResult, error) {
	start := time.Now()
	result, err := s.storeObject(ctx, clientID, namespaceID, objectID, objectJSON, tags)
	s.record("store_object", start, err)
	if err == nil && s.rec != nil {
		s.rec.RecordStore(result.NewVersion)
	}
	return result, err
}

func (s *Store) storeObject(ctx context.Context, clientID, namespaceID, objectID, objectJSON string, tags []string) (*storage.StoreResult, error) {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	result := &storage.StoreResult{ObjectID: objectID}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var headRevision, headJSON, headTimestamp string
		err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT revision_id, object_json, timestamp FROM %s
			 WHERE client_id = ? AND namespace_id = ? AND object_id = ?
			 ORDER BY timestamp DESC, rowid DESC LIMIT 1`, objectTable),
			clientID, namespaceID, objectID).Scan(&headRevision, &headJSON, &headTimestamp)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			// First revision of this object.
		case err != nil:
			return fmt.Errorf("failed to read head revision: %w", err)
		default:
			equal, eqErr := jsonutil.Equal(headJSON, objectJSON)
			if eqErr != nil {
				return eqErr
			}
			if equal {
				result.RevisionID = headRevision
				result.Timestamp = headTimestamp
				result.NewVersion = false
			}
		}

		if result.RevisionID == "" {
			result.RevisionID = ident.NewRevisionID()
			result.Timestamp = now()
			result.NewVersion = true

			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				`INSERT INTO %s (client_id, namespace_id, object_id, revision_id, object_json, object_tags, timestamp)
				 VALUES (?, ?, ?, ?, ?, '[]', ?)`, objectTable),
				clientID, namespaceID, objectID, result.RevisionID, objectJSON, result.Timestamp); err != nil {
				return fmt.Errorf("failed to insert revision: %w", err)
			}
		}

		if err := insertTags(ctx, tx, tagTable, clientID, namespaceID, objectID, tags); err != nil {
			return err
		}
		return refreshTagSnapshot(ctx, tx, objectTable, tagTable, clientID, namespaceID, objectID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetObject returns the head revision of an object, or a specific revision
// when revisionID is set. A non-empty tag restricts the lookup to objects
// carrying that tag.
func (s *Store) GetObject(ctx context.Context, clientID, namespaceID, objectID, revisionID, tag string) (*storage.RevisionRecord, error) {
	start := time.Now()
	record, err := s.getObject(ctx, clientID, namespaceID, objectID, revisionID, tag)
	s.record("get_object", start, err)
	return record, err
}

func (s *Store) getObject(ctx context.Context, clientID, namespaceID, objectID, revisionID, tag string) (*storage.RevisionRecord, error) {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT o.object_id, o.revision_id, o.object_json, o.object_tags, o.timestamp FROM %s o`, objectTable)
	var args []any
	if tag != "" {
		query += fmt.Sprintf(
			` INNER JOIN %s t ON t.client_id = o.client_id AND t.namespace_id = o.namespace_id AND t.object_id = o.object_id AND t.object_tag = ?`,
			tagTable)
		args = append(args, tag)
	}
	query += ` WHERE o.client_id = ? AND o.namespace_id = ? AND o.object_id = ?`
	args = append(args, clientID, namespaceID, objectID)
	if revisionID != "" {
		query += ` AND o.revision_id = ?`
		args = append(args, revisionID)
	}
	query += ` ORDER BY o.timestamp DESC, o.rowid DESC LIMIT 1`

	record := &storage.RevisionRecord{ClientID: clientID, NamespaceID: namespaceID}
	var rawTags string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&record.ObjectID, &record.RevisionID, &record.ObjectJSON, &rawTags, &record.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		if revisionID != "" {
			return nil, storage.ErrRevisionNotFound
		}
		return nil, storage.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	record.ObjectTags, err = jsonutil.DecodeList(rawTags)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tag snapshot: %w", err)
	}
	return record, nil
}

// ListRevisions returns the revision history of an object, newest first.
func (s *Store) ListRevisions(ctx context.Context, clientID, namespaceID, objectID string) ([]storage.RevisionInfo, error) {
	start := time.Now()
	revisions, err := s.listRevisions(ctx, clientID, namespaceID, objectID)
	s.record("list_revisions", start, err)
	return revisions, err
}

func (s *Store) listRevisions(ctx context.Context, clientID, namespaceID, objectID string) ([]storage.RevisionInfo, error) {
	objectTable, _, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT revision_id, timestamp FROM %s
		 WHERE client_id = ? AND namespace_id = ? AND object_id = ?
		 ORDER BY timestamp DESC, rowid DESC`, objectTable),
		clientID, namespaceID, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var revisions []storage.RevisionInfo
	for rows.Next() {
		var r storage.RevisionInfo
		if err := rows.Scan(&r.RevisionID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revisions: %w", err)
	}
	if len(revisions) == 0 {
		return nil, storage.ErrObjectNotFound
	}
	return revisions, nil
}

// DeleteObject removes one revision when revisionID is set, otherwise every
// revision of the object. When the last revision goes, the object's tag
// bindings go with it.
func (s *Store) DeleteObject(ctx context.Context, clientID, namespaceID, objectID, revisionID string) error {
	start := time.Now()
	err := s.deleteObject(ctx, clientID, namespaceID, objectID, revisionID)
	s.record("delete_object", start, err)
	return err
}

func (s *Store) deleteObject(ctx context.Context, clientID, namespaceID, objectID, revisionID string) error {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		filter := ` WHERE client_id = ? AND namespace_id = ? AND object_id = ?`
		args := []any{clientID, namespaceID, objectID}
		if revisionID != "" {
			filter += ` AND revision_id = ?`
			args = append(args, revisionID)
		}

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+objectTable+filter, args...).Scan(&n); err != nil {
			return fmt.Errorf("failed to probe object: %w", err)
		}
		if n == 0 {
			if revisionID != "" {
				return storage.ErrRevisionNotFound
			}
			return storage.ErrObjectNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM `+objectTable+filter, args...); err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}

		var remaining int
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id = ?`, objectTable),
			clientID, namespaceID, objectID).Scan(&remaining); err != nil {
			return fmt.Errorf("failed to probe remaining revisions: %w", err)
		}
		if remaining == 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				`DELETE FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id = ?`, tagTable),
				clientID, namespaceID, objectID); err != nil {
				return fmt.Errorf("failed to delete tag bindings: %w", err)
			}
		}
		return nil
	})
}

// ListObjectIDs returns the distinct object ids present in a namespace,
// optionally restricted to objects carrying a tag. An empty namespace
// yields an empty list, not an error.
func (s *Store) ListObjectIDs(ctx context.Context, clientID, namespaceID, tag string) ([]string, error) {
	start := time.Now()
	ids, err := s.listObjectIDs(ctx, clientID, namespaceID, tag)
	s.record("list_object_ids", start, err)
	return ids, err
}

func (s *Store) listObjectIDs(ctx context.Context, clientID, namespaceID, tag string) ([]string, error) {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT DISTINCT o.object_id FROM %s o`, objectTable)
	var args []any
	if tag != "" {
		query += fmt.Sprintf(
			` INNER JOIN %s t ON t.client_id = o.client_id AND t.namespace_id = o.namespace_id AND t.object_id = o.object_id AND t.object_tag = ?`,
			tagTable)
		args = append(args, tag)
	}
	query += ` WHERE o.client_id = ? AND o.namespace_id = ?`
	args = append(args, clientID, namespaceID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan object id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate object ids: %w", err)
	}
	return ids, nil
}

// ClearNamespace deletes namespace content in one transaction. Without
// tags everything goes: bindings and revisions. With tags, objects carrying
// any named tag are deleted first (while the bindings still identify them),
// then the named bindings themselves.
func (s *Store) ClearNamespace(ctx context.Context, clientID, namespaceID string, tags []string) error {
	start := time.Now()
	err := s.clearNamespace(ctx, clientID, namespaceID, tags)
	s.record("clear_namespace", start, err)
	return err
}

func (s *Store) clearNamespace(ctx context.Context, clientID, namespaceID string, tags []string) error {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if len(tags) == 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				`DELETE FROM %s WHERE client_id = ? AND namespace_id = ?`, tagTable),
				clientID, namespaceID); err != nil {
				return fmt.Errorf("failed to clear tag bindings: %w", err)
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				`DELETE FROM %s WHERE client_id = ? AND namespace_id = ?`, objectTable),
				clientID, namespaceID); err != nil {
				return fmt.Errorf("failed to clear objects: %w", err)
			}
			return nil
		}

		in := placeholders(len(tags))
		args := []any{clientID, namespaceID, clientID, namespaceID}
		for _, t := range tags {
			args = append(args, t)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id IN (
				SELECT object_id FROM %s WHERE client_id = ? AND namespace_id = ? AND object_tag IN (%s))`,
			objectTable, tagTable, in), args...); err != nil {
			return fmt.Errorf("failed to clear tagged objects: %w", err)
		}

		args = []any{clientID, namespaceID}
		for _, t := range tags {
			args = append(args, t)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE client_id = ? AND namespace_id = ? AND object_tag IN (%s)`,
			tagTable, in), args...); err != nil {
			return fmt.Errorf("failed to clear tag bindings: %w", err)
		}
		return nil
	})
}

// placeholders returns n comma-separated SQL parameter markers.
func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ", ")
}
