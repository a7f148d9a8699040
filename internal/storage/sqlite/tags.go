package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/awagdata/objectstore/internal/jsonutil"
	"github.com/awagdata/objectstore/internal/storage"
)

// rowQuerier is the subset of *sql.DB and *sql.Tx used by read helpers.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AddTags binds each tag to the object, ignoring duplicates.
func (s *Store) AddTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error {
	start := time.Now()
	err := s.mutateTags(ctx, clientID, namespaceID, objectID, func(tx *sql.Tx, tagTable string) error {
		return insertTags(ctx, tx, tagTable, clientID, namespaceID, objectID, tags)
	})
	s.record("add_tags", start, err)
	return err
}

// ReplaceTags removes every binding for the object and installs the given
// set.
func (s *Store) ReplaceTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error {
	start := time.Now()
	err := s.mutateTags(ctx, clientID, namespaceID, objectID, func(tx *sql.Tx, tagTable string) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id = ?`, tagTable),
			clientID, namespaceID, objectID); err != nil {
			return fmt.Errorf("failed to delete tag bindings: %w", err)
		}
		return insertTags(ctx, tx, tagTable, clientID, namespaceID, objectID, tags)
	})
	s.record("replace_tags", start, err)
	return err
}

// RemoveTags deletes the named bindings, or every binding when tags is
// empty.
func (s *Store) RemoveTags(ctx context.Context, clientID, namespaceID, objectID string, tags []string) error {
	start := time.Now()
	err := s.mutateTags(ctx, clientID, namespaceID, objectID, func(tx *sql.Tx, tagTable string) error {
		if len(tags) == 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(
				`DELETE FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id = ?`, tagTable),
				clientID, namespaceID, objectID); err != nil {
				return fmt.Errorf("failed to delete tag bindings: %w", err)
			}
			return nil
		}

		args := []any{clientID, namespaceID, objectID}
		for _, t := range tags {
			args = append(args, t)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id = ? AND object_tag IN (%s)`,
			tagTable, placeholders(len(tags))), args...); err != nil {
			return fmt.Errorf("failed to delete tag bindings: %w", err)
		}
		return nil
	})
	s.record("remove_tags", start, err)
	return err
}

// GetTags returns the object's tag list in insertion order.
func (s *Store) GetTags(ctx context.Context, clientID, namespaceID, objectID string) ([]string, error) {
	start := time.Now()
	tags, err := s.getTags(ctx, clientID, namespaceID, objectID)
	s.record("get_tags", start, err)
	return tags, err
}

func (s *Store) getTags(ctx context.Context, clientID, namespaceID, objectID string) ([]string, error) {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return nil, err
	}

	exists, err := objectExists(ctx, s.db, objectTable, clientID, namespaceID, objectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, storage.ErrObjectNotFound
	}

	// rowid order is insertion order, which the snapshot and tag reads
	// must preserve.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT object_tag FROM %s
		 WHERE client_id = ? AND namespace_id = ? AND object_id = ?
		 ORDER BY rowid`, tagTable),
		clientID, namespaceID, objectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return tags, nil
}

// mutateTags runs one tag mutation inside a transaction: existence check,
// the mutation itself, then the snapshot rewrite on every revision row.
func (s *Store) mutateTags(ctx context.Context, clientID, namespaceID, objectID string, mutate func(tx *sql.Tx, tagTable string) error) error {
	objectTable, tagTable, err := s.tables(ctx, clientID, namespaceID)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := objectExists(ctx, tx, objectTable, clientID, namespaceID, objectID)
		if err != nil {
			return err
		}
		if !exists {
			return storage.ErrObjectNotFound
		}
		if err := mutate(tx, tagTable); err != nil {
			return err
		}
		return refreshTagSnapshot(ctx, tx, objectTable, tagTable, clientID, namespaceID, objectID)
	})
}

// objectExists reports whether the object has at least one revision.
func objectExists(ctx context.Context, q rowQuerier, objectTable, clientID, namespaceID, objectID string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE client_id = ? AND namespace_id = ? AND object_id = ?`, objectTable),
		clientID, namespaceID, objectID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to probe object: %w", err)
	}
	return n > 0, nil
}

// insertTags adds bindings for each tag, ignoring ones already present.
func insertTags(ctx context.Context, tx *sql.Tx, tagTable, clientID, namespaceID, objectID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	ts := now()
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT OR IGNORE INTO %s (client_id, namespace_id, object_id, object_tag, timestamp) VALUES (?, ?, ?, ?, ?)`,
			tagTable),
			clientID, namespaceID, objectID, tag, ts); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return nil
}

// refreshTagSnapshot re-reads the object's tag list and rewrites the
// denormalized object_tags column on every revision row. Must run inside
// the same transaction as the mutation that made the snapshot stale.
func refreshTagSnapshot(ctx context.Context, tx *sql.Tx, objectTable, tagTable, clientID, namespaceID, objectID string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT object_tag FROM %s
		 WHERE client_id = ? AND namespace_id = ? AND object_id = ?
		 ORDER BY rowid`, tagTable),
		clientID, namespaceID, objectID)
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tags: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET object_tags = ? WHERE client_id = ? AND namespace_id = ? AND object_id = ?`, objectTable),
		jsonutil.EncodeList(tags), clientID, namespaceID, objectID); err != nil {
		return fmt.Errorf("failed to rewrite tag snapshot: %w", err)
	}
	return nil
}
