package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/awagdata/objectstore/internal/ident"
	"github.com/awagdata/objectstore/internal/storage"
)

// maxMintAttempts bounds the suffix allocation loop. With 36^6 possible
// suffixes a handful of attempts is already astronomically safe.
const maxMintAttempts = 10

// Resolve returns the physical table suffix for a namespace binding,
// creating the mapping and its tables on first use.
func (s *Store) Resolve(ctx context.Context, clientID, namespaceID string) (string, error) {
	start := time.Now()
	suffix, err := s.resolve(ctx, clientID, namespaceID)
	s.record("resolve_mapping", start, err)
	return suffix, err
}

// resolve implements the cache -> table -> mint lookup chain. The mapping
// insert commits on its own (never inside a caller's transaction) so a
// later rollback cannot orphan the suffix other requests may already have
// adopted. Table provisioning runs on every call; CREATE TABLE IF NOT
// EXISTS is a cheap no-op once the tables exist.
func (s *Store) resolve(ctx context.Context, clientID, namespaceID string) (string, error) {
	if suffix, ok := s.mappings.Get(clientID, namespaceID); ok {
		if s.rec != nil {
			s.rec.RecordCacheAccess("mappings", true)
		}
		if err := s.ensureTables(ctx, suffix); err != nil {
			return "", err
		}
		return suffix, nil
	}
	if s.rec != nil {
		s.rec.RecordCacheAccess("mappings", false)
	}

	suffix, err := s.lookupMapping(ctx, clientID, namespaceID)
	if err != nil {
		return "", err
	}
	if suffix == "" {
		suffix, err = s.createMapping(ctx, clientID, namespaceID)
		if err != nil {
			return "", err
		}
	}

	s.mappings.Put(clientID, namespaceID, suffix)
	if s.rec != nil {
		s.rec.UpdateCacheSize("mappings", float64(s.mappings.Len()))
	}

	if err := s.ensureTables(ctx, suffix); err != nil {
		return "", err
	}
	return suffix, nil
}

// lookupMapping reads the committed suffix for a binding. Returns "" when
// no mapping exists yet.
func (s *Store) lookupMapping(ctx context.Context, clientID, namespaceID string) (string, error) {
	var suffix string
	err := s.db.QueryRowContext(ctx,
		`SELECT identifier_name FROM objects_mapping WHERE client_id = ? AND namespace_id = ?`,
		clientID, namespaceID).Scan(&suffix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up mapping: %w", err)
	}
	return suffix, nil
}

// createMapping allocates a fresh suffix and inserts the mapping row. Two
// races can surface as unique violations: another request bound the same
// (client_id, namespace_id) first, in which case the loser adopts the
// winner's suffix, or the minted suffix itself collided, in which case we
// mint again.
func (s *Store) createMapping(ctx context.Context, clientID, namespaceID string) (string, error) {
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		suffix, err := s.mintSuffix(ctx)
		if err != nil {
			return "", err
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO objects_mapping (client_id, namespace_id, identifier_name, timestamp) VALUES (?, ?, ?, ?)`,
			clientID, namespaceID, suffix, now())
		if err == nil {
			return suffix, nil
		}
		if !isUniqueViolation(err) {
			return "", fmt.Errorf("failed to create mapping: %w", err)
		}

		existing, lookErr := s.lookupMapping(ctx, clientID, namespaceID)
		if lookErr != nil {
			return "", lookErr
		}
		if existing != "" {
			return existing, nil
		}
	}
	return "", fmt.Errorf("failed to allocate mapping identifier for %s/%s", clientID, namespaceID)
}

// mintSuffix generates suffixes until one is absent from the mapping table.
// The probe keeps the allocation loop short; the UNIQUE constraint on
// identifier_name is the actual guarantee.
func (s *Store) mintSuffix(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		suffix, err := ident.NewSuffix()
		if err != nil {
			return "", fmt.Errorf("failed to generate mapping identifier: %w", err)
		}

		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM objects_mapping WHERE identifier_name = ?`,
			suffix).Scan(&n); err != nil {
			return "", fmt.Errorf("failed to probe mapping identifier: %w", err)
		}
		if n == 0 {
			return suffix, nil
		}
	}
	return "", errors.New("failed to mint an unused mapping identifier")
}

// ensureTables idempotently creates the object and tag tables for a suffix.
func (s *Store) ensureTables(ctx context.Context, suffix string) error {
	objectTable, err := objectTableName(suffix)
	if err != nil {
		return err
	}
	tagTable, err := tagTableName(suffix)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createObjectTableTmpl, objectTable)); err != nil {
		return fmt.Errorf("failed to create object table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createTagTableTmpl, tagTable)); err != nil {
		return fmt.Errorf("failed to create tag table: %w", err)
	}
	return nil
}

// tables resolves a binding and returns its physical table names.
func (s *Store) tables(ctx context.Context, clientID, namespaceID string) (string, string, error) {
	suffix, err := s.resolve(ctx, clientID, namespaceID)
	if err != nil {
		return "", "", err
	}
	objectTable, err := objectTableName(suffix)
	if err != nil {
		return "", "", err
	}
	tagTable, err := tagTableName(suffix)
	if err != nil {
		return "", "", err
	}
	return objectTable, tagTable, nil
}

// ListMappings returns every mapping row, optionally filtered to one
// namespace, ordered by (client_id, namespace_id).
func (s *Store) ListMappings(ctx context.Context, namespaceID string) ([]*storage.MappingRecord, error) {
	start := time.Now()
	records, err := s.listMappings(ctx, namespaceID)
	s.record("list_mappings", start, err)
	return records, err
}

func (s *Store) listMappings(ctx context.Context, namespaceID string) ([]*storage.MappingRecord, error) {
	query := `SELECT client_id, namespace_id, identifier_name, timestamp FROM objects_mapping`
	var args []any
	if namespaceID != "" {
		query += ` WHERE namespace_id = ?`
		args = append(args, namespaceID)
	}
	query += ` ORDER BY client_id, namespace_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var records []*storage.MappingRecord
	for rows.Next() {
		var r storage.MappingRecord
		if err := rows.Scan(&r.ClientID, &r.NamespaceID, &r.IdentifierName, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}
	if len(records) == 0 {
		return nil, storage.ErrNoMappings
	}
	return records, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure. The driver does not expose a typed error for this, so match on
// the stable message prefix.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
