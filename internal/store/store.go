package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/civicdata/consulta-api/internal/models"
)

// Schema for the document and error log tables. Applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	identity TEXT NOT NULL,
	doc TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(collection, identity)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);

CREATE TABLE IF NOT EXISTS error_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service TEXT NOT NULL,
	identity TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_error_logs_service ON error_logs(service);
CREATE INDEX IF NOT EXISTS idx_error_logs_identity ON error_logs(identity);
`

// Document is one persisted consultation result: scalar fields plus
// named record arrays, keyed by (collection, identity).
type Document map[string]interface{}

// Store persists consultation documents and the error log in SQLite.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes through a single connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the tables if they do not exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByIdentity loads the document for an identity within a collection.
// The second return is false when no document exists yet.
func (s *Store) FindByIdentity(ctx context.Context, collection, identity string) (Document, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = ? AND identity = ?`,
		collection, identity).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, false, fmt.Errorf("decode document: %w", err)
	}
	return doc, true, nil
}

// UpsertSnapshot merges scalar fields into the identity's document,
// writing only when a value actually changed. Arrays already present in
// the document are left untouched. It reports whether a write happened,
// which keeps repeated identical consultations idempotent.
func (s *Store) UpsertSnapshot(ctx context.Context, collection, identity string, fields models.Record) (bool, error) {
	doc, found, err := s.FindByIdentity(ctx, collection, identity)
	if err != nil {
		return false, err
	}
	if !found {
		doc = Document{}
	}

	changed := !found
	for k, v := range fields {
		if cur, ok := doc[k].(string); !ok || cur != v {
			doc[k] = v
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	if err := s.writeDocument(ctx, collection, identity, doc); err != nil {
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"identity":   identity,
	}).Debug("Snapshot upserted")
	return true, nil
}

// MergeArrayNoDuplicates appends items to the named array of the
// identity's document, skipping any item whose composite key already
// exists. Running the same merge twice inserts nothing the second time.
// It returns the number of newly inserted items.
func (s *Store) MergeArrayNoDuplicates(ctx context.Context, collection, identity, field string, items []models.Record, key []string) (int, error) {
	if len(key) == 0 {
		return 0, fmt.Errorf("merge into %s.%s: empty composite key", collection, field)
	}

	doc, found, err := s.FindByIdentity(ctx, collection, identity)
	if err != nil {
		return 0, err
	}
	if !found {
		doc = Document{}
	}

	existing := recordsAt(doc, field)
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[compositeKey(rec, key)] = struct{}{}
	}

	inserted := 0
	for _, item := range items {
		k := compositeKey(item, key)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		existing = append(existing, item)
		inserted++
	}

	if inserted == 0 && found {
		return 0, nil
	}

	doc[field] = existing
	if err := s.writeDocument(ctx, collection, identity, doc); err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"collection": collection,
		"identity":   identity,
		"field":      field,
		"inserted":   inserted,
	}).Debug("Array merged")
	return inserted, nil
}

// ReplaceArray overwrites the named array of the identity's document
// with the given items. Used by snapshot style sources where the portal
// answer supersedes whatever was stored before.
func (s *Store) ReplaceArray(ctx context.Context, collection, identity, field string, items []models.Record) error {
	doc, found, err := s.FindByIdentity(ctx, collection, identity)
	if err != nil {
		return err
	}
	if !found {
		doc = Document{}
	}
	doc[field] = items
	return s.writeDocument(ctx, collection, identity, doc)
}

// Collections lists every collection with its document count.
func (s *Store) Collections(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, COUNT(*) FROM documents GROUP BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out[name] = count
	}
	return out, rows.Err()
}

// Health reports store reachability.
func (s *Store) Health() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return map[string]interface{}{"status": "unhealthy", "error": err.Error()}
	}
	return map[string]interface{}{"status": "healthy"}
}

func (s *Store) writeDocument(ctx context.Context, collection, identity string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, identity, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, identity) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		collection, identity, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// recordsAt coerces the stored JSON array back into records. Non map
// entries are dropped.
func recordsAt(doc Document, field string) []models.Record {
	raw, ok := doc[field].([]interface{})
	if !ok {
		return nil
	}
	records := make([]models.Record, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		rec := make(models.Record, len(m))
		for k, v := range m {
			if sv, ok := v.(string); ok {
				rec[k] = sv
			} else {
				rec[k] = fmt.Sprintf("%v", v)
			}
		}
		records = append(records, rec)
	}
	return records
}

func compositeKey(rec models.Record, key []string) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = rec[k]
	}
	return strings.Join(parts, "\x1f")
}
