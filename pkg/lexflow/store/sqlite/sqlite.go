package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/cognicore/lexflow/pkg/lexflow/internalerr"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
	"github.com/cognicore/lexflow/pkg/lexflow/process"
	"github.com/cognicore/lexflow/pkg/lexflow/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db    *sql.DB
	codec store.Codec
}

// OpenSQLite opens a SQLite database with WAL mode enabled. Stage models are
// encoded with codec.
func OpenSQLite(ctx context.Context, path string, codec store.Codec) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, codec: codec}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS models (
	language TEXT NOT NULL,
	kind TEXT NOT NULL,
	tag TEXT NOT NULL,
	version INTEGER NOT NULL,
	payload BLOB NOT NULL,
	saved_at TEXT NOT NULL,
	PRIMARY KEY(language, kind, tag, version)
);

CREATE TABLE IF NOT EXISTS manifests (
	language TEXT NOT NULL,
	tag TEXT NOT NULL,
	version INTEGER NOT NULL,
	body TEXT NOT NULL,
	saved_at TEXT NOT NULL,
	PRIMARY KEY(language, tag, version)
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Exists reports whether a model artifact is stored
func (s *sqliteStore) Exists(ctx context.Context, d model.Descriptor) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM models WHERE language = ? AND kind = ? AND tag = ? AND version = ?`,
		string(d.Language), string(d.Kind), d.Tag, d.Version,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Load reads and decodes a model artifact
func (s *sqliteStore) Load(ctx context.Context, d model.Descriptor) (process.Process, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM models WHERE language = ? AND kind = ? AND tag = ? AND version = ?`,
		string(d.Language), string(d.Kind), d.Tag, d.Version,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", d, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(d, payload)
}

// Save encodes and upserts a model artifact
func (s *sqliteStore) Save(ctx context.Context, d model.Descriptor, p process.Process) error {
	payload, err := s.codec.Encode(p)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO models (language, kind, tag, version, payload, saved_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(language, kind, tag, version) DO UPDATE SET
	payload=excluded.payload,
	saved_at=excluded.saved_at;
`
	_, err = s.db.ExecContext(ctx, stmt,
		string(d.Language), string(d.Kind), d.Tag, d.Version,
		payload, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Delete removes a model artifact or manifest
func (s *sqliteStore) Delete(ctx context.Context, d model.Descriptor) error {
	if d.Kind == model.KindPipeline {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM manifests WHERE language = ? AND tag = ? AND version = ?`,
			string(d.Language), d.Tag, d.Version)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM models WHERE language = ? AND kind = ? AND tag = ? AND version = ?`,
		string(d.Language), string(d.Kind), d.Tag, d.Version)
	return err
}

// Latest returns the highest stored version of a family
func (s *sqliteStore) Latest(ctx context.Context, f model.Family) (model.Descriptor, bool, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM models WHERE language = ? AND kind = ? AND tag = ?`,
		string(f.Language), string(f.Kind), f.Tag,
	).Scan(&version)
	if err != nil {
		return model.Descriptor{}, false, err
	}
	if !version.Valid {
		return model.Descriptor{}, false, nil
	}
	return f.Descriptor(int(version.Int64)), true, nil
}

// SaveManifest stores the descriptor list of a pipeline as YAML
func (s *sqliteStore) SaveManifest(ctx context.Context, d model.Descriptor, models []model.Descriptor) error {
	body, err := yaml.Marshal(store.Manifest{Pipeline: d, Models: models})
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO manifests (language, tag, version, body, saved_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(language, tag, version) DO UPDATE SET
	body=excluded.body,
	saved_at=excluded.saved_at;
`
	_, err = s.db.ExecContext(ctx, stmt,
		string(d.Language), d.Tag, d.Version,
		string(body), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// LoadManifest reads the descriptor list of a pipeline
func (s *sqliteStore) LoadManifest(ctx context.Context, d model.Descriptor) ([]model.Descriptor, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM manifests WHERE language = ? AND tag = ? AND version = ?`,
		string(d.Language), d.Tag, d.Version,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load manifest %s: %w", d, internalerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var m store.Manifest
	if err := yaml.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", d, err)
	}
	return m.Models, nil
}
