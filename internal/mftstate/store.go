// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mftstate persists, per manifest URI, the manifestNumber of the
// last accepted manifest across runs in a sqlite database, so a manifest
// that regresses to a lower number than one already accepted is rejected
// rather than silently re-processed.
package mftstate

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // driver registration

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

const schema = `
CREATE TABLE manifest_number (
	uri    TEXT PRIMARY KEY,
	number INTEGER NOT NULL
);
`

const schemaVersion = 1

// Store wraps a single-writer sqlite connection holding the
// manifest_number table. The orchestrator walks manifests one at a time,
// so a single connection is never contended.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	connURL := "file:" + path + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(1000)"
	db, err := sql.Open("sqlite", connURL)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindFatal, "opening manifest number database", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.setup(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) setup() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return rperrors.Wrap(rperrors.KindFatal, "checking manifest number schema version", err)
	}
	switch {
	case version == 0:
		if _, err := s.db.Exec(schema); err != nil {
			return rperrors.Wrap(rperrors.KindFatal, "applying manifest number schema", err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return rperrors.Wrap(rperrors.KindFatal, "writing manifest number schema version", err)
		}
	case version != schemaVersion:
		return rperrors.New(rperrors.KindFatal, "manifest number schema version mismatch",
			"expected", schemaVersion, "have", version)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the last-accepted manifestNumber for uri, if one exists.
func (s *Store) Load(ctx context.Context, uri string) (uint64, bool, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT number FROM manifest_number WHERE uri = ?", uri,
	).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		return 0, false, nil
	case err != nil:
		return 0, false, rperrors.Wrap(rperrors.KindFatal, "loading manifest number", err)
	}
	return n, true, nil
}

// Save upserts the accepted manifestNumber for uri.
func (s *Store) Save(ctx context.Context, uri string, number uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manifest_number (uri, number) VALUES (?, ?)
		ON CONFLICT(uri) DO UPDATE SET number = excluded.number`,
		uri, number)
	if err != nil {
		return rperrors.Wrap(rperrors.KindFatal, "saving manifest number", err)
	}
	return nil
}
