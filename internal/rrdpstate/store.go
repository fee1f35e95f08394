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

// Package rrdpstate persists per-repository RRDP session state
// (session_id, serial, last-modified) across runs in a sqlite database, so
// a run can ask its notification.xml for a delta instead of a full
// snapshot when nothing but the serial has advanced.
package rrdpstate

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // driver registration

	"github.com/netsec-ethz/rpki-client/internal/rperrors"
)

const schema = `
CREATE TABLE rrdp_session (
	uri        TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	serial     INTEGER NOT NULL,
	last_mod   TEXT NOT NULL
);
`

const schemaVersion = 1

// Session is one repository's last-known RRDP notification state.
type Session struct {
	URI       string
	SessionID string
	Serial    uint64
	LastMod   string // HTTP Last-Modified, opaque passthrough for conditional GET
}

// Store wraps a single-writer sqlite connection holding the rrdp_session
// table. Limiting the pool to one connection avoids SQLITE_BUSY
// contention; this store is only touched by the orchestrator process (the
// fetch orchestrator loads a session before dispatching to an RRDP worker
// and saves the one it returns), so there is no read pool.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	connURL := "file:" + path + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(1000)"
	db, err := sql.Open("sqlite", connURL)
	if err != nil {
		return nil, rperrors.Wrap(rperrors.KindFatal, "opening RRDP session database", err)
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
		return rperrors.Wrap(rperrors.KindFatal, "checking RRDP session schema version", err)
	}
	switch {
	case version == 0:
		if _, err := s.db.Exec(schema); err != nil {
			return rperrors.Wrap(rperrors.KindFatal, "applying RRDP session schema", err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return rperrors.Wrap(rperrors.KindFatal, "writing RRDP session schema version", err)
		}
	case version != schemaVersion:
		return rperrors.New(rperrors.KindFatal, "RRDP session schema version mismatch",
			"expected", schemaVersion, "have", version)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted session for uri, if one exists.
func (s *Store) Load(ctx context.Context, uri string) (Session, bool, error) {
	var sess Session
	sess.URI = uri
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, serial, last_mod FROM rrdp_session WHERE uri = ?", uri,
	).Scan(&sess.SessionID, &sess.Serial, &sess.LastMod)
	switch {
	case err == sql.ErrNoRows:
		return Session{}, false, nil
	case err != nil:
		return Session{}, false, rperrors.Wrap(rperrors.KindFatal, "loading RRDP session", err)
	}
	return sess, true, nil
}

// Save upserts sess.
func (s *Store) Save(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rrdp_session (uri, session_id, serial, last_mod) VALUES (?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET session_id = excluded.session_id,
			serial = excluded.serial, last_mod = excluded.last_mod`,
		sess.URI, sess.SessionID, sess.Serial, sess.LastMod)
	if err != nil {
		return rperrors.Wrap(rperrors.KindFatal, "saving RRDP session", err)
	}
	return nil
}
