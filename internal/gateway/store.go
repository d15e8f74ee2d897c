// Package gateway implements gild's session/audit scaffolding per
// SPEC_FULL.md §7: a sqlite-backed session store, JWT bearer-token
// verification, CBOR request/response bodies, a post-hoc audit recorder, and
// problem-document error responses. Grounded on the teacher's boxer.go
// (sql.Open("sqlite", ...) + WAL + schema application) and
// evalgo-org-graphium's JWT/validator shape.
package gateway

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Session is one row of the sessions table.
type Session struct {
	ID        string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionStore persists sessions that JWT subject claims reference.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// AuditRecord is one row written after a handler returns.
type AuditRecord struct {
	ID         string
	Endpoint   string
	UserID     string
	Payload    string
	Error      string
	OccurredAt time.Time
}

// AuditLogger persists AuditRecords.
type AuditLogger interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// Store is the sqlite-backed SessionStore and AuditLogger, migrated with
// golang-migrate's database/sqlite driver on open. That driver (as opposed
// to database/sqlite3) operates purely through database/sql and carries no
// mattn/go-sqlite3 cgo dependency, pairing cleanly with the pure-Go
// modernc.org/sqlite driver this Store opens its connection with.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path, enables WAL,
// and applies pending migrations embedded in migrations/.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to open gateway database %s", path)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to set WAL mode on %s", path)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateSchema(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to construct migration driver")
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to load embedded migrations")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to construct migration engine")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to apply gateway schema migrations")
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.IssuedAt.Unix(), sess.ExpiresAt.Unix())
	if err != nil {
		return Session{}, trunkerr.Wrap(trunkerr.KindIO, err, "failed to create session")
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, issued_at, expires_at FROM sessions WHERE id = ?`, id)
	var sess Session
	var issuedAt, expiresAt int64
	if err := row.Scan(&sess.ID, &sess.UserID, &issuedAt, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, trunkerr.New(trunkerr.KindValidation, "session %s not found", id)
		}
		return Session{}, trunkerr.Wrap(trunkerr.KindIO, err, "failed to load session %s", id)
	}
	sess.IssuedAt = time.Unix(issuedAt, 0).UTC()
	sess.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to delete session %s", id)
	}
	return nil
}

// Record inserts one audit row. Endpoint, UserID, Payload, and Error are
// stored as-is; callers are responsible for redacting sensitive payload
// fields before calling Record.
func (s *Store) Record(ctx context.Context, rec AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, endpoint, user_id, payload, error, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Endpoint, rec.UserID, rec.Payload, rec.Error, rec.OccurredAt.Unix())
	if err != nil {
		return trunkerr.Wrap(trunkerr.KindIO, err, "failed to write audit record")
	}
	return nil
}
