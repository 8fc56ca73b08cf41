// Package sqlite is a goCred.UserDirectory backed by an SQLite file through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	goCred "github.com/MrEthical07/goCred"
)

const subjectColumns = `id, handle, username, first_name, last_name, password_hash,
	status, role, created_at, updated_at, last_login_at`

// Directory stores subjects in one SQLite database. Transactions begin with
// BEGIN IMMEDIATE, so Update holds the database write lock while fn runs.
type Directory struct {
	db *sql.DB
}

// Open opens the database file at path, creating it when missing.
func Open(ctx context.Context, path string) (*Directory, error) {
	dsn := "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Directory{db: db}, nil
}

// Close closes the database.
func (d *Directory) Close() error { return d.db.Close() }

// Ping verifies the database connection is still alive.
func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// FindByHandle implements goCred.UserDirectory.
func (d *Directory) FindByHandle(ctx context.Context, handle string) (goCred.Subject, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE handle = ?`, handle)
	return scanSubject(row)
}

// FindByID implements goCred.UserDirectory.
func (d *Directory) FindByID(ctx context.Context, id string) (goCred.Subject, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id)
	return scanSubject(row)
}

// Save inserts s or overwrites the record with the same id.
func (d *Directory) Save(ctx context.Context, s goCred.Subject) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO subjects (`+subjectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			handle = excluded.handle,
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			password_hash = excluded.password_hash,
			status = excluded.status,
			role = excluded.role,
			updated_at = excluded.updated_at,
			last_login_at = excluded.last_login_at`,
		s.ID, s.Handle, s.Username, s.FirstName, s.LastName, s.PasswordHash,
		string(s.Status), string(s.Role), s.CreatedAt.UTC(), s.UpdatedAt.UTC(), nullTime(s.LastLoginAt),
	)
	return mapWriteError(err)
}

// Update implements goCred.UserDirectory.
func (d *Directory) Update(ctx context.Context, id string, fn func(*goCred.Subject) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = ?`, id)
	s, err := scanSubject(row)
	if err != nil {
		return err
	}

	if err := fn(&s); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE subjects SET
			handle = ?, username = ?, first_name = ?, last_name = ?,
			password_hash = ?, status = ?, role = ?,
			updated_at = ?, last_login_at = ?
		WHERE id = ?`,
		s.Handle, s.Username, s.FirstName, s.LastName,
		s.PasswordHash, string(s.Status), string(s.Role),
		s.UpdatedAt.UTC(), nullTime(s.LastLoginAt), id,
	)
	if err != nil {
		return mapWriteError(err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (goCred.Subject, error) {
	var (
		s         goCred.Subject
		status    string
		role      string
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Handle, &s.Username, &s.FirstName, &s.LastName, &s.PasswordHash,
		&status, &role, &s.CreatedAt, &s.UpdatedAt, &lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goCred.Subject{}, goCred.ErrSubjectNotFound
		}
		return goCred.Subject{}, err
	}
	s.Status = goCred.Status(status)
	s.Role = goCred.Role(role)
	if lastLogin.Valid {
		s.LastLoginAt = lastLogin.Time
	}
	return s, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// modernc reports constraint failures as text; the extended code is not
// exposed through database/sql.
func mapWriteError(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: subjects.handle") {
		return goCred.ErrDuplicateSubject
	}
	return err
}
