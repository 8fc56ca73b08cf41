// Package postgres is a goCred.UserDirectory backed by PostgreSQL through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	goCred "github.com/MrEthical07/goCred"
)

const uniqueViolation = "23505"

const subjectColumns = `id, handle, username, first_name, last_name, password_hash,
	status, role, created_at, updated_at, last_login_at`

// Directory stores subjects in the subjects table. Update locks the row with
// SELECT ... FOR UPDATE for the duration of fn.
type Directory struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection. Caller must call Close.
func Open(ctx context.Context, dsn string) (*Directory, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Directory{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// Close closes the underlying pool.
func (d *Directory) Close() error { return d.db.Close() }

// Ping verifies the database connection is still alive.
func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// FindByHandle implements goCred.UserDirectory.
func (d *Directory) FindByHandle(ctx context.Context, handle string) (goCred.Subject, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE handle = $1`, handle)
	return scanSubject(row)
}

// FindByID implements goCred.UserDirectory.
func (d *Directory) FindByID(ctx context.Context, id string) (goCred.Subject, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id)
	return scanSubject(row)
}

// Save inserts s or overwrites the record with the same id.
func (d *Directory) Save(ctx context.Context, s goCred.Subject) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO subjects (`+subjectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			handle = EXCLUDED.handle,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			password_hash = EXCLUDED.password_hash,
			status = EXCLUDED.status,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at,
			last_login_at = EXCLUDED.last_login_at`,
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

	row := tx.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSubject(row)
	if err != nil {
		return err
	}

	if err := fn(&s); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE subjects SET
			handle = $2, username = $3, first_name = $4, last_name = $5,
			password_hash = $6, status = $7, role = $8,
			updated_at = $9, last_login_at = $10
		WHERE id = $1`,
		id, s.Handle, s.Username, s.FirstName, s.LastName,
		s.PasswordHash, string(s.Status), string(s.Role),
		s.UpdatedAt.UTC(), nullTime(s.LastLoginAt),
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

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return goCred.ErrDuplicateSubject
	}
	return err
}
