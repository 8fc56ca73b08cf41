// Package directorytest is a conformance suite for goCred.UserDirectory
// implementations.
package directorytest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	goCred "github.com/MrEthical07/goCred"
)

// Run exercises every UserDirectory method against directories returned by
// newDir. Each subtest gets a fresh, empty directory.
func Run(t *testing.T, newDir func(t *testing.T) goCred.UserDirectory) {
	t.Run("SaveAndFind", func(t *testing.T) { testSaveAndFind(t, newDir(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newDir(t)) })
	t.Run("DuplicateHandle", func(t *testing.T) { testDuplicateHandle(t, newDir(t)) })
	t.Run("SaveOverwrites", func(t *testing.T) { testSaveOverwrites(t, newDir(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newDir(t)) })
	t.Run("UpdateErrorDiscards", func(t *testing.T) { testUpdateErrorDiscards(t, newDir(t)) })
	t.Run("UpdateSerializes", func(t *testing.T) { testUpdateSerializes(t, newDir(t)) })
}

// Subject returns a pending subject with fixed timestamps.
func Subject(id, handle string) goCred.Subject {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return goCred.Subject{
		ID:           id,
		Handle:       handle,
		Username:     "user-" + id,
		FirstName:    "First",
		LastName:     "Last",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Status:       goCred.StatusPendingVerification,
		Role:         goCred.RoleUser,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func requireSubject(t *testing.T, want, got goCred.Subject) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Handle, got.Handle)
	require.Equal(t, want.Username, got.Username)
	require.Equal(t, want.FirstName, got.FirstName)
	require.Equal(t, want.LastName, got.LastName)
	require.Equal(t, want.PasswordHash, got.PasswordHash)
	require.Equal(t, want.Status, got.Status)
	require.Equal(t, want.Role, got.Role)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %v got %v", want.CreatedAt, got.CreatedAt)
	require.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %v got %v", want.UpdatedAt, got.UpdatedAt)
	require.Equal(t, want.LastLoginAt.IsZero(), got.LastLoginAt.IsZero())
	if !want.LastLoginAt.IsZero() {
		require.True(t, want.LastLoginAt.Equal(got.LastLoginAt), "last_login_at: want %v got %v", want.LastLoginAt, got.LastLoginAt)
	}
}

func testSaveAndFind(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()
	s := Subject("01HZX0000000000000000000A1", "alice@example.com")
	require.NoError(t, dir.Save(ctx, s))

	got, err := dir.FindByHandle(ctx, "alice@example.com")
	require.NoError(t, err)
	requireSubject(t, s, got)

	got, err = dir.FindByID(ctx, s.ID)
	require.NoError(t, err)
	requireSubject(t, s, got)
}

func testNotFound(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()

	_, err := dir.FindByHandle(ctx, "nobody@example.com")
	require.ErrorIs(t, err, goCred.ErrSubjectNotFound)

	_, err = dir.FindByID(ctx, "missing")
	require.ErrorIs(t, err, goCred.ErrSubjectNotFound)

	err = dir.Update(ctx, "missing", func(*goCred.Subject) error { return nil })
	require.ErrorIs(t, err, goCred.ErrSubjectNotFound)
}

func testDuplicateHandle(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()
	require.NoError(t, dir.Save(ctx, Subject("id-1", "bob@example.com")))

	err := dir.Save(ctx, Subject("id-2", "bob@example.com"))
	require.ErrorIs(t, err, goCred.ErrDuplicateSubject)

	_, err = dir.FindByID(ctx, "id-2")
	require.ErrorIs(t, err, goCred.ErrSubjectNotFound)
}

func testSaveOverwrites(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()
	s := Subject("id-1", "carol@example.com")
	require.NoError(t, dir.Save(ctx, s))

	s.Status = goCred.StatusActive
	s.UpdatedAt = s.UpdatedAt.Add(time.Minute)
	require.NoError(t, dir.Save(ctx, s))

	got, err := dir.FindByID(ctx, s.ID)
	require.NoError(t, err)
	requireSubject(t, s, got)
}

func testUpdate(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()
	s := Subject("id-1", "dan@example.com")
	require.NoError(t, dir.Save(ctx, s))

	login := s.CreatedAt.Add(time.Hour)
	err := dir.Update(ctx, s.ID, func(cur *goCred.Subject) error {
		require.Equal(t, goCred.StatusPendingVerification, cur.Status)
		cur.Status = goCred.StatusActive
		cur.PasswordHash = "new-hash"
		cur.LastLoginAt = login
		cur.UpdatedAt = login
		return nil
	})
	require.NoError(t, err)

	s.Status = goCred.StatusActive
	s.PasswordHash = "new-hash"
	s.LastLoginAt = login
	s.UpdatedAt = login

	got, err := dir.FindByHandle(ctx, "dan@example.com")
	require.NoError(t, err)
	requireSubject(t, s, got)
}

func testUpdateErrorDiscards(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()
	s := Subject("id-1", "erin@example.com")
	require.NoError(t, dir.Save(ctx, s))

	boom := errors.New("boom")
	err := dir.Update(ctx, s.ID, func(cur *goCred.Subject) error {
		cur.PasswordHash = "discarded"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := dir.FindByID(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, s.PasswordHash, got.PasswordHash)
}

// testUpdateSerializes runs concurrent compare-and-swap Updates; exactly one
// may observe the original hash.
func testUpdateSerializes(t *testing.T, dir goCred.UserDirectory) {
	ctx := context.Background()
	s := Subject("id-1", "frank@example.com")
	require.NoError(t, dir.Save(ctx, s))

	errStale := errors.New("stale")
	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dir.Update(ctx, s.ID, func(cur *goCred.Subject) error {
				if cur.PasswordHash != s.PasswordHash {
					return errStale
				}
				cur.PasswordHash = "winner"
				return nil
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, errStale) {
				t.Errorf("unexpected update error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}
