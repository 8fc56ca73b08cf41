// Package memory is an in-process goCred.UserDirectory.
package memory

import (
	"context"
	"sync"

	goCred "github.com/MrEthical07/goCred"
)

// Directory keeps subjects in maps guarded by one mutex. Update holds the
// mutex while fn runs.
type Directory struct {
	mu       sync.Mutex
	byID     map[string]goCred.Subject
	byHandle map[string]string
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		byID:     make(map[string]goCred.Subject),
		byHandle: make(map[string]string),
	}
}

// FindByHandle implements goCred.UserDirectory.
func (d *Directory) FindByHandle(_ context.Context, handle string) (goCred.Subject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byHandle[handle]
	if !ok {
		return goCred.Subject{}, goCred.ErrSubjectNotFound
	}
	return d.byID[id], nil
}

// FindByID implements goCred.UserDirectory.
func (d *Directory) FindByID(_ context.Context, id string) (goCred.Subject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.byID[id]
	if !ok {
		return goCred.Subject{}, goCred.ErrSubjectNotFound
	}
	return s, nil
}

// Save implements goCred.UserDirectory.
func (d *Directory) Save(_ context.Context, s goCred.Subject) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if owner, ok := d.byHandle[s.Handle]; ok && owner != s.ID {
		return goCred.ErrDuplicateSubject
	}
	if prev, ok := d.byID[s.ID]; ok && prev.Handle != s.Handle {
		delete(d.byHandle, prev.Handle)
	}
	d.byID[s.ID] = s
	d.byHandle[s.Handle] = s.ID
	return nil
}

// Update implements goCred.UserDirectory.
func (d *Directory) Update(_ context.Context, id string, fn func(*goCred.Subject) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.byID[id]
	if !ok {
		return goCred.ErrSubjectNotFound
	}
	if err := fn(&s); err != nil {
		return err
	}
	s.ID = id
	if owner, ok := d.byHandle[s.Handle]; ok && owner != id {
		return goCred.ErrDuplicateSubject
	}
	prev := d.byID[id]
	if prev.Handle != s.Handle {
		delete(d.byHandle, prev.Handle)
	}
	d.byID[id] = s
	d.byHandle[s.Handle] = id
	return nil
}

// Len returns the number of stored subjects.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

// Ping always succeeds; it lets the directory sit behind health checks.
func (d *Directory) Ping(context.Context) error {
	return nil
}
