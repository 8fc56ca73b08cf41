package goCred

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a subject. An unregistered subject has no
// record at all.
type Status string

const (
	// StatusPendingVerification subjects registered but have not followed the
	// verification link yet.
	StatusPendingVerification Status = "pending_verification"
	// StatusActive subjects verified their email address.
	StatusActive Status = "active"
)

// Role is the coarse authorization role carried in access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Subject is an account as stored by a UserDirectory. Handle is the
// normalised email address.
type Subject struct {
	ID           string
	Handle       string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	Status       Status
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  time.Time
}

// View returns the public projection of s.
func (s Subject) View() SubjectView {
	return SubjectView{
		ID:            s.ID,
		Handle:        s.Handle,
		Username:      s.Username,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		Role:          s.Role,
		EmailVerified: s.Status == StatusActive,
	}
}

// SubjectView is the hash-free view of a subject returned by Register.
type SubjectView struct {
	ID            string `json:"id"`
	Handle        string `json:"email"`
	Username      string `json:"username"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Role          Role   `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

// RegisterRequest is the input of Engine.Register. An empty Role means RoleUser.
type RegisterRequest struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
	Role      Role
}

// LoginResult is returned by Engine.Login. MaxAge is the cookie max age in
// seconds and matches the token lifetime.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	MaxAge      int
}

var (
	// ErrSubjectNotFound is returned by a UserDirectory for unknown handles or ids.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrDuplicateSubject is returned by UserDirectory.Save when another record
	// already holds the handle.
	ErrDuplicateSubject = errors.New("duplicate subject")
)

// UserDirectory is the account store the engine reads and writes. It is
// implemented outside the engine; userstore/memory, userstore/postgres and
// userstore/sqlite ship with this module.
//
// Update must run fn on the current record under a lock that excludes other
// Updates of the same subject, and persist the record fn leaves behind. If fn
// returns an error nothing is written and the error is returned unchanged.
type UserDirectory interface {
	FindByHandle(ctx context.Context, handle string) (Subject, error)
	FindByID(ctx context.Context, id string) (Subject, error)
	Save(ctx context.Context, s Subject) error
	Update(ctx context.Context, id string, fn func(*Subject) error) error
}

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages. Send may block; the engine always calls it from
// the dispatcher goroutines, never from a request path.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
