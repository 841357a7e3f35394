package store

import (
	"context"
	"errors"
	"reflect"
	"time"
)

var (
	// ErrInvalidArgument indicates a caller bug: a missing identifier or a
	// nil entity. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is the sentinel for an absent, expired, or already
	// consumed entry.
	ErrNotFound = errors.New("entry not found")

	// ErrUnavailable wraps backend I/O failures. Callers may retry.
	ErrUnavailable = errors.New("store unavailable")
)

// Entity is a short-lived value held by a Store. The entity itself decides
// its consumption semantics: when Consumable reports true, a successful Get
// removes the entry atomically as part of the same operation, so of any
// number of concurrent readers exactly one observes the value.
type Entity interface {
	Consumable() bool
}

// Store holds entities keyed by opaque identifier with a fixed time to live.
// Implementations must make the consume path of Get atomic with respect to
// concurrent callers acting on the same identifier.
type Store[T Entity] interface {
	// Put inserts the entity, overwriting any prior entry with the same id.
	// An overwrite does not refresh the entry's expiry.
	Put(ctx context.Context, id string, entity T) error

	// Get returns the entity, or ErrNotFound when absent, expired, or
	// claimed by another caller. When the entity is consumable the entry is
	// removed in the same operation.
	Get(ctx context.Context, id string) (T, error)

	// Delete removes the entry if present.
	Delete(ctx context.Context, id string) error
}

// Request records one in-flight or recently completed login attempt. While
// pending it can be read any number of times; once completed, the first
// successful read consumes it.
type Request struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	ForceAuthn bool           `json:"forceAuthn,omitempty"`
	Completed  bool           `json:"completed,omitempty"`
	Started    time.Time      `json:"started,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewRequest creates a pending request for the given user.
func NewRequest(id, userID string, forceAuthn bool) *Request {
	return &Request{ID: id, UserID: userID, ForceAuthn: forceAuthn, Started: time.Now()}
}

// Complete returns a copy of the request marked complete with the protocol
// result payload. The original is left pending so callers holding a prior
// reference never observe a half-written result.
func (r *Request) Complete(userID string, payload map[string]any) *Request {
	return &Request{
		ID:         r.ID,
		UserID:     userID,
		Provider:   r.Provider,
		ForceAuthn: r.ForceAuthn,
		Completed:  true,
		Started:    r.Started,
		Payload:    payload,
	}
}

// Consumable reports whether a read must remove the entry: only once the
// protocol handler has delivered a result.
func (r *Request) Consumable() bool {
	return r.Completed
}

// User is a resolved identity profile, deliverable exactly once.
type User struct {
	ID      string         `json:"id"`
	Profile map[string]any `json:"profile,omitempty"`
}

// NewUser creates a user entity with the given profile.
func NewUser(id string, profile map[string]any) *User {
	return &User{ID: id, Profile: profile}
}

// Consumable always reports true: a profile can be fetched exactly once.
func (u *User) Consumable() bool {
	return true
}

// validArgs rejects the contract violations shared by every backend.
func validArgs[T Entity](id string, entity T) error {
	if id == "" {
		return ErrInvalidArgument
	}
	if v := reflect.ValueOf(entity); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrInvalidArgument
	}
	return nil
}
