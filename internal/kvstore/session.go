package kvstore

import (
	"github.com/safecity/safecity-go/internal/backend"
)

const currentUserKey = "session.current_user"

// UserSession tracks the authenticated operator on top of a Store. It
// replaces ad-hoc global state: components that need the current user take a
// *UserSession explicitly.
type UserSession struct {
	store Store
}

// NewUserSession wraps a store with user session accessors.
func NewUserSession(store Store) *UserSession {
	return &UserSession{store: store}
}

// SetUser records a successful login.
func (s *UserSession) SetUser(user *backend.User) {
	s.store.Set(currentUserKey, user)
}

// User returns the logged-in user, or nil when nobody is logged in.
func (s *UserSession) User() *backend.User {
	value, err := s.store.Get(currentUserKey)
	if err != nil {
		return nil
	}
	user, ok := value.(*backend.User)
	if !ok {
		return nil
	}
	return user
}

// Clear logs the user out.
func (s *UserSession) Clear() {
	s.store.Delete(currentUserKey)
}
