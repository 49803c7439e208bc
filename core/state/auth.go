// Package state holds the app's state containers ("slices"). Each slice is mutated only through its
// declared actions and is passed around explicitly; there is no package-level store.
package state

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/services/tokenstore"
)

var ErrEmptyToken = errors.New("empty token")

type Status int

const (
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Session is the client's view of its authentication.
type Session struct {
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

func (s Session) Status() Status {
	switch {
	case s.IsLoading:
		return StatusUnknown
	case s.IsAuthenticated:
		return StatusAuthenticated
	default:
		return StatusUnauthenticated
	}
}

// Auth is the auth slice. Its actions are Initialize, LoginSuccess and Logout.
// The token store owns the token; the session only caches a copy.
type Auth struct {
	mu          sync.RWMutex
	session     Session
	tokens      tokenstore.TokenStore
	initialized bool
}

func NewAuth(tokens tokenstore.TokenStore) *Auth {
	return &Auth{
		session: Session{IsLoading: true},
		tokens:  tokens,
	}
}

// Initialize hydrates the session from the token store. Only the first call has an effect.
func (a *Auth) Initialize() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return
	}
	a.initialized = true

	if token, ok := a.tokens.Read(); ok {
		a.session = Session{Token: token, IsAuthenticated: true}
	} else {
		a.session = Session{}
	}
}

// LoginSuccess stores the token (durably when persist) and authenticates the session.
// A token left in the other tier by a previous login is removed, so the store holds the new token only.
func (a *Auth) LoginSuccess(token string, persist bool) error {
	if token == "" {
		return ErrEmptyToken
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokens.Clear()
	a.tokens.Save(token, persist)
	a.session = Session{Token: token, IsAuthenticated: true}
	a.initialized = true
	return nil
}

// Logout clears the session and both token store tiers.
func (a *Auth) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokens.Clear()
	a.session = Session{}
	a.initialized = true
}

// Session returns a copy of the current session.
func (a *Auth) Session() Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Read implements apiclient.TokenSource so API calls follow the token store.
func (a *Auth) Read() (string, bool) {
	return a.tokens.Read()
}
