// Package tokenstore persists the bearer token in one of two tiers: a durable one ("remember me")
// and a session-scoped one.
//
// Storage is assumed to be always available: tiers do not return errors. Tiers that can fail
// (cookies, files) report failures to their logger and otherwise behave as if the write happened.
package tokenstore

// Key is the fixed key the token is stored under in every tier.
const Key = "token"

// Tier is one storage level.
type Tier interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// TokenStore owns the token. Everything else only caches a copy.
type TokenStore interface {
	// Save writes to the durable tier when persistent, else to the session tier; never to both.
	Save(token string, persistent bool)
	// Read checks the durable tier first, then the session tier.
	Read() (string, bool)
	// Clear removes the token from both tiers. Idempotent.
	Clear()
}

type store struct {
	durable Tier
	session Tier
}

func New(durable, session Tier) TokenStore {
	return &store{durable: durable, session: session}
}

func (s *store) Save(token string, persistent bool) {
	if persistent {
		s.durable.Set(Key, token)
	} else {
		s.session.Set(Key, token)
	}
}

func (s *store) Read() (string, bool) {
	if token, ok := s.durable.Get(Key); ok && token != "" {
		return token, true
	}
	if token, ok := s.session.Get(Key); ok && token != "" {
		return token, true
	}
	return "", false
}

func (s *store) Clear() {
	s.durable.Delete(Key)
	s.session.Delete(Key)
}

// NewMemory returns a TokenStore whose both tiers live in memory.
func NewMemory() TokenStore {
	return New(NewMemoryTier(), NewMemoryTier())
}

// Static is a read-only token source for a fixed credential.
type Static string

func (s Static) Read() (string, bool) { return string(s), s != "" }
