package tokenstore

import (
	"crypto/sha256"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"

	"github.com/trezcool/masomo-admin/core"
)

const (
	durableCookiePrefix = "masomo_durable_"
	sessionCookiePrefix = "masomo_session_"
)

// DeriveKeys derives a securecookie hash key (64 bytes) and block key (32 bytes) from the app secret.
// `purpose` separates the keys of independent cookies.
func DeriveKeys(secret, purpose string) (hashKey, blockKey []byte) {
	rdr := hkdf.New(sha256.New, []byte(secret), nil, []byte("masomo:"+purpose))
	hashKey = make([]byte, 64)
	blockKey = make([]byte, 32)
	// hkdf can produce up to 255*32 bytes; reading 96 never fails
	_, _ = io.ReadFull(rdr, hashKey)
	_, _ = io.ReadFull(rdr, blockKey)
	return hashKey, blockKey
}

// CookieCodec builds the cookie tiers of every request. It is safe for concurrent use.
type CookieCodec struct {
	sc          *securecookie.SecureCookie
	rememberFor time.Duration
	secure      bool
	logger      core.Logger
}

func NewCookieCodec(secret string, rememberFor time.Duration, secure bool, logger core.Logger) *CookieCodec {
	hashKey, blockKey := DeriveKeys(secret, "token")
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(rememberFor.Seconds()))
	if logger == nil {
		logger = core.NopLogger
	}
	return &CookieCodec{sc: sc, rememberFor: rememberFor, secure: secure, logger: logger}
}

// Store returns the request's TokenStore: a persistent cookie as durable tier and a browser-session
// cookie as session tier.
func (c *CookieCodec) Store(w http.ResponseWriter, r *http.Request) TokenStore {
	return New(c.tier(w, r, durableCookiePrefix, int(c.rememberFor.Seconds())), c.tier(w, r, sessionCookiePrefix, 0))
}

func (c *CookieCodec) tier(w http.ResponseWriter, r *http.Request, prefix string, maxAge int) *CookieTier {
	return &CookieTier{
		codec:   c,
		w:       w,
		r:       r,
		prefix:  prefix,
		maxAge:  maxAge,
		pending: make(map[string]*string),
	}
}

// CookieTier stores values in signed & encrypted cookies.
// A maxAge of 0 makes browser-session cookies.
type CookieTier struct {
	codec  *CookieCodec
	w      http.ResponseWriter
	r      *http.Request
	prefix string
	maxAge int

	// writes done during the current request; nil means deleted
	pending map[string]*string
}

var _ Tier = (*CookieTier)(nil)

func (t *CookieTier) name(key string) string { return t.prefix + key }

func (t *CookieTier) Get(key string) (string, bool) {
	if v, ok := t.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	cookie, err := t.r.Cookie(t.name(key))
	if err != nil {
		return "", false
	}
	var value string
	if err := t.codec.sc.Decode(t.name(key), cookie.Value, &value); err != nil {
		// tampered, expired or signed with an old secret: same as absent
		t.codec.logger.Debug("discarding undecodable cookie", map[string]interface{}{"cookie": t.name(key), "error": err.Error()})
		return "", false
	}
	return value, true
}

func (t *CookieTier) Set(key, value string) {
	t.pending[key] = &value

	encoded, err := t.codec.sc.Encode(t.name(key), value)
	if err != nil {
		t.codec.logger.Error("encoding token cookie", err)
		return
	}
	t.setCookie(t.cookie(key, encoded, t.maxAge))
}

func (t *CookieTier) Delete(key string) {
	t.pending[key] = nil
	t.setCookie(t.cookie(key, "", -1))
}

// setCookie replaces any Set-Cookie header already written for the same cookie during this request.
func (t *CookieTier) setCookie(ck *http.Cookie) {
	h := t.w.Header()
	prev := h.Values("Set-Cookie")
	kept := make([]string, 0, len(prev))
	for _, v := range prev {
		if !strings.HasPrefix(v, ck.Name+"=") {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(t.w, ck)
}

func (t *CookieTier) cookie(key, value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     t.name(key),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.codec.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		ck.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	return ck
}
