package handler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"

	"github.com/oakleydye/oakley-metrics/internal/middleware"
	"github.com/oakleydye/oakley-metrics/internal/models"
	"github.com/oakleydye/oakley-metrics/internal/service"
)

// Cookie names.
const (
	AccessTokenCookie  = middleware.AccessTokenCookie
	RefreshTokenCookie = "refresh_token"
	UserInfoCookie     = "user_info"
	OAuthStateCookie   = "oakley_oauth_state"
)

// CookieJar writes the session cookies. The OAuth state cookie is signed and
// encrypted. The token cookies hold opaque values and user_info holds the
// URI-encoded JSON identity snapshot.
type CookieJar struct {
	store    *sessions.CookieStore
	secure   bool
	stateTTL time.Duration
	now      func() time.Time
}

// deriveKey expands secret into a key of n bytes for purpose.
func deriveKey(secret, purpose string, n int) ([]byte, error) {
	key := make([]byte, n)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("oakley-metrics "+purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}

// NewCookieJar derives the cookie signing and encryption keys from secret.
// Secure cookies are only sent over HTTPS.
func NewCookieJar(secret string, secure bool, stateTTL time.Duration) (*CookieJar, error) {
	hashKey, err := deriveKey(secret, "cookie signing", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "cookie encryption", 32)
	if err != nil {
		return nil, err
	}
	if stateTTL <= 0 {
		stateTTL = 5 * time.Minute
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieJar{
		store:    store,
		secure:   secure,
		stateTTL: stateTTL,
		now:      time.Now,
	}, nil
}

// SaveState stores the OAuth state for the callback to verify.
func (j *CookieJar) SaveState(w http.ResponseWriter, r *http.Request, state string) error {
	session, _ := j.store.Get(r, OAuthStateCookie)
	session.Values["state"] = state
	session.Options.MaxAge = int(j.stateTTL.Seconds())
	return session.Save(r, w)
}

// ConsumeState returns the saved OAuth state and clears the cookie. It
// returns "" when no valid state cookie was sent.
func (j *CookieJar) ConsumeState(w http.ResponseWriter, r *http.Request) string {
	session, err := j.store.Get(r, OAuthStateCookie)
	if err != nil {
		j.expire(w, OAuthStateCookie)
		return ""
	}
	state, _ := session.Values["state"].(string)
	session.Options.MaxAge = -1
	_ = session.Save(r, w)
	return state
}

// HasState reports whether a valid OAuth state cookie accompanies r, which
// means a login was started and the callback has not run yet.
func (j *CookieJar) HasState(r *http.Request) bool {
	session, err := j.store.Get(r, OAuthStateCookie)
	if err != nil || session.IsNew {
		return false
	}
	_, ok := session.Values["state"].(string)
	return ok
}

// SetSession writes the access_token, refresh_token and user_info cookies.
// user_info is encoded first because it is the only step that can fail, so
// an error leaves no cookie behind.
func (j *CookieJar) SetSession(w http.ResponseWriter, r *http.Request, issued *service.IssuedSession) error {
	now := j.now()
	accessAge := int(issued.AccessExpiresAt.Sub(now).Seconds())

	info, err := encodeUserInfo(&issued.Session.Identity)
	if err != nil {
		return err
	}

	http.SetCookie(w, j.cookie(UserInfoCookie, info, accessAge))
	http.SetCookie(w, j.cookie(AccessTokenCookie, issued.AccessToken, accessAge))
	if issued.RefreshToken != "" {
		refreshAge := int(issued.RefreshExpiresAt.Sub(now).Seconds())
		http.SetCookie(w, j.cookie(RefreshTokenCookie, issued.RefreshToken, refreshAge))
	}
	return nil
}

// encodeUserInfo serializes identity as JSON, percent-encoded so the quotes
// and commas survive as a cookie value. It is a display snapshot and is
// never read back for authorization.
func encodeUserInfo(identity *models.Identity) (string, error) {
	raw, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("encode user_info: %w", err)
	}
	return url.PathEscape(string(raw)), nil
}

// ClearSession expires all three session cookies whether or not they were sent.
func (j *CookieJar) ClearSession(w http.ResponseWriter) {
	j.expire(w, AccessTokenCookie)
	j.expire(w, RefreshTokenCookie)
	j.expire(w, UserInfoCookie)
}

func (j *CookieJar) expire(w http.ResponseWriter, name string) {
	c := j.cookie(name, "", -1)
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (j *CookieJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}
