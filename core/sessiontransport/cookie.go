package sessiontransport

import (
	"errors"
	"net/http"
	"time"

	"github.com/mardix/voodoo-doll-auth/core/account"
	"github.com/mardix/voodoo-doll-auth/core/cookie"
	"github.com/mardix/voodoo-doll-auth/core/session"
	"github.com/mardix/voodoo-doll-auth/pkg/clientip"
)

// Cookie binds sessions to a named HTTP cookie whose value is the raw
// session token. It is shared across requests; per-request state lives in
// the Scope it hands out.
type Cookie struct {
	manager *session.Manager
	cookies *cookie.Manager
	name    string
}

// NewCookie creates a cookie-based session transport.
func NewCookie(mgr *session.Manager, cookies *cookie.Manager, name string) *Cookie {
	if name == "" {
		name = DefaultCookieConfig().CookieName
	}
	return &Cookie{
		manager: mgr,
		cookies: cookies,
		name:    name,
	}
}

// Scope returns the per-request session scope for w and r. Scopes must not
// outlive the request or be shared across requests.
func (c *Cookie) Scope(w http.ResponseWriter, r *http.Request) *Scope {
	return &Scope{t: c, w: w, r: r}
}

// bind writes the session cookie with expiry matching the record.
func (c *Cookie) bind(w http.ResponseWriter, sess *session.Session) error {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1 // already expired, issue a deleting cookie
	}
	return c.cookies.Set(w, c.name, sess.Token, cookie.WithMaxAge(maxAge))
}

// clear empties the session cookie and expires it immediately.
func (c *Cookie) clear(w http.ResponseWriter) {
	c.cookies.Delete(w, c.name)
}

// Scope is the request-scoped view of the session store: it memoizes the
// resolved session so repeated reads within one request hit storage once.
type Scope struct {
	t        *Cookie
	w        http.ResponseWriter
	r        *http.Request
	resolved bool
	sess     *session.Session
}

// Resolve returns the live session referenced by the request's cookie, or
// nil when there is no cookie, no matching record, or the record expired.
// The result is memoized for the remainder of the request.
func (s *Scope) Resolve() (*session.Session, error) {
	if s.resolved {
		return s.sess, nil
	}

	token, err := s.t.cookies.Get(s.r, s.t.name)
	if err != nil {
		if errors.Is(err, cookie.ErrCookieNotFound) {
			s.resolved = true
			return nil, nil
		}
		return nil, err
	}

	sess, err := s.t.manager.Resolve(s.r.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidToken) {
			s.resolved = true
			return nil, nil
		}
		return nil, err
	}

	s.resolved = true
	s.sess = sess
	return sess, nil
}

// Create starts a new session for accountID and binds the cookie to its
// token. The client IP is captured from the request unless overridden.
func (s *Scope) Create(accountID int64, opts ...session.CreateOption) (*session.Session, error) {
	opts = append([]session.CreateOption{session.WithIP(clientip.GetIP(s.r))}, opts...)

	sess, err := s.t.manager.StartNew(s.r.Context(), accountID, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.t.bind(s.w, sess); err != nil {
		return nil, err
	}

	s.resolved = true
	s.sess = sess
	return sess, nil
}

// Destroy removes the active session and clears the cookie. Returns false
// when no active session existed.
func (s *Scope) Destroy() (bool, error) {
	sess, err := s.Resolve()
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}

	ok, err := s.t.manager.Destroy(s.r.Context(), sess)
	if err != nil {
		return false, err
	}

	s.t.clear(s.w)
	s.sess = nil
	return ok, nil
}

// ResetTTL extends the active session's expiry, refreshes its client IP and
// re-binds the cookie with the new expiry. No-op without an active session.
func (s *Scope) ResetTTL(opts ...session.CreateOption) error {
	sess, err := s.Resolve()
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	opts = append([]session.CreateOption{session.WithIP(clientip.GetIP(s.r))}, opts...)
	if err := s.t.manager.ResetTTL(s.r.Context(), sess, opts...); err != nil {
		return err
	}
	return s.t.bind(s.w, sess)
}

// SetData merge-sets key into the active session's data bag.
// No-op without an active session.
func (s *Scope) SetData(key string, value any) error {
	sess, err := s.Resolve()
	if err != nil {
		return err
	}
	return s.t.manager.SetData(s.r.Context(), sess, key, value)
}

// GetData returns the value stored under key, or nil when absent.
func (s *Scope) GetData(key string) any {
	sess, err := s.Resolve()
	if err != nil || sess == nil {
		return nil
	}
	return s.t.manager.GetData(sess, key)
}

// Data returns the whole data bag of the active session; empty without one.
func (s *Scope) Data() (map[string]any, error) {
	sess, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	return s.t.manager.DataMap(sess)
}

// Account resolves the owning account of the active session. Returns nil
// when there is no active session or the account no longer exists.
func (s *Scope) Account() (*account.Account, error) {
	sess, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	acc, err := s.t.manager.Account(s.r.Context(), sess)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return acc, nil
}
