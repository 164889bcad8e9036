package sessiontransport

import (
	"github.com/mardix/voodoo-doll-auth/core/cookie"
	"github.com/mardix/voodoo-doll-auth/core/session"
)

// CookieConfig provides environment-based configuration for the cookie
// transport.
type CookieConfig struct {
	// CookieName is the name of the session cookie.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"__voodoo_session"`
}

// DefaultCookieConfig returns a CookieConfig with sensible defaults.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{CookieName: "__voodoo_session"}
}

// NewCookieFromConfig creates a cookie-based session transport from
// configuration. The session and cookie managers are provided by the caller.
func NewCookieFromConfig(cfg CookieConfig, mgr *session.Manager, cookies *cookie.Manager) *Cookie {
	return NewCookie(mgr, cookies, cfg.CookieName)
}
