// Package cookie provides HTTP cookie read/write with shared secure
// defaults (Path=/, HttpOnly, SameSite Lax) and per-call overrides via
// functional options. The session transport uses it to bind and clear the
// session cookie; nothing here knows what a session is.
package cookie
