// Package middleware provides net/http middleware that attaches a
// per-request session scope to the request context, with an optional
// authentication gate.
package middleware
