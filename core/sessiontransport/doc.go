// Package sessiontransport carries the session token between the store and
// the client via an HTTP cookie.
//
// Cookie is the long-lived transport; Scope is its per-request view. A Scope
// memoizes the resolved session, so handlers can call Resolve, GetData or
// Account repeatedly and storage is queried once. Scopes are request-local
// by construction and must never be shared across requests.
//
//	scope := transport.Scope(w, r)
//	sess, err := scope.Resolve()   // nil sess == not signed in
//	...
//	sess, err = scope.Create(accountID) // on login: evicts primary, binds cookie
//	ok, err := scope.Destroy()          // on logout: clears cookie
package sessiontransport
