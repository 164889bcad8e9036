// Package account holds the account entity, the Resolver contract the
// session manager consumes, a postgres resolver implementation, and the
// bcrypt credential helpers. Password hashing is a black box to the rest of
// the module: HashPassword produces a digest, VerifyPassword checks one.
package account
