// Package session manages the authenticated-session lifecycle: issuing,
// resolving, renewing and revoking sessions bound to an opaque client-held
// token, over interchangeable storage backends.
//
// # Components
//
//   - Session: the record, pure state.
//   - Store: the backend contract, implemented by PGStore (relational,
//     timestamp-filtered expiry, explicit sweep) and RedisStore (key-value,
//     native key expiry, self-cleaning).
//   - Manager: the façade application code talks to.
//
// # Usage
//
//	store := session.NewPGStore(pool, cfg.LiveTTL)
//	mgr := session.NewManager(store, cfg, session.WithResolver(accounts))
//
//	sess, err := mgr.StartNew(ctx, accountID, session.WithIP(ip))
//	// later, from the cookie token:
//	sess, err = mgr.Resolve(ctx, token)
//
// Backend selection is a construction-time decision driven by Config.Driver;
// call sites never switch on the backend type.
//
// # Primary and shadow sessions
//
// An account holds at most one primary session: creating a new one evicts the
// old as part of the same store operation (a transaction on postgres, a
// WATCH-guarded pointer swap on redis). Sessions created with WithShadow
// coexist with the primary and are exempt from eviction in both directions.
//
// # Liveness
//
// Separately from the absolute expiry, each session carries a short-lived
// activity marker refreshed lazily at resolve time. Count(ctx, false) counts
// sessions within that window, approximating currently-active accounts;
// Count(ctx, true) counts everything stored, which on the relational backend
// includes expired rows until DeleteAll(ctx, false) sweeps them.
//
// # Errors
//
// Absence is ErrNotFound and is a normal outcome, not a failure. Backend
// transport failures are joined with ErrStorage so callers can decide to fail
// the request or degrade to logged-out. ErrTokenGeneration is the one fatal
// condition and should never occur given 256-bit tokens.
package session
