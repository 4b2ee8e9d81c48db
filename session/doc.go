// Package session implements the capacity-bounded per-user session
// registry. Sessions live in a Redis hash keyed by token ID alongside a
// refresh-token metadata record; every write carries a TTL no longer than
// the refresh-credential lifetime.
//
// The registry owns the link between session removal and token
// revocation: revoking a session always blacklists its token ID through
// the injected ledger before the session record is deleted.
package session
