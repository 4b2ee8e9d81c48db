// Package authgate manages the lifecycle of bearer credentials: issuance,
// rotation, and revocation of access/refresh token pairs, per-user session
// bookkeeping, and the request-rate governor that fronts the whole surface.
//
// All coordination happens through atomic single-key Redis operations;
// no multi-key transactions are assumed. Multi-step sequences that must
// not race (capacity-check-then-register) run as server-side Lua scripts;
// the remaining documented races (double rotation) are accepted
// at-least-once semantics.
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Service], [Builder],
// [Config], and value types. The four components live in their own
// packages: token (credential encoder), session (registry),
// revocation (ledger), rate (governor).
//
// # Failure policy
//
// Verification and gating fail closed. A token whose revocation status
// cannot be determined is unauthorized; a gated request that cannot reach
// the counter store is rejected, never silently allowed.
package authgate
