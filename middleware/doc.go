// Package middleware provides net/http adapters over the authgate
// service: the bearer-token guard and the rate-limit gate.
//
// # What this package must NOT do
//
//   - Reveal why a credential was rejected. All unauthorized subkinds
//     collapse to one generic 401.
//   - Allow gated traffic through when the counter store is down.
package middleware
