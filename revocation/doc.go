// Package revocation implements the token-ID blacklist consulted on every
// verification. Lookups fail closed: if Redis is unreachable the caller
// must reject the token rather than risk replay of revoked credentials.
package revocation
