// Package token signs and verifies the access and refresh bearer
// credentials issued by authgate. Verification is stateless; revocation
// checks live in the revocation package.
package token
