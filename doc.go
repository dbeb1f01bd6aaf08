// Package authcore implements the authentication core of an identity
// service: credential validation with brute-force lockout, TOTP and SMS
// multi-factor challenges, session lifecycle with a concurrency cap,
// device-trust-based MFA bypass, and RS256 token issuance under rotating
// signing keys.
//
// State lives in a TTL-capable Redis store shared by all service
// instances; the relational user store stays behind the UserStore
// interface. Every security-relevant transition is appended to a durable
// event log before asynchronous publication.
//
// Construct an Authenticator with the Builder:
//
//	auth, err := authcore.New().
//		WithRedis(client).
//		WithUserStore(users).
//		WithSMSSender(sender).
//		Build()
package authcore
