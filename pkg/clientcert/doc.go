// Package clientcert gates administrative endpoints with mutual-TLS client
// certificate checks.
//
// # Overview
//
// The engine consumes the connection's TLS state as established by the HTTP
// server: the server is configured with tls.VerifyClientCertIfGiven against
// the pool built by LoadAuthorityCerts, so the chain-trust outcome arrives as
// VerifiedChains. Fingerprint and common-name allow-lists are applied only
// after trust verification — they narrow an already-trusted population
// rather than substituting for trust, so an attacker without a CA-issued
// certificate cannot pass by guessing a fingerprint string.
//
// Each failure mode maps to a distinct, stable error (certificate missing,
// untrusted chain, fingerprint mismatch, common-name mismatch) so operators
// can diagnose misconfiguration from the response alone.
package clientcert
