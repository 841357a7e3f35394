// Package login implements the authentication brokering workflow. A client
// opens a login request and long-polls for its result while the user's
// browser walks the SAML or OIDC handshake with the configured identity
// provider; the validated profile is delivered back through the request
// exactly once.
package login
