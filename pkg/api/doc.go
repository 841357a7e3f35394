// Package api provides the HTTP surface of the service: the administrative
// settings and provider registry routes, the login request lifecycle used by
// automated clients, and the browser-facing SAML and OIDC handshake
// endpoints.
//
// Administrative routes require the configured bearer credential and pass
// the client certificate authorization engine; the request lifecycle routes
// pass only the certificate engine, since the automated client authenticates
// with its TLS client certificate alone.
package api
