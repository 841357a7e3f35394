package api

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/authbridge/authbridge/pkg/httputil"
	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/store"
)

const loginSuccessPage = `<!DOCTYPE html>
<html><head><title>Login Successful</title></head>
<body><h1>Login Successful</h1><p>You may close this window.</p></body></html>`

// LoginHandlers implements the browser-facing SAML and OIDC handshake
// endpoints. The login request identifier rides through the handshake as the
// SAML relay state or the OAuth2 state parameter.
type LoginHandlers struct {
	server *Server
}

// NewLoginHandlers creates the login handlers.
func NewLoginHandlers(server *Server) *LoginHandlers {
	return &LoginHandlers{server: server}
}

// RegisterRoutes registers the handshake routes.
func (h *LoginHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/saml/metadata", h.samlMetadata).Methods("GET")
	router.HandleFunc("/saml/login/{id}", h.samlLogin).Methods("GET")
	router.HandleFunc("/saml/sso", h.samlConsume).Methods("POST")
	router.HandleFunc("/saml/logout", h.samlLogout).Methods("GET")
	router.HandleFunc("/oidc/login/{id}", h.oidcLogin).Methods("GET")
	router.HandleFunc("/oidc/callback", h.oidcCallback).Methods("GET")
}

// samlMetadata handles GET /saml/metadata
func (h *LoginHandlers) samlMetadata(w http.ResponseWriter, r *http.Request) {
	metadata, err := h.server.hub.Metadata(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	raw, err := xml.MarshalIndent(metadata, "", "  ")
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, xml.Header)
	w.Write(raw)
}

// samlLogin handles GET /saml/login/{id}
func (h *LoginHandlers) samlLogin(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	p, err := h.resolveProvider(r, provider.ProtocolSAML)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	if _, err := h.server.svc.AssignProvider(r.Context(), requestID, p.ID()); err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	authURL, err := h.server.hub.AuthURL(r.Context(), p, requestID)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	h.countLogin(provider.ProtocolSAML, "started")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// samlConsume handles POST /saml/sso
func (h *LoginHandlers) samlConsume(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteBadRequest(w, "malformed form body")
		return
	}
	requestID := r.FormValue("RelayState")
	encodedResponse := r.FormValue("SAMLResponse")
	if requestID == "" || encodedResponse == "" {
		httputil.WriteBadRequest(w, "missing RelayState or SAMLResponse")
		return
	}
	request, err := h.server.svc.FindRequest(r.Context(), requestID)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	p, err := h.server.registry.Find(request.Provider)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	assertion, err := h.server.hub.ValidateResponse(r.Context(), p, encodedResponse)
	if err != nil {
		h.countLogin(provider.ProtocolSAML, "failure")
		h.server.logger.WithError(err).Warn("SAML response rejected")
		httputil.WriteBadRequest(w, "invalid SAML response")
		return
	}
	profile := make(map[string]any, len(assertion.Attributes)+2)
	for name, value := range assertion.Attributes {
		profile[name] = value
	}
	profile["nameID"] = assertion.NameID
	if assertion.SessionIndex != "" {
		profile["sessionIndex"] = assertion.SessionIndex
	}
	if _, err := h.server.svc.ReceiveUserProfile(r.Context(), requestID, profile); err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	h.countLogin(provider.ProtocolSAML, "success")
	h.writeSuccessPage(w)
}

// samlLogout handles GET /saml/logout
func (h *LoginHandlers) samlLogout(w http.ResponseWriter, r *http.Request) {
	p, err := h.resolveProvider(r, provider.ProtocolSAML)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolSAML, err)
		return
	}
	if logoutURL := p.GetString(provider.FieldLogoutURL); logoutURL != "" {
		http.Redirect(w, r, logoutURL, http.StatusFound)
		return
	}
	httputil.WriteStatusOK(w, nil)
}

// oidcLogin handles GET /oidc/login/{id}
func (h *LoginHandlers) oidcLogin(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	p, err := h.resolveProvider(r, provider.ProtocolOIDC)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	if _, err := h.server.svc.AssignProvider(r.Context(), requestID, p.ID()); err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	client, err := h.server.hub.OpenIDClient(r.Context(), p)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	h.countLogin(provider.ProtocolOIDC, "started")
	// the request identifier doubles as state and nonce
	http.Redirect(w, r, client.AuthURL(requestID, requestID), http.StatusFound)
}

// oidcCallback handles GET /oidc/callback
func (h *LoginHandlers) oidcCallback(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if requestID == "" || code == "" {
		httputil.WriteBadRequest(w, "missing state or code")
		return
	}
	request, err := h.server.svc.FindRequest(r.Context(), requestID)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	p, err := h.server.registry.Find(request.Provider)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	client, err := h.server.hub.OpenIDClient(r.Context(), p)
	if err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	claims, err := client.Exchange(r.Context(), code, requestID)
	if err != nil {
		h.countLogin(provider.ProtocolOIDC, "failure")
		h.server.logger.WithError(err).Warn("OIDC code exchange rejected")
		httputil.WriteBadRequest(w, "invalid authorization response")
		return
	}
	if _, err := h.server.svc.ReceiveUserProfile(r.Context(), requestID, claims); err != nil {
		h.writeLoginError(w, provider.ProtocolOIDC, err)
		return
	}
	h.countLogin(provider.ProtocolOIDC, "success")
	h.writeSuccessPage(w)
}

// resolveProvider picks the registry entry for a handshake: an explicit
// providerId query parameter wins, otherwise a single configured provider is
// the default.
func (h *LoginHandlers) resolveProvider(r *http.Request, protocol string) (provider.Provider, error) {
	var p provider.Provider
	var err error
	if id := r.URL.Query().Get("providerId"); id != "" {
		p, err = h.server.registry.Find(id)
	} else {
		p, err = h.server.registry.Default()
	}
	if err != nil {
		return nil, err
	}
	if p.Protocol() != protocol {
		return nil, fmt.Errorf("%w: %s is not a %s provider", provider.ErrUnknownProvider, p.ID(), protocol)
	}
	return p, nil
}

func (h *LoginHandlers) writeLoginError(w http.ResponseWriter, protocol string, err error) {
	h.countLogin(protocol, "failure")
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFoundError(w, "no such login request")
	case errors.Is(err, provider.ErrUnknownProvider):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, provider.ErrInvalidProvider):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.server.logger.WithError(err).Error("login handshake failed")
		httputil.WriteInternalError(w, err)
	}
}

func (h *LoginHandlers) writeSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginSuccessPage)
}

func (h *LoginHandlers) countLogin(protocol, outcome string) {
	if h.server.metrics != nil {
		h.server.metrics.LoginRequestsTotal.WithLabelValues(protocol, outcome).Inc()
	}
}
