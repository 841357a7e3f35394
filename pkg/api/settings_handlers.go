package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/authbridge/authbridge/pkg/httputil"
	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
)

// SettingsHandlers implements the administrative settings API. Edits land in
// the temporary layer and only reach the persisted file on apply, so an
// administrator can stage a set of related changes and commit them at once.
type SettingsHandlers struct {
	server *Server
}

// NewSettingsHandlers creates the settings handlers.
func NewSettingsHandlers(server *Server) *SettingsHandlers {
	return &SettingsHandlers{server: server}
}

// RegisterRoutes registers the settings routes. The router is expected to
// already carry the credential and client certificate middleware.
func (h *SettingsHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("", h.getSettings).Methods("GET")
	router.HandleFunc("", h.updateSettings).Methods("POST")
	router.HandleFunc("/apply", h.applySettings).Methods("POST")

	router.HandleFunc("/providers", h.listProviders).Methods("GET")
	router.HandleFunc("/providers", h.createProvider).Methods("POST")
	router.HandleFunc("/providers/{id}", h.getProvider).Methods("GET")
	router.HandleFunc("/providers/{id}", h.updateProvider).Methods("PUT")
	router.HandleFunc("/providers/{id}", h.deleteProvider).Methods("DELETE")
}

// getSettings handles GET /settings
func (h *SettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	merged := make(map[string]string)
	for _, key := range h.server.settings.Keys() {
		merged[key] = h.server.settings.GetString(key)
	}
	httputil.WriteSuccess(w, merged)
}

// updateSettings handles POST /settings
func (h *SettingsHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	if err := httputil.RequireJSON(r); err != nil {
		httputil.WriteBadRequest(w, "request body must be JSON")
		return
	}
	var edits map[string]any
	if err := httputil.ParseJSON(r, &edits); err != nil {
		httputil.WriteBadRequest(w, "malformed JSON body")
		return
	}
	for key, value := range edits {
		if value == nil {
			h.server.settings.Delete(key)
			continue
		}
		h.server.settings.Set(key, value)
	}
	httputil.WriteStatusOK(w, nil)
}

// applySettings handles POST /settings/apply
func (h *SettingsHandlers) applySettings(w http.ResponseWriter, r *http.Request) {
	h.server.settings.Apply()
	if h.server.file != nil {
		if err := h.server.file.Save(); err != nil {
			h.server.logger.WithError(err).Error("failed to persist settings")
			httputil.WriteInternalError(w, err)
			return
		}
	}
	// constructed protocol handles may reference stale configuration
	h.server.hub.Reset()
	h.server.updateProviderGauge()
	if base := h.server.settings.GetString(settings.ServiceBaseURI); base != "" {
		w.Header().Set("Location", base)
	}
	h.server.logger.Info("settings applied")
	httputil.WriteStatusOK(w, nil)
}

// listProviders handles GET /settings/providers
func (h *SettingsHandlers) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.server.registry.Providers()
	if err != nil {
		h.writeProviderError(w, err)
		return
	}
	concealed := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		concealed = append(concealed, p.Concealed())
	}
	httputil.WriteSuccess(w, map[string]any{"providers": concealed})
}

// createProvider handles POST /settings/providers
func (h *SettingsHandlers) createProvider(w http.ResponseWriter, r *http.Request) {
	var entry provider.Provider
	if err := httputil.ParseJSON(r, &entry); err != nil {
		httputil.WriteBadRequest(w, "malformed JSON body")
		return
	}
	id, err := h.server.registry.Add(entry)
	if err != nil {
		h.writeProviderError(w, err)
		return
	}
	h.server.updateProviderGauge()
	httputil.WriteStatusOK(w, map[string]any{"id": id})
}

// getProvider handles GET /settings/providers/{id}
func (h *SettingsHandlers) getProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.server.registry.Find(mux.Vars(r)["id"])
	if err != nil {
		h.writeProviderError(w, err)
		return
	}
	httputil.WriteSuccess(w, p.Concealed())
}

// updateProvider handles PUT /settings/providers/{id}
func (h *SettingsHandlers) updateProvider(w http.ResponseWriter, r *http.Request) {
	var entry provider.Provider
	if err := httputil.ParseJSON(r, &entry); err != nil {
		httputil.WriteBadRequest(w, "malformed JSON body")
		return
	}
	entry[provider.FieldID] = mux.Vars(r)["id"]
	if err := h.server.registry.Update(entry); err != nil {
		h.writeProviderError(w, err)
		return
	}
	httputil.WriteStatusOK(w, nil)
}

// deleteProvider handles DELETE /settings/providers/{id}
func (h *SettingsHandlers) deleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.server.registry.Delete(mux.Vars(r)["id"]); err != nil {
		h.writeProviderError(w, err)
		return
	}
	h.server.updateProviderGauge()
	httputil.WriteStatusOK(w, nil)
}

func (h *SettingsHandlers) writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrUnknownProvider):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, provider.ErrInvalidProvider):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.server.logger.WithError(err).Error("provider operation failed")
		httputil.WriteInternalError(w, err)
	}
}

func (s *Server) updateProviderGauge() {
	if s.metrics == nil {
		return
	}
	if providers, err := s.registry.Providers(); err == nil {
		s.metrics.ProvidersConfigured.Set(float64(len(providers)))
	}
}
