package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/authbridge/authbridge/pkg/httputil"
	"github.com/authbridge/authbridge/pkg/provider"
	"github.com/authbridge/authbridge/pkg/settings"
	"github.com/authbridge/authbridge/pkg/store"
)

const statusPollInterval = time.Second

// RequestHandlers implements the login request lifecycle routes used by the
// automated client: open a request, hand the login URL to the browser, and
// long-poll for the authenticated profile.
type RequestHandlers struct {
	server *Server
}

// NewRequestHandlers creates the request handlers.
func NewRequestHandlers(server *Server) *RequestHandlers {
	return &RequestHandlers{server: server}
}

// RegisterRoutes registers the request routes.
func (h *RequestHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/requests/new/{userId}",
		h.server.requireClientCert(http.HandlerFunc(h.newRequest))).Methods("GET")
	router.Handle("/requests/status/{id}",
		h.server.requireClientCert(http.HandlerFunc(h.requestStatus))).Methods("GET")
}

// newRequest handles GET /requests/new/{userId}
func (h *RequestHandlers) newRequest(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	// an absent parameter is false; a present one, even empty, goes through
	// the truthiness rule
	forceAuthn := false
	if values, ok := r.URL.Query()["forceAuthn"]; ok && len(values) > 0 {
		forceAuthn = settings.Truth(values[0])
	}

	request, err := h.server.svc.StartRequest(r.Context(), userID, forceAuthn)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	providers, err := h.server.registry.Providers()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	base := strings.TrimSuffix(h.server.settings.GetString(settings.ServiceBaseURI), "/")

	response := map[string]any{
		"request":    request.ID,
		"userId":     userID,
		"forceAuthn": forceAuthn,
		"baseUrl":    base,
	}
	if len(providers) == 1 {
		response["loginUrl"] = loginURL(base, providers[0], request.ID)
	} else {
		choices := make([]map[string]string, 0, len(providers))
		for _, p := range providers {
			choices = append(choices, map[string]string{
				"id":       p.ID(),
				"label":    p.Label(),
				"loginUrl": loginURL(base, p, request.ID),
			})
		}
		response["providers"] = choices
	}
	httputil.WriteSuccess(w, response)
}

func loginURL(base string, p provider.Provider, requestID string) string {
	return base + "/" + p.Protocol() + "/login/" + requestID + "?providerId=" + p.ID()
}

// requestStatus handles GET /requests/status/{id}. The handler blocks until
// the login completes or the timeout passes; the profile is delivered to
// exactly one caller, after which the request is gone.
func (h *RequestHandlers) requestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["id"]
	ctx := r.Context()

	request, err := h.server.svc.FindRequest(ctx, requestID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if request.Completed {
		h.deliverProfile(w, r, request)
		return
	}

	timeout := settings.Seconds(h.server.settings.Get(settings.LoginTimeout), 60*time.Second)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			w.WriteHeader(http.StatusRequestTimeout)
			return
		case <-ticker.C:
			request, err := h.server.svc.FindRequest(ctx, requestID)
			if err != nil {
				// consumed by a competing poller or expired; keep waiting
				// so the response is a timeout rather than a spurious 404
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				h.writeStoreError(w, err)
				return
			}
			if request.Completed {
				h.deliverProfile(w, r, request)
				return
			}
		}
	}
}

// deliverProfile responds with the authenticated profile for a completed
// request, consuming the single-use user entry alongside it.
func (h *RequestHandlers) deliverProfile(w http.ResponseWriter, r *http.Request, request *store.Request) {
	profile := request.Payload
	if user, err := h.server.svc.GetUserByID(r.Context(), request.UserID); err == nil {
		profile = user.Profile
	}
	if h.server.metrics != nil && !request.Started.IsZero() {
		h.server.metrics.LoginDuration.Observe(time.Since(request.Started).Seconds())
	}
	httputil.WriteSuccess(w, profile)
}

func (h *RequestHandlers) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFoundError(w, "no such login request")
		return
	}
	h.server.logger.WithError(err).Error("store operation failed")
	httputil.WriteInternalError(w, err)
}
