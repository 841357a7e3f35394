// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding and the
// error responses shared by every handler package.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, payload)
//	httputil.WriteStatusOK(w, map[string]any{"id": id})
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "invalid provider")
//	httputil.WriteUnauthorized(w, "client certificate required")
//	httputil.WriteForbidden(w, "certificate fingerprint mismatch")
//	httputil.WriteNotFoundError(w, "no such login request")
//	httputil.WriteInternalError(w, err)
//
// # Request Parsing
//
//	if err := httputil.RequireJSON(r); err != nil {
//		httputil.WriteBadRequest(w, err.Error())
//		return
//	}
//	var body map[string]any
//	if err := httputil.ParseJSON(r, &body); err != nil {
//		httputil.WriteBadRequest(w, err.Error())
//		return
//	}
package httputil
