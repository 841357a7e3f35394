package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authbridge/authbridge/pkg/settings"
)

func TestSettingsRequireBearerToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", "/settings", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := ts.do(t, "GET", "/settings", "", true)
	assert.Equal(t, http.StatusOK, req.Code)
}

func TestSettingsDisabledWithoutToken(t *testing.T) {
	ts := newTestServer(t, map[string]any{settings.AdminAPIToken: ""})

	rec := ts.do(t, "GET", "/settings", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetSettingsMerged(t *testing.T) {
	ts := newTestServer(t, map[string]any{"SVC_BASE_URI": "https://auth.example.com"})

	rec := ts.do(t, "GET", "/settings", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var merged map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, "https://auth.example.com", merged["SVC_BASE_URI"])
	assert.Equal(t, "300", merged["CACHE_TTL"], "defaults show through")
}

func TestPostSettingsStagesEdits(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "POST", "/settings", `{"CACHE_TTL":"600"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, "GET", "/settings", "", true)
	var merged map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &merged))
	assert.Equal(t, "600", merged["CACHE_TTL"])
}

func TestPostSettingsRejectsNonJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	req := ts.do(t, "POST", "/settings", "", true)
	assert.Equal(t, http.StatusBadRequest, req.Code)
}

func TestApplySettingsSetsLocation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "POST", "/settings/apply", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://auth.example.com", rec.Header().Get("Location"))
}

func TestProviderCRUD(t *testing.T) {
	ts := newTestServer(t, nil)

	// create
	rec := ts.do(t, "POST", "/settings/providers",
		`{"protocol":"oidc","issuerUri":"https://oidc.example.com","clientId":"c","clientSecret":"s","clientKey":"private"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "ok", created["status"])
	id, ok := created["id"].(string)
	require.True(t, ok)
	assert.Equal(t, "oidc-0", id)

	// list conceals key material
	rec = ts.do(t, "GET", "/settings/providers", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Providers []map[string]any `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Providers, 1)
	assert.NotContains(t, listed.Providers[0], "clientKey")

	// fetch one
	rec = ts.do(t, "GET", "/settings/providers/"+id, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "https://oidc.example.com", fetched["issuerUri"])
	assert.NotContains(t, fetched, "clientKey")

	// update
	rec = ts.do(t, "PUT", "/settings/providers/"+id,
		`{"protocol":"oidc","issuerUri":"https://oidc.example.com","clientId":"updated","clientSecret":"s"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, "GET", "/settings/providers/"+id, "", true)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "updated", fetched["clientId"])

	// delete
	rec = ts.do(t, "DELETE", "/settings/providers/"+id, "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, "GET", "/settings/providers/"+id, "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderNotFoundSemantics(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", "/settings/providers/oidc-9", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, "PUT", "/settings/providers/oidc-9",
		`{"protocol":"oidc","issuerUri":"https://x","clientId":"c","clientSecret":"s"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code, "update never creates")

	rec = ts.do(t, "DELETE", "/settings/providers/oidc-9", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderCreateRejectsInvalid(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "POST", "/settings/providers", `{"protocol":"oidc"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
