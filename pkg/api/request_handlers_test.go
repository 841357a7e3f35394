package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authbridge/authbridge/pkg/settings"
)

func TestNewRequestSingleProvider(t *testing.T) {
	ts := newTestServer(t, map[string]any{settings.AuthProviders: singleOIDCProvider})

	rec := ts.do(t, "GET", "/requests/new/joeuser", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response["request"])
	assert.Equal(t, "joeuser", response["userId"])
	assert.Equal(t, false, response["forceAuthn"])
	loginURL, _ := response["loginUrl"].(string)
	assert.Contains(t, loginURL, "https://auth.example.com/oidc/login/")
	assert.Contains(t, loginURL, "providerId=oidc-0")
}

func TestNewRequestForceAuthn(t *testing.T) {
	ts := newTestServer(t, map[string]any{settings.AuthProviders: singleOIDCProvider})

	rec := ts.do(t, "GET", "/requests/new/joeuser?forceAuthn=true", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, true, response["forceAuthn"])

	// a present but empty value is not "false" and coerces to true
	rec = ts.do(t, "GET", "/requests/new/joeuser?forceAuthn=", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	response = map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, true, response["forceAuthn"])

	// an explicit false string stays false
	rec = ts.do(t, "GET", "/requests/new/joeuser?forceAuthn=false", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	response = map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, false, response["forceAuthn"])
}

func TestNewRequestMultipleProviders(t *testing.T) {
	ts := newTestServer(t, map[string]any{
		settings.AuthProviders: `{"providers":[
			{"protocol":"oidc","issuerUri":"https://alpha.example.com","clientId":"c","clientSecret":"s"},
			{"protocol":"saml","signonUrl":"https://bravo.example.com/sso"}
		]}`,
	})

	rec := ts.do(t, "GET", "/requests/new/joeuser", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Request   string `json:"request"`
		LoginURL  string `json:"loginUrl"`
		Providers []struct {
			ID       string `json:"id"`
			LoginURL string `json:"loginUrl"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Empty(t, response.LoginURL)
	require.Len(t, response.Providers, 2)
	assert.Equal(t, "oidc-0", response.Providers[0].ID)
	assert.Equal(t, "saml-1", response.Providers[1].ID)
}

func TestRequestStatusUnknown(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, "GET", "/requests/status/nonesuch", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestStatusTimesOut(t *testing.T) {
	ts := newTestServer(t, map[string]any{
		settings.AuthProviders: singleOIDCProvider,
		settings.LoginTimeout:  "1",
	})

	request, err := ts.svc.StartRequest(context.Background(), "joeuser", false)
	require.NoError(t, err)

	start := time.Now()
	rec := ts.do(t, "GET", "/requests/status/"+request.ID, "", false)
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestRequestStatusDeliversOnce(t *testing.T) {
	ts := newTestServer(t, map[string]any{settings.AuthProviders: singleOIDCProvider})
	ctx := context.Background()

	request, err := ts.svc.StartRequest(ctx, "joeuser", false)
	require.NoError(t, err)
	_, err = ts.svc.ReceiveUserProfile(ctx, request.ID, map[string]any{"email": "joe@example.com"})
	require.NoError(t, err)

	rec := ts.do(t, "GET", "/requests/status/"+request.ID, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "joe@example.com", profile["email"])

	// the completed request was consumed by the first delivery
	rec = ts.do(t, "GET", "/requests/status/"+request.ID, "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestStatusWaitsForCompletion(t *testing.T) {
	ts := newTestServer(t, map[string]any{
		settings.AuthProviders: singleOIDCProvider,
		settings.LoginTimeout:  "5",
	})
	ctx := context.Background()

	request, err := ts.svc.StartRequest(ctx, "joeuser", false)
	require.NoError(t, err)

	go func() {
		time.Sleep(1200 * time.Millisecond)
		ts.svc.ReceiveUserProfile(ctx, request.ID, map[string]any{"email": "joe@example.com"})
	}()

	rec := ts.do(t, "GET", "/requests/status/"+request.ID, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "joe@example.com", profile["email"])
}
