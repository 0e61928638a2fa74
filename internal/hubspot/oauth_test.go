package hubspot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-bridge/pkg/config"
)

func newTestOAuthClient(serverURL string) *HTTPOAuthClient {
	return NewOAuthClient(config.HubSpotConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://bridge.example/oauth/callback",
		APIBaseURL:   serverURL,
	}, nil)
}

func TestOAuthClientExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/v1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostFormValue("grant_type"))
		assert.Equal(t, "client-id", r.PostFormValue("client_id"))
		assert.Equal(t, "client-secret", r.PostFormValue("client_secret"))
		assert.Equal(t, "https://bridge.example/oauth/callback", r.PostFormValue("redirect_uri"))
		assert.Equal(t, "auth-code", r.PostFormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","expires_in":1800,"token_type":"bearer"}`))
	}))
	defer server.Close()

	token, err := newTestOAuthClient(server.URL).ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "a1", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)
	assert.Equal(t, int64(1800), token.ExpiresIn)
}

func TestOAuthClientRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		assert.Equal(t, "r1", r.PostFormValue("refresh_token"))
		assert.Empty(t, r.PostFormValue("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a2","expires_in":1800}`))
	}))
	defer server.Close()

	token, err := newTestOAuthClient(server.URL).RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", token.AccessToken)
}

func TestOAuthClientExchangeCodeUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","message":"invalid code"}`))
	}))
	defer server.Close()

	_, err := newTestOAuthClient(server.URL).ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "invalid code")
}

func TestOAuthClientExchangeCodeMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":1800}`))
	}))
	defer server.Close()

	_, err := newTestOAuthClient(server.URL).ExchangeCode(context.Background(), "auth-code")
	assert.ErrorContains(t, err, "missing access_token")
}

func TestOAuthClientIntrospect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/oauth/v1/access-tokens/a1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hub_id":42,"scopes":["crm.objects.read"],"user":"ops@example.com"}`))
	}))
	defer server.Close()

	meta, err := newTestOAuthClient(server.URL).Introspect(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "42", meta.PortalID())
}

func TestOAuthClientIntrospectMissingHubID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":"ops@example.com"}`))
	}))
	defer server.Close()

	_, err := newTestOAuthClient(server.URL).Introspect(context.Background(), "a1")
	assert.ErrorContains(t, err, "missing hub_id")
}
