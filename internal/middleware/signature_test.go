package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSignatureRouter(secret string) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)

	var seenBody string
	router := gin.New()
	router.Use(VerifySignature(secret, nil))
	router.POST("/api/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		seenBody = string(body)
		c.Status(http.StatusOK)
	})
	return router, &seenBody
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAbsentHeaderPasses(t *testing.T) {
	router, _ := newSignatureRouter("secret")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifySignatureValid(t *testing.T) {
	router, seenBody := newSignatureRouter("secret")
	body := `{"companyId":"c1"}`

	req := httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader(body))
	req.Header.Set("X-HubSpot-Signature-V3", sign("secret", body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// The middleware must leave the body readable for the handler.
	assert.Equal(t, body, *seenBody)
}

func TestVerifySignatureMismatch(t *testing.T) {
	router, _ := newSignatureRouter("secret")

	req := httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader(`{}`))
	req.Header.Set("X-HubSpot-Signature-V3", sign("wrong-secret", `{}`))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifySignatureNoSecretConfigured(t *testing.T) {
	router, _ := newSignatureRouter("")

	req := httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader(`{}`))
	req.Header.Set("X-HubSpot-Signature-V3", sign("anything", `{}`))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
