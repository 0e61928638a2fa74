package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
	"github.com/noah-isme/crm-bridge/pkg/response"
)

const signatureHeader = "X-HubSpot-Signature-V3"

// VerifySignature rejects requests whose X-HubSpot-Signature-V3 header
// does not match the HMAC-SHA256 of the raw body under the webhook
// secret. Requests without the header pass through untouched; signature
// enforcement only applies to traffic HubSpot itself originates.
func VerifySignature(secret string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		signature := c.GetHeader(signatureHeader)
		if signature == "" {
			c.Next()
			return
		}
		if secret == "" {
			logger.Warn("signature header present but no webhook secret configured")
			response.Error(c, appErrors.ErrSignature)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(signature), []byte(expected)) {
			logger.Warn("webhook signature mismatch", zap.String("path", c.Request.URL.Path))
			response.Error(c, appErrors.ErrSignature)
			return
		}

		c.Next()
	}
}
