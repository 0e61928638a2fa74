package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-bridge/internal/models"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
	"github.com/noah-isme/crm-bridge/pkg/response"
)

type tokenResolverStub struct {
	token string
	err   error

	lastPortalID string
}

func (s *tokenResolverStub) Resolve(ctx context.Context, portalID string) (string, error) {
	s.lastPortalID = portalID
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

type lineItemFetcherStub struct {
	items []models.LineItem

	lastToken     string
	lastCompanyID string
}

func (s *lineItemFetcherStub) Fetch(ctx context.Context, accessToken, companyID string) []models.LineItem {
	s.lastToken = accessToken
	s.lastCompanyID = companyID
	return s.items
}

func newLineItemRouter(tokens tokenResolver, items lineItemFetcher, exportsEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewLineItemHandler(tokens, items, exportsEnabled)

	router := gin.New()
	router.GET("/api/companies/:companyId/line-items", h.Get)
	return router
}

func lineItemRequest(target, portalID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if portalID != "" {
		req.Header.Set(PortalHeader, portalID)
	}
	return req
}

func TestLineItemGetRequiresPortalHeader(t *testing.T) {
	router := newLineItemRouter(&tokenResolverStub{}, &lineItemFetcherStub{}, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLineItemGetUnknownPortal(t *testing.T) {
	tokens := &tokenResolverStub{err: appErrors.ErrNoCredential}
	router := newLineItemRouter(tokens, &lineItemFetcherStub{}, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items", "42"))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "42", tokens.lastPortalID)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNoCredential.Code, envelope.Error.Code)
}

func TestLineItemGetSuccess(t *testing.T) {
	tokens := &tokenResolverStub{token: "a1"}
	items := &lineItemFetcherStub{items: []models.LineItem{
		{DealName: "Big Deal", LineItemName: "Widget", Quantity: 2, UnitPrice: 9.5, Amount: 19},
	}}
	router := newLineItemRouter(tokens, items, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items", "42"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", items.lastToken)
	assert.Equal(t, "c1", items.lastCompanyID)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "c1", payload["company_id"])
	assert.Equal(t, float64(1), payload["count"])
	require.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestLineItemGetEmptyResultIsOK(t *testing.T) {
	router := newLineItemRouter(&tokenResolverStub{token: "a1"}, &lineItemFetcherStub{items: []models.LineItem{}}, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items", "42"))

	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), payload["count"])
}

func TestLineItemGetCSVExport(t *testing.T) {
	items := &lineItemFetcherStub{items: []models.LineItem{
		{DealName: "Big Deal", LineItemName: "Widget", Quantity: 2, UnitPrice: 9.5, Amount: 19},
	}}
	router := newLineItemRouter(&tokenResolverStub{token: "a1"}, items, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items?format=csv", "42"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "line-items-c1.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Deal,Line Item,Quantity,Unit Price,Amount", strings.TrimSpace(lines[0]))
	assert.Equal(t, "Big Deal,Widget,2,9.5,19", strings.TrimSpace(lines[1]))
}

func TestLineItemGetPDFExport(t *testing.T) {
	items := &lineItemFetcherStub{items: []models.LineItem{
		{DealName: "Big Deal", LineItemName: "Widget", Quantity: 2, UnitPrice: 9.5, Amount: 19},
	}}
	router := newLineItemRouter(&tokenResolverStub{token: "a1"}, items, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items?format=pdf", "42"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestLineItemGetUnsupportedFormat(t *testing.T) {
	router := newLineItemRouter(&tokenResolverStub{token: "a1"}, &lineItemFetcherStub{}, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items?format=xlsx", "42"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLineItemGetExportsDisabled(t *testing.T) {
	router := newLineItemRouter(&tokenResolverStub{token: "a1"}, &lineItemFetcherStub{}, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, lineItemRequest("/api/companies/c1/line-items?format=csv", "42"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
