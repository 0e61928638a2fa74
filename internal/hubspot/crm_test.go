package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-bridge/pkg/config"
)

func newTestCRMClient(serverURL string) *HTTPCRMClient {
	return NewCRMClient(config.HubSpotConfig{APIBaseURL: serverURL}, nil)
}

func TestCRMClientQueryCompanyLineItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/companies/graphql", r.URL.Path)
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))

		var payload struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Contains(t, payload.Query, "GetCompanyLineItems")
		assert.Equal(t, "c1", payload.Variables["companyId"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {"CRM": {"company": {"associations": {"deals": {"items": [
				{"id": "d1",
				 "properties": {"dealname": "Big Deal"},
				 "associations": {"lineItems": {"items": [
					{"id": "li1", "properties": {"name": "Widget", "quantity": 2, "price": 9.5, "amount": 19}}
				 ]}}}
			]}}}}}
		}`))
	}))
	defer server.Close()

	resp, err := newTestCRMClient(server.URL).QueryCompanyLineItems(context.Background(), "a1", "c1")
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
	require.NotNil(t, resp.Data.CRM)
	require.NotNil(t, resp.Data.CRM.Company)
	deals := resp.Data.CRM.Company.Associations.Deals.Items
	require.Len(t, deals, 1)
	assert.Equal(t, "Big Deal", deals[0].Properties["dealname"])
	require.NotNil(t, deals[0].Associations)
	items := deals[0].Associations.LineItems.Items
	require.Len(t, items, 1)
	assert.Equal(t, float64(2), items[0].Properties["quantity"])
}

func TestCRMClientQueryStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"graphql not enabled for this portal"}`))
	}))
	defer server.Close()

	_, err := newTestCRMClient(server.URL).QueryCompanyLineItems(context.Background(), "a1", "c1")
	require.Error(t, err)

	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestCRMClientQueryDecodesErrorList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"field deals not found"}]}`))
	}))
	defer server.Close()

	resp, err := newTestCRMClient(server.URL).QueryCompanyLineItems(context.Background(), "a1", "c1")
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "field deals not found", resp.Errors[0].Message)
}

func TestCRMClientListDealAssociations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/companies/c1/associations/deals", r.URL.Path)
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"results":[{"id":"d1","type":"company_to_deal"},{"id":"d2","type":"company_to_deal"}]}`))
	}))
	defer server.Close()

	assocs, err := newTestCRMClient(server.URL).ListDealAssociations(context.Background(), "a1", "c1")
	require.NoError(t, err)
	require.Len(t, assocs, 2)
	assert.Equal(t, "d1", assocs[0].ID)
}

func TestCRMClientGetDeal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/deals/d1", r.URL.Path)
		w.Write([]byte(`{"id":"d1","properties":{"dealname":"Big Deal","amount":"19"}}`))
	}))
	defer server.Close()

	deal, err := newTestCRMClient(server.URL).GetDeal(context.Background(), "a1", "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", deal.ID)
	assert.Equal(t, "Big Deal", deal.Properties["dealname"])
}

func TestCRMClientListLineItemAssociations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/deals/d1/associations/line_items", r.URL.Path)
		w.Write([]byte(`{"results":[{"id":"li1","type":"deal_to_line_item"}]}`))
	}))
	defer server.Close()

	assocs, err := newTestCRMClient(server.URL).ListLineItemAssociations(context.Background(), "a1", "d1")
	require.NoError(t, err)
	require.Len(t, assocs, 1)
	assert.Equal(t, "li1", assocs[0].ID)
}

func TestCRMClientGetLineItemNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/line_items/li1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}))
	defer server.Close()

	_, err := newTestCRMClient(server.URL).GetLineItem(context.Background(), "a1", "li1")
	require.Error(t, err)

	statusErr, ok := err.(*StatusError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
