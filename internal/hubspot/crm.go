package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/crm-bridge/pkg/config"
)

// companyLineItemsQuery expresses the company → deals → line items
// traversal in a single round trip.
const companyLineItemsQuery = `
query GetCompanyLineItems($companyId: ID!) {
  CRM {
    company(uniqueIdentifier: $companyId) {
      associations {
        deals {
          items {
            id
            properties {
              dealname
            }
            associations {
              lineItems {
                items {
                  id
                  properties {
                    name
                    quantity
                    price
                    amount
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

// CRMClient covers the structured-query endpoint and the REST endpoints
// needed for the fallback traversal.
type CRMClient interface {
	QueryCompanyLineItems(ctx context.Context, accessToken, companyID string) (*GraphQLResponse, error)
	ListDealAssociations(ctx context.Context, accessToken, companyID string) ([]Association, error)
	GetDeal(ctx context.Context, accessToken, dealID string) (*ObjectRecord, error)
	ListLineItemAssociations(ctx context.Context, accessToken, dealID string) ([]Association, error)
	GetLineItem(ctx context.Context, accessToken, lineItemID string) (*ObjectRecord, error)
}

// HTTPCRMClient is the default HTTP implementation against
// https://api.hubapi.com/crm/v3.
type HTTPCRMClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCRMClient constructs the default CRM client.
func NewCRMClient(cfg config.HubSpotConfig, client *http.Client) *HTTPCRMClient {
	if client == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPCRMClient{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: client,
	}
}

// QueryCompanyLineItems issues the aggregated GraphQL query. A decoded
// response is returned even when it carries an errors list; the caller
// decides whether the outcome is conclusive.
func (c *HTTPCRMClient) QueryCompanyLineItems(ctx context.Context, accessToken, companyID string) (*GraphQLResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     companyLineItemsQuery,
		"variables": map[string]string{"companyId": companyID},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql payload: %w", err)
	}

	endpoint := c.baseURL + "/crm/v3/objects/companies/graphql"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	decoded := &GraphQLResponse{}
	if err := json.Unmarshal(body, decoded); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	return decoded, nil
}

// ListDealAssociations lists the deal ids associated with a company.
func (c *HTTPCRMClient) ListDealAssociations(ctx context.Context, accessToken, companyID string) ([]Association, error) {
	path := fmt.Sprintf("/crm/v3/objects/companies/%s/associations/deals", url.PathEscape(companyID))
	list := &associationList{}
	if err := c.getJSON(ctx, accessToken, path, list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// GetDeal fetches a full deal record by id.
func (c *HTTPCRMClient) GetDeal(ctx context.Context, accessToken, dealID string) (*ObjectRecord, error) {
	path := fmt.Sprintf("/crm/v3/objects/deals/%s", url.PathEscape(dealID))
	record := &ObjectRecord{}
	if err := c.getJSON(ctx, accessToken, path, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListLineItemAssociations lists the line item ids associated with a deal.
func (c *HTTPCRMClient) ListLineItemAssociations(ctx context.Context, accessToken, dealID string) ([]Association, error) {
	path := fmt.Sprintf("/crm/v3/objects/deals/%s/associations/line_items", url.PathEscape(dealID))
	list := &associationList{}
	if err := c.getJSON(ctx, accessToken, path, list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

// GetLineItem fetches a full line item record by id.
func (c *HTTPCRMClient) GetLineItem(ctx context.Context, accessToken, lineItemID string) (*ObjectRecord, error) {
	path := fmt.Sprintf("/crm/v3/objects/line_items/%s", url.PathEscape(lineItemID))
	record := &ObjectRecord{}
	if err := c.getJSON(ctx, accessToken, path, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (c *HTTPCRMClient) getJSON(ctx context.Context, accessToken, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
