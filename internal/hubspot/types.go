package hubspot

import (
	"fmt"
	"strconv"
)

// TokenResponse is the payload returned by the OAuth token endpoint for
// both the authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// TokenMetadata is the introspection payload for an access token. The
// access token alone does not carry the owning portal; hub_id does.
type TokenMetadata struct {
	HubID     int64    `json:"hub_id"`
	UserID    int64    `json:"user_id"`
	UserEmail string   `json:"user"`
	Scopes    []string `json:"scopes"`
}

// PortalID renders the numeric hub id as the string key used throughout
// the credential store.
func (m *TokenMetadata) PortalID() string {
	return strconv.FormatInt(m.HubID, 10)
}

// StatusError reports a non-success upstream HTTP status. The body is
// retained for logging only and must never be surfaced to API callers.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Association is one entry of a CRM association listing.
type Association struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// associationList is the envelope of the v3 associations endpoints.
type associationList struct {
	Results []Association `json:"results"`
}

// ObjectRecord is a single CRM object fetched by id. Property values
// arrive as strings on the REST surface and as JSON numbers on the
// GraphQL surface, so they stay untyped until normalization.
type ObjectRecord struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// GraphQL response shapes for the company → deals → line items query.
// Container fields are pointers so an absent level is distinguishable
// from an empty listing.

type GraphQLResponse struct {
	Data   *GraphQLData   `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

type GraphQLData struct {
	CRM *GraphQLCRM `json:"CRM"`
}

type GraphQLCRM struct {
	Company *GraphQLCompany `json:"company"`
}

type GraphQLCompany struct {
	Associations *GraphQLCompanyAssociations `json:"associations"`
}

type GraphQLCompanyAssociations struct {
	Deals *GraphQLDealList `json:"deals"`
}

type GraphQLDealList struct {
	Items []GraphQLDeal `json:"items"`
}

type GraphQLDeal struct {
	ID           string                   `json:"id"`
	Properties   map[string]any           `json:"properties"`
	Associations *GraphQLDealAssociations `json:"associations"`
}

type GraphQLDealAssociations struct {
	LineItems *GraphQLLineItemList `json:"lineItems"`
}

type GraphQLLineItemList struct {
	Items []GraphQLLineItem `json:"items"`
}

type GraphQLLineItem struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}
