package dto

// CallbackRequest captures the query parameters HubSpot appends to the
// redirect URI after the user grants access.
type CallbackRequest struct {
	Code  string `form:"code" validate:"required"`
	State string `form:"state" validate:"required"`
}

// CallbackResponse confirms a completed installation. The access token is
// deliberately not echoed back to the browser.
type CallbackResponse struct {
	Message  string `json:"message"`
	PortalID string `json:"portal_id"`
	Scope    string `json:"scope,omitempty"`
}
