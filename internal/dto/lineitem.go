package dto

import "github.com/noah-isme/crm-bridge/internal/models"

// LineItemsResponse lists the canonical line items reachable from a
// company through its associated deals.
type LineItemsResponse struct {
	CompanyID string            `json:"company_id"`
	LineItems []models.LineItem `json:"line_items"`
	Count     int               `json:"count"`
}
