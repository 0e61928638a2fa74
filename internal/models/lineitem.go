package models

// Sentinel names substituted when upstream omits the corresponding
// property. Shared by both retrieval strategies.
const (
	UnknownDealName     = "Unknown Deal"
	UnknownLineItemName = "Unknown Item"
)

// LineItem is the canonical, flattened record returned to consumers
// regardless of which retrieval strategy produced it. It carries the
// parent deal's name but no identifiers; consumers only need a flat
// listing for display and aggregation.
type LineItem struct {
	DealName     string  `json:"deal_name"`
	LineItemName string  `json:"line_item_name"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Amount       float64 `json:"amount"`
}
