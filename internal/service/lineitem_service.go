package service

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/crm-bridge/internal/hubspot"
	"github.com/noah-isme/crm-bridge/internal/models"
)

// queryResult is the tagged outcome of the structured-query strategy.
// An empty conclusive result is a valid answer and must not trigger the
// fallback; only an inconclusive outcome does.
type queryResult struct {
	LineItems  []models.LineItem
	Conclusive bool
}

// LineItemService retrieves the line items reachable from a company
// through its deals. It attempts one aggregated GraphQL query first and
// degrades to a sequential REST traversal when that query is
// inconclusive. Both strategies feed the same normalization, so callers
// cannot tell which one produced a given record.
type LineItemService struct {
	crm     hubspot.CRMClient
	logger  *zap.Logger
	metrics *MetricsService
}

// NewLineItemService constructs a LineItemService.
func NewLineItemService(crm hubspot.CRMClient, logger *zap.Logger, metrics *MetricsService) *LineItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineItemService{crm: crm, logger: logger, metrics: metrics}
}

// Fetch returns the canonical line items for a company. It never fails
// outright; upstream trouble degrades to the fallback strategy and, at
// worst, an empty slice.
func (s *LineItemService) Fetch(ctx context.Context, accessToken, companyID string) []models.LineItem {
	result := s.queryLineItems(ctx, accessToken, companyID)
	if result.Conclusive {
		s.metrics.RecordRetrieval(StrategyGraphQL)
		return result.LineItems
	}

	s.metrics.RecordRetrieval(StrategyRESTFallback)
	return s.traverseLineItems(ctx, accessToken, companyID)
}

// queryLineItems runs the structured-query strategy. Non-success status,
// an explicit errors list and a missing company-level container all make
// the outcome inconclusive; zero returned deals does not.
func (s *LineItemService) queryLineItems(ctx context.Context, accessToken, companyID string) queryResult {
	resp, err := s.crm.QueryCompanyLineItems(ctx, accessToken, companyID)
	if err != nil {
		s.logGraphQLFailure("graphql query failed", companyID, err)
		return queryResult{}
	}
	if len(resp.Errors) > 0 {
		s.logger.Warn("graphql query returned errors",
			zap.String("company_id", companyID),
			zap.String("first_error", resp.Errors[0].Message),
			zap.Int("error_count", len(resp.Errors)),
		)
		return queryResult{}
	}
	if resp.Data == nil || resp.Data.CRM == nil || resp.Data.CRM.Company == nil ||
		resp.Data.CRM.Company.Associations == nil || resp.Data.CRM.Company.Associations.Deals == nil {
		s.logger.Warn("graphql response missing expected containers", zap.String("company_id", companyID))
		return queryResult{}
	}

	lineItems := make([]models.LineItem, 0)
	for _, deal := range resp.Data.CRM.Company.Associations.Deals.Items {
		dealName := stringProp(deal.Properties, "dealname", models.UnknownDealName)

		if deal.Associations == nil || deal.Associations.LineItems == nil {
			continue
		}
		for _, item := range deal.Associations.LineItems.Items {
			lineItems = append(lineItems, normalizeLineItem(dealName, item.Properties))
		}
	}

	return queryResult{LineItems: lineItems, Conclusive: true}
}

// traverseLineItems runs the REST fallback: list the company's deal
// associations, then per deal fetch its record and its line item
// associations, then per association the full line item record. A failed
// call drops that one node, logged with enough context for offline
// reconciliation; it never aborts the rest of the traversal.
func (s *LineItemService) traverseLineItems(ctx context.Context, accessToken, companyID string) []models.LineItem {
	lineItems := make([]models.LineItem, 0)

	deals, err := s.crm.ListDealAssociations(ctx, accessToken, companyID)
	if err != nil {
		s.logger.Error("failed to list deal associations",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return lineItems
	}

	for _, dealAssoc := range deals {
		deal, err := s.crm.GetDeal(ctx, accessToken, dealAssoc.ID)
		if err != nil {
			s.skipNode("deal fetch failed", companyID, dealAssoc.ID, "", err)
			continue
		}
		dealName := stringProp(deal.Properties, "dealname", models.UnknownDealName)

		itemAssocs, err := s.crm.ListLineItemAssociations(ctx, accessToken, dealAssoc.ID)
		if err != nil {
			s.skipNode("line item association listing failed", companyID, dealAssoc.ID, "", err)
			continue
		}

		for _, itemAssoc := range itemAssocs {
			item, err := s.crm.GetLineItem(ctx, accessToken, itemAssoc.ID)
			if err != nil {
				s.skipNode("line item fetch failed", companyID, dealAssoc.ID, itemAssoc.ID, err)
				continue
			}
			lineItems = append(lineItems, normalizeLineItem(dealName, item.Properties))
		}
	}

	return lineItems
}

func (s *LineItemService) skipNode(msg, companyID, dealID, lineItemID string, err error) {
	s.metrics.RecordSkippedNode()
	fields := []zap.Field{
		zap.String("company_id", companyID),
		zap.String("deal_id", dealID),
		zap.Error(err),
	}
	if lineItemID != "" {
		fields = append(fields, zap.String("line_item_id", lineItemID))
	}
	s.logger.Warn(msg, fields...)
}

func (s *LineItemService) logGraphQLFailure(msg, companyID string, err error) {
	fields := []zap.Field{zap.String("company_id", companyID), zap.Error(err)}
	var statusErr *hubspot.StatusError
	if errors.As(err, &statusErr) {
		fields = append(fields, zap.Int("upstream_status", statusErr.StatusCode))
	}
	s.logger.Warn(msg, fields...)
}

// normalizeLineItem maps either upstream property shape into the
// canonical record. Missing names fall back to sentinels, missing
// numerics to zero.
func normalizeLineItem(dealName string, props map[string]any) models.LineItem {
	return models.LineItem{
		DealName:     dealName,
		LineItemName: stringProp(props, "name", models.UnknownLineItemName),
		Quantity:     floatProp(props, "quantity"),
		UnitPrice:    floatProp(props, "price"),
		Amount:       floatProp(props, "amount"),
	}
}

func stringProp(props map[string]any, key, fallback string) string {
	if props == nil {
		return fallback
	}
	if v, ok := props[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// floatProp tolerates both representations seen upstream: JSON numbers
// on the GraphQL surface and numeric strings on the REST surface.
func floatProp(props map[string]any, key string) float64 {
	if props == nil {
		return 0
	}
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return 0
}
