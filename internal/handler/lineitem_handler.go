package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-bridge/internal/dto"
	"github.com/noah-isme/crm-bridge/internal/models"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
	"github.com/noah-isme/crm-bridge/pkg/export"
	"github.com/noah-isme/crm-bridge/pkg/response"
)

// PortalHeader identifies the calling portal on line-item requests.
const PortalHeader = "X-HubSpot-Portal-Id"

type tokenResolver interface {
	Resolve(ctx context.Context, portalID string) (string, error)
}

type lineItemFetcher interface {
	Fetch(ctx context.Context, accessToken, companyID string) []models.LineItem
}

// LineItemHandler serves the flattened company → deals → line items
// listing, optionally rendered as a CSV or PDF export.
type LineItemHandler struct {
	tokens         tokenResolver
	lineItems      lineItemFetcher
	csv            *export.CSVExporter
	pdf            *export.PDFExporter
	exportsEnabled bool
}

// NewLineItemHandler constructs the handler.
func NewLineItemHandler(tokens tokenResolver, lineItems lineItemFetcher, exportsEnabled bool) *LineItemHandler {
	return &LineItemHandler{
		tokens:         tokens,
		lineItems:      lineItems,
		csv:            export.NewCSVExporter(),
		pdf:            export.NewPDFExporter(),
		exportsEnabled: exportsEnabled,
	}
}

// Get godoc
// @Summary List line items for a company through its deals
// @Tags LineItems
// @Produce json
// @Param companyId path string true "Company ID"
// @Param format query string false "Optional export format (csv or pdf)"
// @Param X-HubSpot-Portal-Id header string true "Portal ID"
// @Success 200 {object} response.Envelope
// @Router /api/companies/{companyId}/line-items [get]
func (h *LineItemHandler) Get(c *gin.Context) {
	companyID := strings.TrimSpace(c.Param("companyId"))
	if companyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "companyId is required"))
		return
	}

	portalID := strings.TrimSpace(c.GetHeader(PortalHeader))
	if portalID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "portal id header is required"))
		return
	}

	accessToken, err := h.tokens.Resolve(c.Request.Context(), portalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now()
	items := h.lineItems.Fetch(c.Request.Context(), accessToken, companyID)

	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format != "" {
		h.renderExport(c, companyID, format, items)
		return
	}

	meta := map[string]interface{}{
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, dto.LineItemsResponse{
		CompanyID: companyID,
		LineItems: items,
		Count:     len(items),
	}, meta)
}

func (h *LineItemHandler) renderExport(c *gin.Context, companyID, format string, items []models.LineItem) {
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exports are disabled"))
		return
	}

	table := lineItemTable(companyID, items)

	switch format {
	case "csv":
		payload, err := h.csv.Render(table)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "line-items-"+companyID+".csv"))
		c.Data(http.StatusOK, "text/csv", payload)
	case "pdf":
		payload, err := h.pdf.Render(table)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "line-items-"+companyID+".pdf"))
		c.Data(http.StatusOK, "application/pdf", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unsupported format, expected csv or pdf"))
	}
}

func lineItemTable(companyID string, items []models.LineItem) export.Table {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.DealName,
			item.LineItemName,
			formatNumber(item.Quantity),
			formatNumber(item.UnitPrice),
			formatNumber(item.Amount),
		})
	}
	return export.Table{
		Title:   "Line items for company " + companyID,
		Headers: []string{"Deal", "Line Item", "Quantity", "Unit Price", "Amount"},
		Rows:    rows,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
