package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/crm-bridge/internal/dto"
	"github.com/noah-isme/crm-bridge/internal/models"
	"github.com/noah-isme/crm-bridge/internal/repository"
	"github.com/noah-isme/crm-bridge/pkg/config"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
	"github.com/noah-isme/crm-bridge/pkg/response"
)

type tokenAcquirer interface {
	Acquire(ctx context.Context, code string) (string, *models.CredentialRecord, error)
}

// OAuthHandler drives the HubSpot app installation flow: the authorize
// redirect and the callback that completes the code exchange.
type OAuthHandler struct {
	tokens    tokenAcquirer
	states    repository.StateStore
	cfg       config.HubSpotConfig
	validator *validator.Validate
}

// NewOAuthHandler constructs the handler.
func NewOAuthHandler(tokens tokenAcquirer, states repository.StateStore, cfg config.HubSpotConfig, validate *validator.Validate) *OAuthHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &OAuthHandler{tokens: tokens, states: states, cfg: cfg, validator: validate}
}

// Start godoc
// @Summary Begin the HubSpot OAuth flow
// @Tags OAuth
// @Success 302
// @Router /oauth/start [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	state, err := h.states.Issue(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue oauth state"))
		return
	}

	params := url.Values{}
	params.Set("client_id", h.cfg.ClientID)
	params.Set("redirect_uri", h.cfg.RedirectURI)
	params.Set("scope", strings.Join(h.cfg.Scopes, " "))
	params.Set("response_type", "code")
	params.Set("state", state)

	c.Redirect(http.StatusFound, h.cfg.AuthorizeURL+"?"+params.Encode())
}

// Callback godoc
// @Summary Complete the HubSpot OAuth flow
// @Tags OAuth
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State issued by /oauth/start"
// @Success 200 {object} response.Envelope
// @Router /oauth/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid callback parameters"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "code and state are required"))
		return
	}

	if err := h.states.Consume(c.Request.Context(), req.State); err != nil {
		response.Error(c, err)
		return
	}

	portalID, record, err := h.tokens.Acquire(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CallbackResponse{
		Message:  "OAuth successful",
		PortalID: portalID,
		Scope:    record.Scope,
	})
}
