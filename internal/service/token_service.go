package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/crm-bridge/internal/hubspot"
	"github.com/noah-isme/crm-bridge/internal/models"
	"github.com/noah-isme/crm-bridge/internal/repository"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
)

// maxRefreshFailures is the number of consecutive failed refresh attempts
// after which a portal's credential is evicted. Subsequent resolves then
// report ErrNoCredential, prompting re-authorization instead of hammering
// the token endpoint with a dead refresh token.
const maxRefreshFailures = 3

// TokenService owns the credential lifecycle for every connected portal:
// authorization-code exchange, lazy expiry evaluation and transparent
// refresh. Expiry is checked at resolution time; there is no background
// refresh task.
type TokenService struct {
	store   repository.CredentialStore
	oauth   hubspot.OAuthClient
	logger  *zap.Logger
	metrics *MetricsService

	// refreshGroup collapses concurrent refreshes for the same portal
	// into a single upstream call whose outcome is shared.
	refreshGroup singleflight.Group

	now func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(store repository.CredentialStore, oauth hubspot.OAuthClient, logger *zap.Logger, metrics *MetricsService) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		store:   store,
		oauth:   oauth,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Acquire exchanges a one-time authorization code, resolves the owning
// portal via token introspection and persists the credential keyed by
// portal id. Upstream error bodies are logged, never surfaced.
func (s *TokenService) Acquire(ctx context.Context, code string) (string, *models.CredentialRecord, error) {
	token, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.logUpstream("code exchange failed", "", err)
		s.metrics.RecordTokenAcquire(false)
		return "", nil, appErrors.Wrap(err, appErrors.ErrAuthUpstream.Code, appErrors.ErrAuthUpstream.Status, "failed to exchange authorization code")
	}

	meta, err := s.oauth.Introspect(ctx, token.AccessToken)
	if err != nil {
		s.logUpstream("token introspection failed", "", err)
		s.metrics.RecordTokenAcquire(false)
		return "", nil, appErrors.Wrap(err, appErrors.ErrAuthUpstream.Code, appErrors.ErrAuthUpstream.Status, "failed to resolve portal for token")
	}

	portalID := meta.PortalID()
	record := s.buildRecord(token, "")
	if err := s.store.Put(ctx, portalID, record); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist credential")
	}

	s.metrics.RecordTokenAcquire(true)
	s.logger.Info("portal connected",
		zap.String("portal_id", portalID),
		zap.Time("expires_at", record.ExpiresAt),
		zap.String("scope", record.Scope),
	)
	return portalID, record, nil
}

// Resolve returns a usable access token for the portal. A stored,
// non-expired credential is returned without any network call. An expired
// credential is refreshed exactly once when a refresh token is present;
// an expired credential without one is equivalent to having none at all.
func (s *TokenService) Resolve(ctx context.Context, portalID string) (string, error) {
	record, err := s.store.Get(ctx, portalID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNoCredential) {
			return "", appErrors.ErrNoCredential
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential")
	}

	if !record.Expired(s.now()) {
		return record.AccessToken, nil
	}

	if !record.Refreshable() {
		s.logger.Warn("credential expired with no refresh token", zap.String("portal_id", portalID))
		return "", appErrors.ErrNoCredential
	}

	token, err, _ := s.refreshGroup.Do(portalID, func() (interface{}, error) {
		return s.refresh(ctx, portalID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// refresh runs inside the per-portal single-flight region. It re-reads
// the store first so a flight that lost the race to an already-completed
// refresh returns the fresh token without another upstream call.
func (s *TokenService) refresh(ctx context.Context, portalID string) (string, error) {
	record, err := s.store.Get(ctx, portalID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNoCredential) {
			return "", appErrors.ErrNoCredential
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credential")
	}
	if !record.Expired(s.now()) {
		return record.AccessToken, nil
	}
	if !record.Refreshable() {
		return "", appErrors.ErrNoCredential
	}

	token, err := s.oauth.RefreshToken(ctx, record.RefreshToken)
	if err != nil {
		s.logUpstream("token refresh failed", portalID, err)
		s.metrics.RecordTokenRefresh(false)
		s.recordRefreshFailure(ctx, portalID, record)
		return "", appErrors.Wrap(err, appErrors.ErrAuthUpstream.Code, appErrors.ErrAuthUpstream.Status, "failed to refresh access token")
	}

	updated := s.buildRecord(token, record.RefreshToken)
	swapped, err := s.store.CompareAndSwap(ctx, portalID, record, updated)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refreshed credential")
	}
	if !swapped {
		// Another writer replaced the record while the refresh was in
		// flight; return whatever is stored now rather than losing it.
		current, err := s.store.Get(ctx, portalID)
		if err == nil {
			s.metrics.RecordTokenRefresh(true)
			return current.AccessToken, nil
		}
	}

	s.metrics.RecordTokenRefresh(true)
	s.logger.Info("credential refreshed",
		zap.String("portal_id", portalID),
		zap.Time("expires_at", updated.ExpiresAt),
	)
	return updated.AccessToken, nil
}

// recordRefreshFailure bumps the consecutive-failure counter and evicts
// the record once the threshold is reached.
func (s *TokenService) recordRefreshFailure(ctx context.Context, portalID string, record *models.CredentialRecord) {
	failed := *record
	failed.RefreshFailures = record.RefreshFailures + 1

	if failed.RefreshFailures >= maxRefreshFailures {
		if err := s.store.Delete(ctx, portalID); err != nil {
			s.logger.Warn("failed to evict unrefreshable credential", zap.String("portal_id", portalID), zap.Error(err))
			return
		}
		s.logger.Warn("evicted unrefreshable credential",
			zap.String("portal_id", portalID),
			zap.Int("refresh_failures", failed.RefreshFailures),
		)
		return
	}

	if _, err := s.store.CompareAndSwap(ctx, portalID, record, &failed); err != nil {
		s.logger.Warn("failed to record refresh failure", zap.String("portal_id", portalID), zap.Error(err))
	}
}

// buildRecord maps a token response into a credential record. ExpiresAt
// is fixed here and never recomputed later. A refresh response omitting
// refresh_token keeps the prior one; a working refresh token is never
// nulled out.
func (s *TokenService) buildRecord(token *hubspot.TokenResponse, priorRefreshToken string) *models.CredentialRecord {
	now := s.now()
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = priorRefreshToken
	}
	return &models.CredentialRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(time.Duration(token.ExpiresIn) * time.Second),
		Scope:        token.Scope,
		ObtainedAt:   now,
	}
}

func (s *TokenService) logUpstream(msg, portalID string, err error) {
	fields := []zap.Field{zap.Error(err)}
	if portalID != "" {
		fields = append(fields, zap.String("portal_id", portalID))
	}
	var statusErr *hubspot.StatusError
	if errors.As(err, &statusErr) {
		fields = append(fields,
			zap.Int("upstream_status", statusErr.StatusCode),
			zap.String("upstream_body", statusErr.Body),
		)
	}
	s.logger.Error(msg, fields...)
}
