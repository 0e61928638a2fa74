package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crm-bridge/internal/models"
	appErrors "github.com/noah-isme/crm-bridge/pkg/errors"
)

// PostgresCredentialStore persists credentials in a single
// portal_credentials table for deployments that want them to survive
// restarts.
//
// Expected schema:
//
//	CREATE TABLE portal_credentials (
//	    portal_id        TEXT PRIMARY KEY,
//	    access_token     TEXT NOT NULL,
//	    refresh_token    TEXT NOT NULL DEFAULT '',
//	    expires_at       TIMESTAMPTZ NOT NULL,
//	    scope            TEXT NOT NULL DEFAULT '',
//	    obtained_at      TIMESTAMPTZ NOT NULL,
//	    refresh_failures INT NOT NULL DEFAULT 0,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
type PostgresCredentialStore struct {
	db *sqlx.DB
}

// NewPostgresCredentialStore constructs a Postgres-backed credential store.
func NewPostgresCredentialStore(db *sqlx.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

// Get loads the stored record or returns ErrNoCredential.
func (s *PostgresCredentialStore) Get(ctx context.Context, portalID string) (*models.CredentialRecord, error) {
	record := &models.CredentialRecord{}
	query := `SELECT access_token, refresh_token, expires_at, scope, obtained_at, refresh_failures
	          FROM portal_credentials WHERE portal_id = $1`
	if err := s.db.GetContext(ctx, record, query, portalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoCredential
		}
		return nil, fmt.Errorf("select credential %s: %w", portalID, err)
	}
	return record, nil
}

// Put upserts the record unconditionally.
func (s *PostgresCredentialStore) Put(ctx context.Context, portalID string, record *models.CredentialRecord) error {
	query := `INSERT INTO portal_credentials
	          (portal_id, access_token, refresh_token, expires_at, scope, obtained_at, refresh_failures, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (portal_id) DO UPDATE SET
	              access_token = EXCLUDED.access_token,
	              refresh_token = EXCLUDED.refresh_token,
	              expires_at = EXCLUDED.expires_at,
	              scope = EXCLUDED.scope,
	              obtained_at = EXCLUDED.obtained_at,
	              refresh_failures = EXCLUDED.refresh_failures,
	              updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		portalID,
		record.AccessToken,
		record.RefreshToken,
		record.ExpiresAt,
		record.Scope,
		record.ObtainedAt,
		record.RefreshFailures,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert credential %s: %w", portalID, err)
	}
	return nil
}

// CompareAndSwap updates only when the stored access token still matches
// old's, or inserts when old is nil and no row exists.
func (s *PostgresCredentialStore) CompareAndSwap(ctx context.Context, portalID string, old, updated *models.CredentialRecord) (bool, error) {
	if old == nil {
		query := `INSERT INTO portal_credentials
		          (portal_id, access_token, refresh_token, expires_at, scope, obtained_at, refresh_failures, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		          ON CONFLICT (portal_id) DO NOTHING`
		result, err := s.db.ExecContext(ctx, query,
			portalID,
			updated.AccessToken,
			updated.RefreshToken,
			updated.ExpiresAt,
			updated.Scope,
			updated.ObtainedAt,
			updated.RefreshFailures,
			time.Now().UTC(),
		)
		if err != nil {
			return false, fmt.Errorf("insert credential %s: %w", portalID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("insert credential %s: %w", portalID, err)
		}
		return affected == 1, nil
	}

	query := `UPDATE portal_credentials SET
	              access_token = $1,
	              refresh_token = $2,
	              expires_at = $3,
	              scope = $4,
	              obtained_at = $5,
	              refresh_failures = $6,
	              updated_at = $7
	          WHERE portal_id = $8 AND access_token = $9`
	result, err := s.db.ExecContext(ctx, query,
		updated.AccessToken,
		updated.RefreshToken,
		updated.ExpiresAt,
		updated.Scope,
		updated.ObtainedAt,
		updated.RefreshFailures,
		time.Now().UTC(),
		portalID,
		old.AccessToken,
	)
	if err != nil {
		return false, fmt.Errorf("update credential %s: %w", portalID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update credential %s: %w", portalID, err)
	}
	return affected == 1, nil
}

// Delete removes the record. Deleting an absent portal is not an error.
func (s *PostgresCredentialStore) Delete(ctx context.Context, portalID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM portal_credentials WHERE portal_id = $1`, portalID); err != nil {
		return fmt.Errorf("delete credential %s: %w", portalID, err)
	}
	return nil
}
