package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OrgStore resolves the caller's active organization. Membership management
// lives elsewhere; the engine only needs the id for cache namespacing.
type OrgStore struct {
	db *sqlx.DB
}

func NewOrgStore(db *sqlx.DB) *OrgStore {
	return &OrgStore{db: db}
}

const activeOrgQuery = `
SELECT org_id
FROM org_members
WHERE user_id = $1 AND is_active
ORDER BY updated_at DESC
LIMIT 1`

func (s *OrgStore) ActiveOrg(ctx context.Context, userID string) (string, error) {
	var orgID string
	err := s.db.GetContext(ctx, &orgID, activeOrgQuery, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no active organization for user %q", userID)
		}
		return "", fmt.Errorf("resolve active org: %w", err)
	}
	return orgID, nil
}
