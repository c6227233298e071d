package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-commercial-intelligence/internal/database"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

// OrgRepository reads orgs and org memberships.
type OrgRepository struct {
	db *database.DB
}

// NewOrgRepository creates a new OrgRepository.
func NewOrgRepository(db *database.DB) *OrgRepository {
	return &OrgRepository{db: db}
}

// ListActive returns every org whose status is active.
func (r *OrgRepository) ListActive(ctx context.Context) ([]*Org, error) {
	query := `
		SELECT id, name, status, created_at
		FROM orgs
		WHERE status = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, OrgStatusActive)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list orgs")
	}
	defer rows.Close()

	orgs := make([]*Org, 0)
	for rows.Next() {
		org := &Org{}
		if err := rows.Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan org")
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate orgs")
	}

	return orgs, nil
}

// GetMembership returns the membership of userID in orgID.
func (r *OrgRepository) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	m := &Membership{}

	query := `
		SELECT org_id, user_id, role
		FROM org_members
		WHERE org_id = $1 AND user_id = $2
	`

	err := r.db.QueryRow(ctx, query, orgID, userID).Scan(&m.OrgID, &m.UserID, &m.Role)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("membership", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get membership")
	}

	return m, nil
}
