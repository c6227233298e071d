// Package repository holds the domain documents and their tenant-scoped
// Postgres repositories. Every method takes the org id; no query crosses
// tenants.
package repository

import (
	"context"
	"time"
)

// OrgStore reads tenants and memberships.
type OrgStore interface {
	ListActive(ctx context.Context) ([]*Org, error)
	GetMembership(ctx context.Context, orgID, userID string) (*Membership, error)
}

// ProjectStore reads projects and their sub-collections.
type ProjectStore interface {
	Get(ctx context.Context, orgID, projectID string) (*Project, error)
	ListByStatus(ctx context.Context, orgID, status string) ([]*Project, error)
	// LatestFinancial returns nil, nil when the project has no record.
	LatestFinancial(ctx context.Context, orgID, projectID string) (*Financial, error)
	ListRisks(ctx context.Context, orgID, projectID string) ([]*Risk, error)
	GetRisk(ctx context.Context, orgID, riskID string) (*Risk, error)
	AcknowledgeRisk(ctx context.Context, orgID, riskID, actorID string, at time.Time) error
	ListMilestones(ctx context.Context, orgID, projectID string) ([]*Milestone, error)
	ListDeliverables(ctx context.Context, orgID, projectID string) ([]*Deliverable, error)
	// ListUpdates returns updates ordered by period end, most recent first.
	ListUpdates(ctx context.Context, orgID, projectID string) ([]*ProjectUpdate, error)
}

// PatternStore persists commercial patterns.
type PatternStore interface {
	Create(ctx context.Context, p *Pattern) error
	Get(ctx context.Context, orgID, id string) (*Pattern, error)
	List(ctx context.Context, orgID string, status *string) ([]*Pattern, error)
	UpdateStatus(ctx context.Context, orgID, id, status, actorID string, at time.Time) error
}

// ProposalStore reads proposals and writes their snapshots.
type ProposalStore interface {
	Get(ctx context.Context, orgID, id string) (*Proposal, error)
	// CreateSnapshot persists snap and marks the parent proposal sent,
	// locked and pointing at snap.Version.
	CreateSnapshot(ctx context.Context, snap *Snapshot) error
	// LatestSnapshot returns nil, nil when the proposal has no snapshots.
	LatestSnapshot(ctx context.Context, orgID, proposalID string) (*Snapshot, error)
	GetSnapshot(ctx context.Context, orgID, proposalID, version string) (*Snapshot, error)
}

var (
	_ OrgStore      = (*OrgRepository)(nil)
	_ ProjectStore  = (*ProjectRepository)(nil)
	_ PatternStore  = (*PatternRepository)(nil)
	_ ProposalStore = (*ProposalRepository)(nil)
)
