package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
	"github.com/pesio-ai/be-commercial-intelligence/internal/snapshot"
)

// ProposalService freezes proposals into checksummed snapshots.
type ProposalService struct {
	gate      accessGate
	proposals repository.ProposalStore
	events    eventPublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewProposalService creates a new proposal service
func NewProposalService(
	orgs repository.OrgStore,
	proposals repository.ProposalStore,
	events eventPublisher,
	log *logger.Logger,
) *ProposalService {
	return &ProposalService{
		gate:      accessGate{orgs: orgs},
		proposals: proposals,
		events:    events,
		log:       log,
		now:       utcNow,
	}
}

// CreateSnapshotRequest represents a create snapshot request
type CreateSnapshotRequest struct {
	OrgID      string
	ProposalID string
	Branding   map[string]any
}

// SnapshotVerification is the result of re-deriving a stored checksum.
type SnapshotVerification struct {
	ProposalID string `json:"proposalId"`
	Version    string `json:"version"`
	Valid      bool   `json:"valid"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
}

// CreateSnapshot freezes the proposal's current content, checksums it and
// marks the proposal sent and locked at the new version.
func (s *ProposalService) CreateSnapshot(ctx context.Context, caller *auth.UserContext, req *CreateSnapshotRequest) (*repository.Snapshot, error) {
	if caller == nil || caller.UserID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	if req == nil || req.ProposalID == "" {
		return nil, errors.InvalidInput("proposal_id", "proposal_id is required")
	}
	if _, err := s.gate.require(ctx, caller, req.OrgID, auth.RoleStaff); err != nil {
		return nil, err
	}

	proposal, err := s.proposals.Get(ctx, req.OrgID, req.ProposalID)
	if err != nil {
		return nil, err
	}

	// An empty branding object and an omitted one are the same snapshot.
	branding := req.Branding
	if len(branding) == 0 {
		branding = nil
	}

	content := snapshot.FreezeContent(proposal.Document, proposal.Title)
	terms := content["terms"]
	checksum, err := snapshot.Checksum(content, branding, terms)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to checksum snapshot")
	}

	at := s.now().UTC().Truncate(time.Millisecond)
	snap := &repository.Snapshot{
		OrgID:      req.OrgID,
		ProposalID: req.ProposalID,
		Version:    snapshot.NewVersion(at),
		Content:    content,
		Branding:   branding,
		Terms:      terms,
		Checksum:   checksum,
		CreatedBy:  caller.UserID,
		CreatedAt:  at,
	}
	if err := s.proposals.CreateSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	s.log.WithTenant(req.OrgID).Info().
		Str("proposal_id", req.ProposalID).
		Str("version", snap.Version).
		Str("checksum", checksum).
		Str("user_id", caller.UserID).
		Msg("proposal snapshot created")

	s.events.Publish(ctx, client.SubjectSnapshotCreated, client.Event{
		EventType:    "proposal_snapshot_created",
		OrgID:        req.OrgID,
		ActorID:      caller.UserID,
		ResourceType: "proposal",
		ResourceID:   req.ProposalID,
		Payload:      map[string]any{"version": snap.Version, "checksum": checksum},
	})

	return snap, nil
}

// LatestSnapshot returns the most recently stored snapshot of a proposal,
// or nil when it has none.
func (s *ProposalService) LatestSnapshot(ctx context.Context, caller *auth.UserContext, orgID, proposalID string) (*repository.Snapshot, error) {
	if _, err := s.gate.require(ctx, caller, orgID, auth.RoleClient); err != nil {
		return nil, err
	}
	if proposalID == "" {
		return nil, errors.InvalidInput("proposal_id", "proposal_id is required")
	}
	return s.proposals.LatestSnapshot(ctx, orgID, proposalID)
}

// VerifySnapshot recomputes the checksum of a stored snapshot. An empty
// version verifies the latest one.
func (s *ProposalService) VerifySnapshot(ctx context.Context, caller *auth.UserContext, orgID, proposalID, version string) (*SnapshotVerification, error) {
	if _, err := s.gate.require(ctx, caller, orgID, auth.RoleClient); err != nil {
		return nil, err
	}
	if proposalID == "" {
		return nil, errors.InvalidInput("proposal_id", "proposal_id is required")
	}

	var (
		snap *repository.Snapshot
		err  error
	)
	if version == "" {
		snap, err = s.proposals.LatestSnapshot(ctx, orgID, proposalID)
		if err == nil && snap == nil {
			err = errors.NotFound("snapshot", proposalID)
		}
	} else {
		snap, err = s.proposals.GetSnapshot(ctx, orgID, proposalID, version)
	}
	if err != nil {
		return nil, err
	}

	actual, ok, err := snapshot.Verify(snap.Content, snap.Branding, snap.Terms, snap.Checksum)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to verify snapshot %s", snap.Version))
	}
	if !ok {
		s.log.WithTenant(orgID).Warn().
			Str("proposal_id", proposalID).
			Str("version", snap.Version).
			Msg("snapshot checksum mismatch")
	}

	return &SnapshotVerification{
		ProposalID: proposalID,
		Version:    snap.Version,
		Valid:      ok,
		Expected:   snap.Checksum,
		Actual:     actual,
	}, nil
}
