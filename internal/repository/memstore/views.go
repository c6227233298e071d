package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

// ── Orgs ─────────────────────────────────────────────────────────────────────

// Orgs implements repository.OrgStore.
type Orgs struct{ s *Store }

func (o *Orgs) ListActive(_ context.Context) ([]*repository.Org, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	if err := o.s.fault("ListActive", ""); err != nil {
		return nil, err
	}

	out := make([]*repository.Org, 0)
	for _, org := range o.s.orgs {
		if org.Status == repository.OrgStatusActive {
			cp := *org
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (o *Orgs) GetMembership(_ context.Context, orgID, userID string) (*repository.Membership, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	for _, m := range o.s.members {
		if m.OrgID == orgID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errors.NotFound("membership", userID)
}

// ── Projects ─────────────────────────────────────────────────────────────────

// Projects implements repository.ProjectStore.
type Projects struct{ s *Store }

func (p *Projects) Get(_ context.Context, orgID, projectID string) (*repository.Project, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	for _, proj := range p.s.projects {
		if proj.OrgID == orgID && proj.ID == projectID {
			cp := *proj
			return &cp, nil
		}
	}
	return nil, errors.NotFound("project", projectID)
}

func (p *Projects) ListByStatus(_ context.Context, orgID, status string) ([]*repository.Project, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	if err := p.s.fault("ListByStatus", orgID); err != nil {
		return nil, err
	}

	out := make([]*repository.Project, 0)
	for _, proj := range p.s.projects {
		if proj.OrgID == orgID && proj.Status == status {
			cp := *proj
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *Projects) LatestFinancial(_ context.Context, orgID, projectID string) (*repository.Financial, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	if err := p.s.fault("LatestFinancial", orgID); err != nil {
		return nil, err
	}

	var latest *repository.Financial
	for _, f := range p.s.financials {
		if f.OrgID != orgID || f.ProjectID != projectID {
			continue
		}
		if latest == nil || !f.CreatedAt.Before(latest.CreatedAt) {
			latest = f
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (p *Projects) ListRisks(_ context.Context, orgID, projectID string) ([]*repository.Risk, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	if err := p.s.fault("ListRisks", orgID); err != nil {
		return nil, err
	}

	out := make([]*repository.Risk, 0)
	for _, r := range p.s.risks {
		if r.OrgID == orgID && r.ProjectID == projectID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *Projects) GetRisk(_ context.Context, orgID, riskID string) (*repository.Risk, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	for _, r := range p.s.risks {
		if r.OrgID == orgID && r.ID == riskID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.NotFound("risk", riskID)
}

func (p *Projects) AcknowledgeRisk(_ context.Context, orgID, riskID, actorID string, at time.Time) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for _, r := range p.s.risks {
		if r.OrgID == orgID && r.ID == riskID {
			r.Acknowledged = true
			r.AcknowledgedBy = &actorID
			r.AcknowledgedAt = &at
			return nil
		}
	}
	return errors.NotFound("risk", riskID)
}

func (p *Projects) ListMilestones(_ context.Context, orgID, projectID string) ([]*repository.Milestone, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	out := make([]*repository.Milestone, 0)
	for _, m := range p.s.milestones {
		if m.OrgID == orgID && m.ProjectID == projectID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *Projects) ListDeliverables(_ context.Context, orgID, projectID string) ([]*repository.Deliverable, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	out := make([]*repository.Deliverable, 0)
	for _, d := range p.s.deliverables {
		if d.OrgID == orgID && d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (p *Projects) ListUpdates(_ context.Context, orgID, projectID string) ([]*repository.ProjectUpdate, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	out := make([]*repository.ProjectUpdate, 0)
	for _, u := range p.s.updates {
		if u.OrgID == orgID && u.ProjectID == projectID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodEnd.After(out[j].PeriodEnd)
	})
	return out, nil
}

// ── Patterns ─────────────────────────────────────────────────────────────────

// Patterns implements repository.PatternStore.
type Patterns struct{ s *Store }

func (p *Patterns) Create(_ context.Context, pattern *repository.Pattern) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.fault("CreatePattern", pattern.OrgID); err != nil {
		return err
	}

	if pattern.ID == "" {
		pattern.ID = newID()
	}
	p.s.patterns = append(p.s.patterns, clonePattern(pattern))
	return nil
}

func (p *Patterns) Get(_ context.Context, orgID, id string) (*repository.Pattern, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	for _, pattern := range p.s.patterns {
		if pattern.OrgID == orgID && pattern.ID == id {
			return clonePattern(pattern), nil
		}
	}
	return nil, errors.NotFound("pattern", id)
}

func (p *Patterns) List(_ context.Context, orgID string, status *string) ([]*repository.Pattern, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	out := make([]*repository.Pattern, 0)
	for _, pattern := range p.s.patterns {
		if pattern.OrgID != orgID {
			continue
		}
		if status != nil && pattern.Status != *status {
			continue
		}
		out = append(out, clonePattern(pattern))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (p *Patterns) UpdateStatus(_ context.Context, orgID, id, status, actorID string, at time.Time) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for _, pattern := range p.s.patterns {
		if pattern.OrgID == orgID && pattern.ID == id {
			pattern.Status = status
			pattern.ReviewedBy = &actorID
			pattern.ReviewedAt = &at
			return nil
		}
	}
	return errors.NotFound("pattern", id)
}

// ── Proposals ────────────────────────────────────────────────────────────────

// Proposals implements repository.ProposalStore.
type Proposals struct{ s *Store }

func (p *Proposals) Get(_ context.Context, orgID, id string) (*repository.Proposal, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	if prop := p.s.findProposal(orgID, id); prop != nil {
		return cloneProposal(prop), nil
	}
	return nil, errors.NotFound("proposal", id)
}

// CreateSnapshot stores the snapshot and locks the proposal under one lock
// acquisition.
func (p *Proposals) CreateSnapshot(_ context.Context, snap *repository.Snapshot) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	prop := p.s.findProposal(snap.OrgID, snap.ProposalID)
	if prop == nil {
		return errors.NotFound("proposal", snap.ProposalID)
	}
	for _, existing := range p.s.snapshots {
		if existing.OrgID == snap.OrgID && existing.ProposalID == snap.ProposalID && existing.Version == snap.Version {
			return errors.New(errors.ErrCodeConflict, "snapshot version already exists: "+snap.Version)
		}
	}

	p.s.snapshotSeq++
	snap.Seq = p.s.snapshotSeq
	p.s.snapshots = append(p.s.snapshots, cloneSnapshot(snap))

	version := snap.Version
	by := snap.CreatedBy
	prop.Status = repository.ProposalStatusSent
	prop.Locked = true
	prop.CurrentSnapshotVersion = &version
	prop.UpdatedBy = &by
	prop.UpdatedAt = snap.CreatedAt
	return nil
}

func (p *Proposals) LatestSnapshot(_ context.Context, orgID, proposalID string) (*repository.Snapshot, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	var latest *repository.Snapshot
	for _, snap := range p.s.snapshots {
		if snap.OrgID != orgID || snap.ProposalID != proposalID {
			continue
		}
		if latest == nil || snap.Seq > latest.Seq {
			latest = snap
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneSnapshot(latest), nil
}

func (p *Proposals) GetSnapshot(_ context.Context, orgID, proposalID, version string) (*repository.Snapshot, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	for _, snap := range p.s.snapshots {
		if snap.OrgID == orgID && snap.ProposalID == proposalID && snap.Version == version {
			return cloneSnapshot(snap), nil
		}
	}
	return nil, errors.NotFound("snapshot", version)
}

// findProposal must be called with mu held.
func (s *Store) findProposal(orgID, id string) *repository.Proposal {
	for _, prop := range s.proposals {
		if prop.OrgID == orgID && prop.ID == id {
			return prop
		}
	}
	return nil
}
