package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
	"github.com/pesio-ai/be-commercial-intelligence/internal/signals"
)

// ProjectService serves the derived health signals of a single project.
type ProjectService struct {
	gate     accessGate
	projects repository.ProjectStore
	log      *logger.Logger
	now      func() time.Time
}

// NewProjectService creates a new project service
func NewProjectService(orgs repository.OrgStore, projects repository.ProjectStore, log *logger.Logger) *ProjectService {
	return &ProjectService{
		gate:     accessGate{orgs: orgs},
		projects: projects,
		log:      log,
		now:      utcNow,
	}
}

// RiskSignals evaluates the delivery-risk indicators of a project.
func (s *ProjectService) RiskSignals(ctx context.Context, caller *auth.UserContext, orgID, projectID string) (*signals.RiskSignals, error) {
	if err := s.authorize(ctx, caller, orgID, projectID); err != nil {
		return nil, err
	}

	milestones, err := s.projects.ListMilestones(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	deliverables, err := s.projects.ListDeliverables(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	updates, err := s.projects.ListUpdates(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	result := signals.EvaluateRiskSignals(milestones, deliverables, updates, s.now())
	s.log.WithTenant(orgID).Debug().
		Str("project_id", projectID).
		Bool("milestone_overdue", result.MilestoneOverdue).
		Bool("deliverable_stuck", result.DeliverableStuck).
		Bool("update_lag", result.UpdateLag).
		Msg("risk signals evaluated")
	return &result, nil
}

// FinancialFlags evaluates the latest financial record of a project. A
// project without one is evaluated at the declared defaults.
func (s *ProjectService) FinancialFlags(ctx context.Context, caller *auth.UserContext, orgID, projectID string) (*signals.FinancialFlags, error) {
	if err := s.authorize(ctx, caller, orgID, projectID); err != nil {
		return nil, err
	}

	fin, err := s.projects.LatestFinancial(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	flags := signals.EvaluateFinancials(fin)
	return &flags, nil
}

func (s *ProjectService) authorize(ctx context.Context, caller *auth.UserContext, orgID, projectID string) error {
	if _, err := s.gate.require(ctx, caller, orgID, auth.RoleViewer); err != nil {
		return err
	}
	if projectID == "" {
		return errors.InvalidInput("project_id", "project_id is required")
	}
	_, err := s.projects.Get(ctx, orgID, projectID)
	return err
}
