package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

// Action names accepted by ActionService.Execute.
const (
	ActionAcknowledgeRisk = "acknowledge_risk"
	ActionApprovePattern  = "approve_pattern"
	ActionRejectPattern   = "reject_pattern"
)

// MutationRequest names an action and the document it applies to.
type MutationRequest struct {
	Action   string
	OrgID    string
	TargetID string
}

// MutationResult is returned by every successful action.
type MutationResult struct {
	Acknowledged bool `json:"acknowledged"`
}

// action is one role-gated, single-document mutation.
type action struct {
	minRole auth.Role
	// exists returns NOT_FOUND when the target is absent.
	exists func(ctx context.Context, orgID, id string) error
	apply  func(ctx context.Context, orgID, id, actorID string, at time.Time) error
}

// ActionService executes review actions on risks and patterns.
type ActionService struct {
	gate    accessGate
	actions map[string]action
	log     *logger.Logger
	now     func() time.Time
}

// NewActionService creates a new action service
func NewActionService(
	orgs repository.OrgStore,
	projects repository.ProjectStore,
	patterns repository.PatternStore,
	log *logger.Logger,
) *ActionService {
	patternExists := func(ctx context.Context, orgID, id string) error {
		_, err := patterns.Get(ctx, orgID, id)
		return err
	}
	setPatternStatus := func(status string) func(context.Context, string, string, string, time.Time) error {
		return func(ctx context.Context, orgID, id, actorID string, at time.Time) error {
			return patterns.UpdateStatus(ctx, orgID, id, status, actorID, at)
		}
	}

	return &ActionService{
		gate: accessGate{orgs: orgs},
		actions: map[string]action{
			ActionAcknowledgeRisk: {
				minRole: auth.RoleStaff,
				exists: func(ctx context.Context, orgID, id string) error {
					_, err := projects.GetRisk(ctx, orgID, id)
					return err
				},
				apply: projects.AcknowledgeRisk,
			},
			ActionApprovePattern: {
				minRole: auth.RoleStaff,
				exists:  patternExists,
				apply:   setPatternStatus(repository.PatternStatusApproved),
			},
			ActionRejectPattern: {
				minRole: auth.RoleStaff,
				exists:  patternExists,
				apply:   setPatternStatus(repository.PatternStatusRejected),
			},
		},
		log: log,
		now: utcNow,
	}
}

// Execute authorizes the caller, checks the target exists and applies the
// action stamped with the caller's id and the current time.
func (s *ActionService) Execute(ctx context.Context, caller *auth.UserContext, req *MutationRequest) (*MutationResult, error) {
	if caller == nil || caller.UserID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	if req == nil {
		return nil, errors.InvalidInput("action", "request is required")
	}
	act, ok := s.actions[req.Action]
	if !ok {
		return nil, errors.InvalidInput("action", "unknown action "+req.Action)
	}
	if req.TargetID == "" {
		return nil, errors.InvalidInput("target_id", "target_id is required")
	}

	if _, err := s.gate.require(ctx, caller, req.OrgID, act.minRole); err != nil {
		return nil, err
	}
	if err := act.exists(ctx, req.OrgID, req.TargetID); err != nil {
		return nil, err
	}
	if err := act.apply(ctx, req.OrgID, req.TargetID, caller.UserID, s.now()); err != nil {
		return nil, err
	}

	s.log.WithTenant(req.OrgID).Info().
		Str("action", req.Action).
		Str("target_id", req.TargetID).
		Str("user_id", caller.UserID).
		Msg("action applied")

	return &MutationResult{Acknowledged: true}, nil
}
