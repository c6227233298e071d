package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

// eventPublisher is satisfied by *client.EventPublisher.
type eventPublisher interface {
	Publish(ctx context.Context, subject string, event client.Event)
}

// accessGate resolves the caller's role in a tenant and enforces a minimum.
type accessGate struct {
	orgs repository.OrgStore
}

// require returns the caller's role in orgID when it ranks at least min.
// A missing caller is UNAUTHENTICATED; a caller without a membership, or
// with a role below min, is PERMISSION_DENIED.
func (g accessGate) require(ctx context.Context, caller *auth.UserContext, orgID string, min auth.Role) (auth.Role, error) {
	if caller == nil || caller.UserID == "" {
		return auth.RoleNone, errors.Unauthenticated("authentication required")
	}
	if orgID == "" {
		return auth.RoleNone, errors.InvalidInput("tenant_id", "tenant_id is required")
	}

	m, err := g.orgs.GetMembership(ctx, orgID, caller.UserID)
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		return auth.RoleNone, errors.PermissionDenied("not a member of this organization")
	}
	if err != nil {
		return auth.RoleNone, err
	}

	role, err := auth.ParseRole(m.Role)
	if err != nil {
		return auth.RoleNone, errors.PermissionDenied("membership role is not recognized")
	}
	if !role.AtLeast(min) {
		return role, errors.PermissionDenied("role " + role.String() + " may not perform this operation")
	}
	return role, nil
}

// utcNow is the default clock of every service.
func utcNow() time.Time { return time.Now().UTC() }
