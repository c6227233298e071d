package service

import (
	"context"
	"sync"
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository/memstore"
)

const testOrg = "org-a"

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type publishedEvent struct {
	subject string
	event   client.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (r *recordingPublisher) Publish(_ context.Context, subject string, event client.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{subject: subject, event: event})
}

func (r *recordingPublisher) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.subject
	}
	return out
}

type fixture struct {
	store  *memstore.Store
	events *recordingPublisher
	log    *logger.Logger
}

// newFixture seeds one active org with a member of every role, each member
// named after the role ("owner", "admin", ...), and one outsider.
func newFixture() *fixture {
	store := memstore.New()
	store.AddOrg(repository.Org{ID: testOrg, Name: "Acme Studio", Status: repository.OrgStatusActive})
	for _, role := range []string{"owner", "admin", "staff", "viewer", "client"} {
		store.AddMember(repository.Membership{OrgID: testOrg, UserID: role, Role: role})
	}
	return &fixture{store: store, events: &recordingPublisher{}, log: logger.Nop()}
}

func caller(userID string) *auth.UserContext {
	return &auth.UserContext{UserID: userID, Email: userID + "@example.com"}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) patternService() *PatternService {
	svc := NewPatternService(f.store.Orgs(), f.store.Projects(), f.store.Patterns(), f.events, f.log, 2)
	svc.now = fixedClock
	return svc
}

func (f *fixture) proposalService() *ProposalService {
	svc := NewProposalService(f.store.Orgs(), f.store.Proposals(), f.events, f.log)
	svc.now = fixedClock
	return svc
}

func (f *fixture) actionService() *ActionService {
	svc := NewActionService(f.store.Orgs(), f.store.Projects(), f.store.Patterns(), f.log)
	svc.now = fixedClock
	return svc
}

func (f *fixture) projectService() *ProjectService {
	svc := NewProjectService(f.store.Orgs(), f.store.Projects(), f.log)
	svc.now = fixedClock
	return svc
}

// addCompleted seeds a completed project with an optional margin.
func (f *fixture) addCompleted(orgID, id string, margin *float64) {
	f.store.AddProject(repository.Project{ID: id, OrgID: orgID, Name: id, Status: repository.ProjectStatusCompleted})
	if margin != nil {
		f.store.AddFinancial(repository.Financial{
			OrgID:                  orgID,
			ProjectID:              id,
			EstimatedMarginPercent: margin,
			QuotedValue:            ptr(10000.0),
			CreatedAt:              fixedNow,
		})
	}
}
