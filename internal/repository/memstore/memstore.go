// Package memstore is an in-memory implementation of the repository
// interfaces. Documents are copied on the way in and out, so callers never
// share memory with stored state.
package memstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

// Store holds every collection of every tenant.
type Store struct {
	mu sync.RWMutex

	orgs         []*repository.Org
	members      []*repository.Membership
	projects     []*repository.Project
	financials   []*repository.Financial
	risks        []*repository.Risk
	milestones   []*repository.Milestone
	deliverables []*repository.Deliverable
	updates      []*repository.ProjectUpdate
	patterns     []*repository.Pattern
	proposals    []*repository.Proposal
	snapshots    []*repository.Snapshot
	snapshotSeq  int64

	faultMu sync.Mutex
	faults  map[string]*injectedFault
}

// injectedFault fails an operation once skip successful calls have passed.
type injectedFault struct {
	err  error
	skip int
}

// New returns an empty store.
func New() *Store {
	return &Store{faults: make(map[string]*injectedFault)}
}

// Orgs returns the repository.OrgStore view.
func (s *Store) Orgs() *Orgs { return &Orgs{s: s} }

// Projects returns the repository.ProjectStore view.
func (s *Store) Projects() *Projects { return &Projects{s: s} }

// Patterns returns the repository.PatternStore view.
func (s *Store) Patterns() *Patterns { return &Patterns{s: s} }

// Proposals returns the repository.ProposalStore view.
func (s *Store) Proposals() *Proposals { return &Proposals{s: s} }

var (
	_ repository.OrgStore      = (*Orgs)(nil)
	_ repository.ProjectStore  = (*Projects)(nil)
	_ repository.PatternStore  = (*Patterns)(nil)
	_ repository.ProposalStore = (*Proposals)(nil)
)

// InjectFault makes operation op fail with err for orgID. op is the
// method name ("ListActive", "ListByStatus", "LatestFinancial", "ListRisks")
// or "CreatePattern".
func (s *Store) InjectFault(op, orgID string, err error) {
	s.InjectFaultAfter(op, orgID, 0, err)
}

// InjectFaultAfter lets op succeed n times for orgID, then fail with err.
func (s *Store) InjectFaultAfter(op, orgID string, n int, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op+"/"+orgID] = &injectedFault{err: err, skip: n}
}

func (s *Store) fault(op, orgID string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	f, ok := s.faults[op+"/"+orgID]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	return f.err
}

// ── seeding ──────────────────────────────────────────────────────────────────

// AddOrg seeds an organization.
func (s *Store) AddOrg(o repository.Org) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs = append(s.orgs, &o)
}

// AddMember seeds an org membership.
func (s *Store) AddMember(m repository.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, &m)
}

// AddProject seeds a project.
func (s *Store) AddProject(p repository.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = append(s.projects, &p)
}

// AddFinancial seeds a financial record, assigning an id when empty.
func (s *Store) AddFinancial(f repository.Financial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	s.financials = append(s.financials, &f)
}

// AddRisk seeds a risk, assigning an id when empty.
func (s *Store) AddRisk(r repository.Risk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.risks = append(s.risks, &r)
}

// AddMilestone seeds a milestone.
func (s *Store) AddMilestone(m repository.Milestone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.milestones = append(s.milestones, &m)
}

// AddDeliverable seeds a deliverable.
func (s *Store) AddDeliverable(d repository.Deliverable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliverables = append(s.deliverables, &d)
}

// AddUpdate seeds a project update.
func (s *Store) AddUpdate(u repository.ProjectUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, &u)
}

// AddPattern seeds a copy of a pattern.
func (s *Store) AddPattern(p repository.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, clonePattern(&p))
}

// AddProposal seeds a proposal with a copy of its document.
func (s *Store) AddProposal(p repository.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Document = cloneMap(p.Document)
	s.proposals = append(s.proposals, &p)
}

// SnapshotCount returns the number of stored snapshots across all tenants.
func (s *Store) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// ── copy helpers ─────────────────────────────────────────────────────────────

func newID() string { return uuid.NewString() }

func clonePattern(p *repository.Pattern) *repository.Pattern {
	cp := *p
	cp.Indicators = append([]string(nil), p.Indicators...)
	cp.Examples = append([]string(nil), p.Examples...)
	return &cp
}

func cloneProposal(p *repository.Proposal) *repository.Proposal {
	cp := *p
	cp.Document = cloneMap(p.Document)
	return &cp
}

func cloneSnapshot(snap *repository.Snapshot) *repository.Snapshot {
	cp := *snap
	cp.Content = cloneMap(snap.Content)
	cp.Branding = cloneMap(snap.Branding)
	cp.Terms = cloneAny(snap.Terms)
	return &cp
}

// cloneMap deep-copies a JSON document the way a round trip through a JSON
// column would.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	var out map[string]any
	if err := roundTrip(m, &out); err != nil {
		panic(fmt.Sprintf("memstore: clone document: %v", err))
	}
	return out
}

func cloneAny(v any) any {
	if v == nil {
		return nil
	}
	var out any
	if err := roundTrip(v, &out); err != nil {
		panic(fmt.Sprintf("memstore: clone value: %v", err))
	}
	return out
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
