package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pesio-ai/be-commercial-intelligence/internal/auth"
	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/logger"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
	"github.com/pesio-ai/be-commercial-intelligence/internal/signals"
)

// threshold is the qualification rule of one pattern type: a signal needs
// at least max(Floor, floor(Fraction × completed projects)) contributors.
type threshold struct {
	Floor      int
	Fraction   float64
	Confidence string
}

var (
	weakMarginThreshold   = threshold{Floor: 2, Fraction: 0.20, Confidence: repository.ConfidenceMedium}
	scopeCreepThreshold   = threshold{Floor: 2, Fraction: 0.20, Confidence: repository.ConfidenceMedium}
	riskCategoryThreshold = threshold{Floor: 3, Fraction: 0.25, Confidence: repository.ConfidenceLow}
)

func (t threshold) required(total int) int {
	return max(t.Floor, int(math.Floor(t.Fraction*float64(total))))
}

func (t threshold) qualifies(count, total int) bool {
	return count > 0 && count >= t.required(total)
}

// PatternService mines completed projects for recurring commercial
// patterns and serves the review queue.
type PatternService struct {
	gate        accessGate
	orgs        repository.OrgStore
	projects    repository.ProjectStore
	patterns    repository.PatternStore
	events      eventPublisher
	log         *logger.Logger
	concurrency int
	now         func() time.Time
}

// NewPatternService creates a new pattern service. concurrency bounds how
// many tenants RunAll processes at once.
func NewPatternService(
	orgs repository.OrgStore,
	projects repository.ProjectStore,
	patterns repository.PatternStore,
	events eventPublisher,
	log *logger.Logger,
	concurrency int,
) *PatternService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PatternService{
		gate:        accessGate{orgs: orgs},
		orgs:        orgs,
		projects:    projects,
		patterns:    patterns,
		events:      events,
		log:         log,
		concurrency: concurrency,
		now:         utcNow,
	}
}

// RunSummary reports the outcome of a scheduled run.
type RunSummary struct {
	Tenants       int
	FailedTenants []string
	Patterns      int
}

// RunAll runs the aggregation for every active tenant. Tenants are
// processed independently: one tenant's failure is logged, the remaining
// tenants still run, and all failures come back joined.
func (s *PatternService) RunAll(ctx context.Context) (*RunSummary, error) {
	orgs, err := s.orgs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active orgs: %w", err)
	}

	var (
		mu      sync.Mutex
		summary = &RunSummary{Tenants: len(orgs)}
		errs    []error
		g       errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, org := range orgs {
		orgID := org.ID
		g.Go(func() error {
			created, err := s.RunTenant(ctx, orgID)

			mu.Lock()
			defer mu.Unlock()
			summary.Patterns += len(created)
			if err != nil {
				s.log.WithTenant(orgID).Error().Err(err).
					Int("pattern_count", len(created)).
					Msg("pattern aggregation failed")
				summary.FailedTenants = append(summary.FailedTenants, orgID)
				errs = append(errs, fmt.Errorf("tenant %s: %w", orgID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(summary.FailedTenants)
	return summary, stderrors.Join(errs...)
}

// candidate is a signal under evaluation together with its contributors.
type candidate struct {
	description string
	indicators  []string
	threshold   threshold
	projectIDs  []string
}

// RunTenant aggregates one tenant's completed projects and writes a draft
// pattern for each qualifying signal. Patterns written before a failure
// are kept and returned alongside the error.
func (s *PatternService) RunTenant(ctx context.Context, orgID string) ([]*repository.Pattern, error) {
	projects, err := s.projects.ListByStatus(ctx, orgID, repository.ProjectStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed projects: %w", err)
	}

	var (
		weak, creep []string
		byCategory  = make(map[string][]string)
	)
	for _, p := range projects {
		fin, err := s.projects.LatestFinancial(ctx, orgID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("load financials for project %s: %w", p.ID, err)
		}
		flags := signals.EvaluateFinancials(fin)
		if flags.WeakMargin {
			weak = append(weak, p.ID)
		}
		if flags.ScopeCreep {
			creep = append(creep, p.ID)
		}

		risks, err := s.projects.ListRisks(ctx, orgID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("load risks for project %s: %w", p.ID, err)
		}
		seen := make(map[string]bool)
		for _, r := range risks {
			category := r.CategoryOrDefault()
			if seen[category] {
				continue
			}
			seen[category] = true
			byCategory[category] = append(byCategory[category], p.ID)
		}
	}

	candidates := []candidate{
		{
			description: "Completed projects repeatedly closed below the target margin",
			indicators:  []string{fmt.Sprintf("estimatedMarginPercent < %g", signals.WeakMarginPercent)},
			threshold:   weakMarginThreshold,
			projectIDs:  weak,
		},
		{
			description: "Completed projects repeatedly absorbed additional scope beyond the quote",
			indicators:  []string{fmt.Sprintf("additionalScopeValue > %g x quotedValue", signals.ScopeCreepRatio)},
			threshold:   scopeCreepThreshold,
			projectIDs:  creep,
		},
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		candidates = append(candidates, candidate{
			description: fmt.Sprintf("Risks in category %q recur across completed projects", c),
			indicators:  []string{"risk category: " + c},
			threshold:   riskCategoryThreshold,
			projectIDs:  byCategory[c],
		})
	}

	total := len(projects)
	created := make([]*repository.Pattern, 0)
	for _, c := range candidates {
		if !c.threshold.qualifies(len(c.projectIDs), total) {
			continue
		}

		examples := c.projectIDs
		if len(examples) > repository.MaxPatternExamples {
			examples = examples[:repository.MaxPatternExamples]
		}
		pattern := &repository.Pattern{
			OrgID:           orgID,
			Description:     c.description,
			Indicators:      c.indicators,
			Examples:        append([]string(nil), examples...),
			ConfidenceLevel: c.threshold.Confidence,
			Status:          repository.PatternStatusDraft,
			CreatedBy:       repository.SystemActor,
			CreatedAt:       s.now(),
		}
		if err := s.patterns.Create(ctx, pattern); err != nil {
			return created, fmt.Errorf("create pattern: %w", err)
		}
		created = append(created, pattern)
	}

	s.log.WithTenant(orgID).Info().
		Int("completed_projects", total).
		Int("pattern_count", len(created)).
		Msg("pattern aggregation complete")

	if len(created) > 0 {
		ids := make([]string, len(created))
		for i, p := range created {
			ids[i] = p.ID
		}
		s.events.Publish(ctx, client.SubjectPatternsDetected, client.Event{
			EventType:    "patterns_detected",
			OrgID:        orgID,
			ActorID:      repository.SystemActor,
			ResourceType: "commercial_pattern",
			Payload:      map[string]any{"pattern_count": len(created), "pattern_ids": ids},
		})
	}

	return created, nil
}

// Run is the manual trigger of RunTenant for one tenant; it requires admin.
func (s *PatternService) Run(ctx context.Context, caller *auth.UserContext, orgID string) ([]*repository.Pattern, error) {
	if _, err := s.gate.require(ctx, caller, orgID, auth.RoleAdmin); err != nil {
		return nil, err
	}

	s.log.WithTenant(orgID).Info().Str("user_id", caller.UserID).Msg("manual pattern aggregation requested")

	created, err := s.RunTenant(ctx, orgID)
	if err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "pattern aggregation failed")
	}
	return created, nil
}

// List returns the tenant's patterns, newest first, optionally filtered by
// status.
func (s *PatternService) List(ctx context.Context, caller *auth.UserContext, orgID string, status *string) ([]*repository.Pattern, error) {
	if status != nil {
		switch *status {
		case repository.PatternStatusDraft, repository.PatternStatusApproved, repository.PatternStatusRejected:
		default:
			return nil, errors.InvalidInput("status", "status must be draft, approved or rejected")
		}
	}
	if _, err := s.gate.require(ctx, caller, orgID, auth.RoleViewer); err != nil {
		return nil, err
	}
	return s.patterns.List(ctx, orgID, status)
}
