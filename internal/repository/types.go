package repository

import "time"

// ── Lifecycle values ─────────────────────────────────────────────────────────

const (
	OrgStatusActive   = "active"
	OrgStatusInactive = "inactive"

	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"

	MilestoneStatusComplete = "complete"

	DeliverableStatusChangesRequested = "changes_requested"

	UpdateStatusDraft     = "draft"
	UpdateStatusPublished = "published"

	PatternStatusDraft    = "draft"
	PatternStatusApproved = "approved"
	PatternStatusRejected = "rejected"

	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"

	ProposalStatusDraft = "draft"
	ProposalStatusSent  = "sent"

	// SystemActor is recorded as the creator of documents written by
	// scheduled jobs.
	SystemActor = "system"

	// DefaultRiskCategory buckets risks recorded without a category.
	DefaultRiskCategory = "general"
)

// Declared defaults for absent financial values.
const (
	DefaultEstimatedMarginPercent = 0.0
	DefaultAdditionalScopeValue   = 0.0
	// DefaultQuotedValue keeps the scope-creep ratio defined when no quote
	// was recorded; any positive additional scope then exceeds it.
	DefaultQuotedValue = 1.0
)

// ── Tenancy ──────────────────────────────────────────────────────────────────

// Org is a tenant. Every other document is scoped under one.
type Org struct {
	ID        string
	Name      string
	Status    string // active | inactive
	CreatedAt time.Time
}

// Membership binds a user to an org with a role name.
type Membership struct {
	OrgID  string
	UserID string
	Role   string
}

// ── Projects ─────────────────────────────────────────────────────────────────

// Project belongs to one org.
type Project struct {
	ID        string
	OrgID     string
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Financial is the financial record of a project. Every numeric field is
// optional; use the accessors to read them with their declared defaults.
type Financial struct {
	ID                     string
	OrgID                  string
	ProjectID              string
	EstimatedMarginPercent *float64
	AdditionalScopeValue   *float64
	QuotedValue            *float64
	CreatedAt              time.Time
}

// MarginPercent returns EstimatedMarginPercent or DefaultEstimatedMarginPercent.
func (f *Financial) MarginPercent() float64 {
	if f == nil {
		return DefaultEstimatedMarginPercent
	}
	return valueOr(f.EstimatedMarginPercent, DefaultEstimatedMarginPercent)
}

// ScopeValue returns AdditionalScopeValue or DefaultAdditionalScopeValue.
func (f *Financial) ScopeValue() float64 {
	if f == nil {
		return DefaultAdditionalScopeValue
	}
	return valueOr(f.AdditionalScopeValue, DefaultAdditionalScopeValue)
}

// HasQuote reports whether a non-zero quoted value is recorded.
func (f *Financial) HasQuote() bool {
	return f != nil && f.QuotedValue != nil && *f.QuotedValue != 0
}

// Quote returns QuotedValue or DefaultQuotedValue. A recorded zero is
// treated as absent.
func (f *Financial) Quote() float64 {
	if !f.HasQuote() {
		return DefaultQuotedValue
	}
	return *f.QuotedValue
}

// Risk is a risk record raised against a project.
type Risk struct {
	ID             string
	OrgID          string
	ProjectID      string
	Category       *string
	Description    string
	Severity       string
	Acknowledged   bool
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
	CreatedAt      time.Time
}

// CategoryOrDefault returns the category, or DefaultRiskCategory when unset.
func (r *Risk) CategoryOrDefault() string {
	if r.Category == nil || *r.Category == "" {
		return DefaultRiskCategory
	}
	return *r.Category
}

// Milestone is a dated project checkpoint.
type Milestone struct {
	ID        string
	OrgID     string
	ProjectID string
	Title     string
	DueDate   *time.Time
	Status    string
}

// Deliverable is a reviewable project output.
type Deliverable struct {
	ID        string
	OrgID     string
	ProjectID string
	Title     string
	Status    string
}

// ProjectUpdate is a periodic status report to the client.
type ProjectUpdate struct {
	ID          string
	OrgID       string
	ProjectID   string
	Status      string // draft | published
	PeriodEnd   time.Time
	PublishedAt *time.Time
}

// ── Commercial intelligence ──────────────────────────────────────────────────

// Pattern is a cross-project commercial pattern. The aggregator creates it
// as a draft; only review actions change it afterwards.
type Pattern struct {
	ID              string
	OrgID           string
	Description     string
	Indicators      []string
	Examples        []string // project ids, at most MaxPatternExamples
	ConfidenceLevel string   // low | medium | high
	Status          string   // draft | approved | rejected
	CreatedBy       string
	CreatedAt       time.Time
	ReviewedBy      *string
	ReviewedAt      *time.Time
}

// MaxPatternExamples caps Pattern.Examples.
const MaxPatternExamples = 10

// ── Proposals ────────────────────────────────────────────────────────────────

// Proposal is the mutable proposal document. Document holds the free-form
// content fields as stored.
type Proposal struct {
	ID                     string
	OrgID                  string
	Title                  string
	Status                 string
	Locked                 bool
	CurrentSnapshotVersion *string
	Document               map[string]any
	UpdatedBy              *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Snapshot is the immutable, checksummed copy of a proposal at send time.
type Snapshot struct {
	OrgID      string
	ProposalID string
	Version    string
	Content    map[string]any
	Branding   map[string]any
	Terms      any
	Checksum   string
	CreatedBy  string
	CreatedAt  time.Time
	// Seq orders snapshots of one proposal by insertion. Assigned by the store.
	Seq int64
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
