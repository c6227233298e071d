package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-commercial-intelligence/internal/database"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

// ProjectRepository handles projects and their sub-collections.
type ProjectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *database.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Get retrieves a project by ID.
func (r *ProjectRepository) Get(ctx context.Context, orgID, projectID string) (*Project, error) {
	p := &Project{}

	query := `
		SELECT id, org_id, name, status, created_at, updated_at
		FROM projects
		WHERE id = $1 AND org_id = $2
	`

	err := r.db.QueryRow(ctx, query, projectID, orgID).Scan(
		&p.ID, &p.OrgID, &p.Name, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("project", projectID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get project")
	}

	return p, nil
}

// ListByStatus returns all projects of an org with the given status.
func (r *ProjectRepository) ListByStatus(ctx context.Context, orgID, status string) ([]*Project, error) {
	query := `
		SELECT id, org_id, name, status, created_at, updated_at
		FROM projects
		WHERE org_id = $1 AND status = $2
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, orgID, status)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list projects")
	}
	defer rows.Close()

	projects := make([]*Project, 0)
	for rows.Next() {
		p := &Project{}
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan project")
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate projects")
	}

	return projects, nil
}

// LatestFinancial returns the most recent financial record, or nil.
func (r *ProjectRepository) LatestFinancial(ctx context.Context, orgID, projectID string) (*Financial, error) {
	f := &Financial{}

	query := `
		SELECT id, org_id, project_id, estimated_margin_percent, additional_scope_value,
		       quoted_value, created_at
		FROM project_financials
		WHERE org_id = $1 AND project_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.QueryRow(ctx, query, orgID, projectID).Scan(
		&f.ID, &f.OrgID, &f.ProjectID,
		&f.EstimatedMarginPercent, &f.AdditionalScopeValue, &f.QuotedValue,
		&f.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get project financials")
	}

	return f, nil
}

const riskColumns = `
	id, org_id, project_id, category, description, severity,
	acknowledged, acknowledged_by, acknowledged_at, created_at
`

// ListRisks returns all risk records of a project.
func (r *ProjectRepository) ListRisks(ctx context.Context, orgID, projectID string) ([]*Risk, error) {
	query := `SELECT ` + riskColumns + `
		FROM project_risks
		WHERE org_id = $1 AND project_id = $2
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list project risks")
	}
	defer rows.Close()

	risks := make([]*Risk, 0)
	for rows.Next() {
		risk, err := scanRisk(rows)
		if err != nil {
			return nil, err
		}
		risks = append(risks, risk)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate project risks")
	}

	return risks, nil
}

// GetRisk retrieves a single risk record.
func (r *ProjectRepository) GetRisk(ctx context.Context, orgID, riskID string) (*Risk, error) {
	query := `SELECT ` + riskColumns + `
		FROM project_risks
		WHERE id = $1 AND org_id = $2
	`

	risk, err := scanRisk(r.db.QueryRow(ctx, query, riskID, orgID))
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, errors.NotFound("risk", riskID)
	}
	return risk, err
}

// AcknowledgeRisk marks a risk acknowledged by actorID.
func (r *ProjectRepository) AcknowledgeRisk(ctx context.Context, orgID, riskID, actorID string, at time.Time) error {
	query := `
		UPDATE project_risks
		SET acknowledged = true, acknowledged_by = $3, acknowledged_at = $4
		WHERE id = $1 AND org_id = $2
	`

	tag, err := r.db.Exec(ctx, query, riskID, orgID, actorID, at)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to acknowledge risk")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("risk", riskID)
	}
	return nil
}

// ListMilestones returns the milestones of a project.
func (r *ProjectRepository) ListMilestones(ctx context.Context, orgID, projectID string) ([]*Milestone, error) {
	query := `
		SELECT id, org_id, project_id, title, due_date, status
		FROM milestones
		WHERE org_id = $1 AND project_id = $2
		ORDER BY due_date NULLS LAST, id
	`

	rows, err := r.db.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list milestones")
	}
	defer rows.Close()

	milestones := make([]*Milestone, 0)
	for rows.Next() {
		m := &Milestone{}
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ProjectID, &m.Title, &m.DueDate, &m.Status); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan milestone")
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate milestones")
	}

	return milestones, nil
}

// ListDeliverables returns the deliverables of a project.
func (r *ProjectRepository) ListDeliverables(ctx context.Context, orgID, projectID string) ([]*Deliverable, error) {
	query := `
		SELECT id, org_id, project_id, title, status
		FROM deliverables
		WHERE org_id = $1 AND project_id = $2
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list deliverables")
	}
	defer rows.Close()

	deliverables := make([]*Deliverable, 0)
	for rows.Next() {
		d := &Deliverable{}
		if err := rows.Scan(&d.ID, &d.OrgID, &d.ProjectID, &d.Title, &d.Status); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan deliverable")
		}
		deliverables = append(deliverables, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate deliverables")
	}

	return deliverables, nil
}

// ListUpdates returns the updates of a project, most recent period first.
func (r *ProjectRepository) ListUpdates(ctx context.Context, orgID, projectID string) ([]*ProjectUpdate, error) {
	query := `
		SELECT id, org_id, project_id, status, period_end, published_at
		FROM project_updates
		WHERE org_id = $1 AND project_id = $2
		ORDER BY period_end DESC, id
	`

	rows, err := r.db.Query(ctx, query, orgID, projectID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list project updates")
	}
	defer rows.Close()

	updates := make([]*ProjectUpdate, 0)
	for rows.Next() {
		u := &ProjectUpdate{}
		if err := rows.Scan(&u.ID, &u.OrgID, &u.ProjectID, &u.Status, &u.PeriodEnd, &u.PublishedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan project update")
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate project updates")
	}

	return updates, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRisk(sc rowScanner) (*Risk, error) {
	risk := &Risk{}
	err := sc.Scan(
		&risk.ID,
		&risk.OrgID,
		&risk.ProjectID,
		&risk.Category,
		&risk.Description,
		&risk.Severity,
		&risk.Acknowledged,
		&risk.AcknowledgedBy,
		&risk.AcknowledgedAt,
		&risk.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeNotFound, "risk not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan risk")
	}
	return risk, nil
}
