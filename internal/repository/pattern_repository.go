package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-commercial-intelligence/internal/database"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

// PatternRepository persists commercial patterns.
type PatternRepository struct {
	db *database.DB
}

// NewPatternRepository creates a new PatternRepository.
func NewPatternRepository(db *database.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// Create inserts a pattern, generating its ID when empty.
func (r *PatternRepository) Create(ctx context.Context, p *Pattern) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Indicators == nil {
		p.Indicators = []string{}
	}
	if p.Examples == nil {
		p.Examples = []string{}
	}

	query := `
		INSERT INTO commercial_patterns
		    (id, org_id, description, indicators, examples,
		     confidence_level, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.OrgID,
		p.Description,
		p.Indicators,
		p.Examples,
		p.ConfidenceLevel,
		p.Status,
		p.CreatedBy,
		p.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create pattern")
	}
	return nil
}

const patternColumns = `
	id, org_id, description, indicators, examples, confidence_level,
	status, created_by, created_at, reviewed_by, reviewed_at
`

// Get retrieves a pattern by ID.
func (r *PatternRepository) Get(ctx context.Context, orgID, id string) (*Pattern, error) {
	query := `SELECT ` + patternColumns + `
		FROM commercial_patterns
		WHERE id = $1 AND org_id = $2
	`

	p, err := scanPattern(r.db.QueryRow(ctx, query, id, orgID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("pattern", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get pattern")
	}
	return p, nil
}

// List returns the patterns of an org, newest first, optionally filtered by status.
func (r *PatternRepository) List(ctx context.Context, orgID string, status *string) ([]*Pattern, error) {
	query := `SELECT ` + patternColumns + `
		FROM commercial_patterns
		WHERE org_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Query(ctx, query, orgID, status)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list patterns")
	}
	defer rows.Close()

	patterns := make([]*Pattern, 0)
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan pattern")
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate patterns")
	}

	return patterns, nil
}

// UpdateStatus records a review decision.
func (r *PatternRepository) UpdateStatus(ctx context.Context, orgID, id, status, actorID string, at time.Time) error {
	query := `
		UPDATE commercial_patterns
		SET status = $3, reviewed_by = $4, reviewed_at = $5
		WHERE id = $1 AND org_id = $2
	`

	tag, err := r.db.Exec(ctx, query, id, orgID, status, actorID, at)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update pattern status")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("pattern", id)
	}
	return nil
}

func scanPattern(sc rowScanner) (*Pattern, error) {
	p := &Pattern{}
	err := sc.Scan(
		&p.ID,
		&p.OrgID,
		&p.Description,
		&p.Indicators,
		&p.Examples,
		&p.ConfidenceLevel,
		&p.Status,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.ReviewedBy,
		&p.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
