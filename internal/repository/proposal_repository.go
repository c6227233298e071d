package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pesio-ai/be-commercial-intelligence/internal/database"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
)

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// ProposalRepository handles proposals and their append-only snapshots.
type ProposalRepository struct {
	db *database.DB
}

// NewProposalRepository creates a new ProposalRepository.
func NewProposalRepository(db *database.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Get retrieves a proposal by ID.
func (r *ProposalRepository) Get(ctx context.Context, orgID, id string) (*Proposal, error) {
	p := &Proposal{}
	var document []byte

	query := `
		SELECT id, org_id, title, status, locked, current_snapshot_version,
		       document, updated_by, created_at, updated_at
		FROM proposals
		WHERE id = $1 AND org_id = $2
	`

	err := r.db.QueryRow(ctx, query, id, orgID).Scan(
		&p.ID,
		&p.OrgID,
		&p.Title,
		&p.Status,
		&p.Locked,
		&p.CurrentSnapshotVersion,
		&document,
		&p.UpdatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("proposal", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get proposal")
	}

	if len(document) > 0 {
		if err := json.Unmarshal(document, &p.Document); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal proposal document")
		}
	}

	return p, nil
}

// CreateSnapshot inserts the snapshot and locks the proposal in one
// transaction, so a snapshot never exists without its back-reference.
func (r *ProposalRepository) CreateSnapshot(ctx context.Context, snap *Snapshot) error {
	content, err := json.Marshal(snap.Content)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal snapshot content")
	}
	branding, err := marshalNullable(snap.Branding)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal snapshot branding")
	}
	terms, err := marshalNullable(snap.Terms)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal snapshot terms")
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO proposal_snapshots
			    (org_id, proposal_id, version, content, branding, terms,
			     checksum, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING seq
		`
		if err := tx.QueryRow(ctx, insert,
			snap.OrgID,
			snap.ProposalID,
			snap.Version,
			content,
			branding,
			terms,
			snap.Checksum,
			snap.CreatedBy,
			snap.CreatedAt,
		).Scan(&snap.Seq); err != nil {
			var pgErr *pgconn.PgError
			if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return errors.New(errors.ErrCodeConflict, "snapshot version already exists: "+snap.Version)
			}
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create snapshot")
		}

		update := `
			UPDATE proposals
			SET status = $3, locked = true, current_snapshot_version = $4,
			    updated_by = $5, updated_at = $6
			WHERE id = $1 AND org_id = $2
		`
		tag, err := tx.Exec(ctx, update,
			snap.ProposalID,
			snap.OrgID,
			ProposalStatusSent,
			snap.Version,
			snap.CreatedBy,
			snap.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock proposal")
		}
		if tag.RowsAffected() == 0 {
			return errors.NotFound("proposal", snap.ProposalID)
		}
		return nil
	})
}

const snapshotColumns = `
	org_id, proposal_id, version, content, branding, terms,
	checksum, created_by, created_at, seq
`

// LatestSnapshot returns the most recently inserted snapshot, or nil.
func (r *ProposalRepository) LatestSnapshot(ctx context.Context, orgID, proposalID string) (*Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM proposal_snapshots
		WHERE org_id = $1 AND proposal_id = $2
		ORDER BY seq DESC
		LIMIT 1
	`

	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, orgID, proposalID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get latest snapshot")
	}
	return snap, nil
}

// GetSnapshot retrieves one snapshot by version.
func (r *ProposalRepository) GetSnapshot(ctx context.Context, orgID, proposalID, version string) (*Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM proposal_snapshots
		WHERE org_id = $1 AND proposal_id = $2 AND version = $3
	`

	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, orgID, proposalID, version))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("snapshot", version)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get snapshot")
	}
	return snap, nil
}

func scanSnapshot(sc rowScanner) (*Snapshot, error) {
	snap := &Snapshot{}
	var content, branding, terms []byte

	err := sc.Scan(
		&snap.OrgID,
		&snap.ProposalID,
		&snap.Version,
		&content,
		&branding,
		&terms,
		&snap.Checksum,
		&snap.CreatedBy,
		&snap.CreatedAt,
		&snap.Seq,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(content, &snap.Content); err != nil {
		return nil, err
	}
	if len(branding) > 0 {
		if err := json.Unmarshal(branding, &snap.Branding); err != nil {
			return nil, err
		}
	}
	if len(terms) > 0 {
		if err := json.Unmarshal(terms, &snap.Terms); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
