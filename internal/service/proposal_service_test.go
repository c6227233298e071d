package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
	"github.com/pesio-ai/be-commercial-intelligence/internal/snapshot"
)

func seedProposal(f *fixture) {
	f.store.AddProposal(repository.Proposal{
		ID:     "prop-1",
		OrgID:  testOrg,
		Title:  "Website rebuild",
		Status: repository.ProposalStatusDraft,
		Document: map[string]any{
			"title":        "X",
			"terms":        "Net 30",
			"pricing":      map[string]any{"total": 12000},
			"internalNote": "margin is thin",
		},
	})
}

func TestCreateSnapshot(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	ctx := context.Background()
	branding := map[string]any{"primaryColor": "#0b5fff"}

	snap, err := f.proposalService().CreateSnapshot(ctx, caller("staff"), &CreateSnapshotRequest{
		OrgID: testOrg, ProposalID: "prop-1", Branding: branding,
	})
	require.NoError(t, err)

	assert.Equal(t, "X", snap.Content["title"])
	assert.NotContains(t, snap.Content, "internalNote")
	assert.Equal(t, []any{}, snap.Content["deliverables"])
	assert.Equal(t, "Net 30", snap.Terms)
	assert.Equal(t, "staff", snap.CreatedBy)
	assert.Equal(t, fixedNow, snap.CreatedAt)
	assert.True(t, strings.HasPrefix(snap.Version, "2026-10-16T12:00:00.000Z-"), snap.Version)

	want, err := snapshot.Checksum(snap.Content, branding, "Net 30")
	require.NoError(t, err)
	assert.Equal(t, want, snap.Checksum)

	proposal, err := f.store.Proposals().Get(ctx, testOrg, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, repository.ProposalStatusSent, proposal.Status)
	assert.True(t, proposal.Locked)
	require.NotNil(t, proposal.CurrentSnapshotVersion)
	assert.Equal(t, snap.Version, *proposal.CurrentSnapshotVersion)

	assert.Equal(t, []string{client.SubjectSnapshotCreated}, f.events.subjects())
}

func TestCreateSnapshotTwiceYieldsDistinctVersions(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	svc := f.proposalService()
	req := &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"}

	first, err := svc.CreateSnapshot(context.Background(), caller("staff"), req)
	require.NoError(t, err)
	second, err := svc.CreateSnapshot(context.Background(), caller("staff"), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.Version, second.Version)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.Equal(t, 2, f.store.SnapshotCount())
}

func TestLatestSnapshotFollowsCreationOrderWithinOneMillisecond(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture()
		seedProposal(f)
		svc := f.proposalService()
		ctx := context.Background()
		req := &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"}

		_, err := svc.CreateSnapshot(ctx, caller("staff"), req)
		require.NoError(t, err)
		second, err := svc.CreateSnapshot(ctx, caller("staff"), req)
		require.NoError(t, err)

		latest, err := svc.LatestSnapshot(ctx, caller("client"), testOrg, "prop-1")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, second.Version, latest.Version)

		proposal, err := f.store.Proposals().Get(ctx, testOrg, "prop-1")
		require.NoError(t, err)
		require.NotNil(t, proposal.CurrentSnapshotVersion)
		assert.Equal(t, latest.Version, *proposal.CurrentSnapshotVersion)
	}
}

func TestCreateSnapshotEmptyBrandingMatchesOmitted(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	svc := f.proposalService()
	ctx := context.Background()

	omitted, err := svc.CreateSnapshot(ctx, caller("staff"), &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"})
	require.NoError(t, err)
	empty, err := svc.CreateSnapshot(ctx, caller("staff"), &CreateSnapshotRequest{
		OrgID: testOrg, ProposalID: "prop-1", Branding: map[string]any{},
	})
	require.NoError(t, err)

	assert.Equal(t, omitted.Checksum, empty.Checksum)
	assert.Nil(t, empty.Branding)
}

func TestCreateSnapshotMissingProposal(t *testing.T) {
	f := newFixture()

	_, err := f.proposalService().CreateSnapshot(context.Background(), caller("staff"), &CreateSnapshotRequest{
		OrgID: testOrg, ProposalID: "missing",
	})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	assert.Zero(t, f.store.SnapshotCount())
	assert.Empty(t, f.events.subjects())
}

func TestCreateSnapshotAccess(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		req    *CreateSnapshotRequest
		code   errors.ErrorCode
	}{
		{"unauthenticated", "", &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"}, errors.ErrCodeUnauthenticated},
		{"missing proposal id", "staff", &CreateSnapshotRequest{OrgID: testOrg}, errors.ErrCodeInvalidInput},
		{"missing tenant id", "staff", &CreateSnapshotRequest{ProposalID: "prop-1"}, errors.ErrCodeInvalidInput},
		{"viewer", "viewer", &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"}, errors.ErrCodePermissionDenied},
		{"outsider", "stranger", &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"}, errors.ErrCodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			seedProposal(f)

			var uc = caller(tt.caller)
			if tt.caller == "" {
				uc = nil
			}
			_, err := f.proposalService().CreateSnapshot(context.Background(), uc, tt.req)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
			assert.Zero(t, f.store.SnapshotCount())
		})
	}
}

func TestLatestSnapshot(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	svc := f.proposalService()
	ctx := context.Background()

	latest, err := svc.LatestSnapshot(ctx, caller("client"), testOrg, "prop-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	req := &CreateSnapshotRequest{OrgID: testOrg, ProposalID: "prop-1"}
	_, err = svc.CreateSnapshot(ctx, caller("staff"), req)
	require.NoError(t, err)

	svc.now = func() time.Time { return fixedNow.Add(time.Minute) }
	second, err := svc.CreateSnapshot(ctx, caller("admin"), req)
	require.NoError(t, err)

	latest, err = svc.LatestSnapshot(ctx, caller("client"), testOrg, "prop-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.Version, latest.Version)
	assert.Equal(t, "admin", latest.CreatedBy)
}

func TestVerifySnapshot(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	svc := f.proposalService()
	ctx := context.Background()

	snap, err := svc.CreateSnapshot(ctx, caller("staff"), &CreateSnapshotRequest{
		OrgID: testOrg, ProposalID: "prop-1", Branding: map[string]any{"logo": "https://cdn.example.com/acme.svg"},
	})
	require.NoError(t, err)

	result, err := svc.VerifySnapshot(ctx, caller("viewer"), testOrg, "prop-1", snap.Version)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, snap.Checksum, result.Actual)

	latest, err := svc.VerifySnapshot(ctx, caller("viewer"), testOrg, "prop-1", "")
	require.NoError(t, err)
	assert.Equal(t, snap.Version, latest.Version)
	assert.True(t, latest.Valid)
}

func TestVerifySnapshotDetectsTampering(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	ctx := context.Background()

	require.NoError(t, f.store.Proposals().CreateSnapshot(ctx, &repository.Snapshot{
		OrgID:      testOrg,
		ProposalID: "prop-1",
		Version:    "forged",
		Content:    map[string]any{"title": "X"},
		Checksum:   strings.Repeat("0", 64),
		CreatedAt:  fixedNow,
	}))

	result, err := f.proposalService().VerifySnapshot(ctx, caller("viewer"), testOrg, "prop-1", "forged")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEqual(t, result.Expected, result.Actual)
}

func TestVerifySnapshotNotFound(t *testing.T) {
	f := newFixture()
	seedProposal(f)
	svc := f.proposalService()

	_, err := svc.VerifySnapshot(context.Background(), caller("viewer"), testOrg, "prop-1", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	_, err = svc.VerifySnapshot(context.Background(), caller("viewer"), testOrg, "prop-1", "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}
