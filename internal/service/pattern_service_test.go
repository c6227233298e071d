package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-commercial-intelligence/internal/client"
	"github.com/pesio-ai/be-commercial-intelligence/internal/errors"
	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

func TestThresholdRequired(t *testing.T) {
	tests := []struct {
		name  string
		th    threshold
		total int
		want  int
	}{
		{"floor dominates small tenants", weakMarginThreshold, 4, 2},
		{"fraction of ten", weakMarginThreshold, 10, 2},
		{"fraction rounds down", weakMarginThreshold, 14, 2},
		{"fraction dominates large tenants", weakMarginThreshold, 30, 6},
		{"risk floor", riskCategoryThreshold, 8, 3},
		{"risk fraction", riskCategoryThreshold, 20, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.th.required(tt.total))
		})
	}
}

func TestRunTenantWeakMarginExample(t *testing.T) {
	f := newFixture()
	for i := 0; i < 10; i++ {
		margin := 40.0
		if i < 3 {
			margin = 10
		}
		f.addCompleted(testOrg, fmt.Sprintf("p%d", i), ptr(margin))
	}

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, created, 1)

	p := created[0]
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []string{"p0", "p1", "p2"}, p.Examples)
	assert.Equal(t, repository.ConfidenceMedium, p.ConfidenceLevel)
	assert.Equal(t, repository.PatternStatusDraft, p.Status)
	assert.Equal(t, repository.SystemActor, p.CreatedBy)
	assert.Equal(t, fixedNow, p.CreatedAt)

	stored, err := f.store.Patterns().List(context.Background(), testOrg, nil)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	assert.Equal(t, []string{client.SubjectPatternsDetected}, f.events.subjects())
}

func TestRunTenantBelowThresholdEmitsNothing(t *testing.T) {
	f := newFixture()
	for i := 0; i < 10; i++ {
		margin := 40.0
		if i == 0 {
			margin = 5
		}
		f.addCompleted(testOrg, fmt.Sprintf("p%d", i), ptr(margin))
	}

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, f.events.subjects())
}

func TestRunTenantMissingFinancialCountsAsWeakMargin(t *testing.T) {
	f := newFixture()
	f.addCompleted(testOrg, "p1", nil)
	f.addCompleted(testOrg, "p2", nil)

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Indicators[0], "estimatedMarginPercent")
}

func TestRunTenantScopeCreep(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"p1", "p2"} {
		f.store.AddProject(repository.Project{ID: id, OrgID: testOrg, Status: repository.ProjectStatusCompleted})
		f.store.AddFinancial(repository.Financial{
			OrgID:                  testOrg,
			ProjectID:              id,
			EstimatedMarginPercent: ptr(35.0),
			AdditionalScopeValue:   ptr(500.0),
			QuotedValue:            ptr(1000.0),
		})
	}

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Indicators[0], "additionalScopeValue")
	assert.Equal(t, []string{"p1", "p2"}, created[0].Examples)
}

func TestRunTenantRiskCategories(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 4; i++ {
		f.addCompleted(testOrg, fmt.Sprintf("p%d", i), ptr(50.0))
	}
	budget := ptr("budget")
	f.store.AddRisk(repository.Risk{OrgID: testOrg, ProjectID: "p1", Category: budget})
	f.store.AddRisk(repository.Risk{OrgID: testOrg, ProjectID: "p1", Category: budget})
	f.store.AddRisk(repository.Risk{OrgID: testOrg, ProjectID: "p2", Category: budget})
	f.store.AddRisk(repository.Risk{OrgID: testOrg, ProjectID: "p3", Category: budget})
	f.store.AddRisk(repository.Risk{OrgID: testOrg, ProjectID: "p4"})

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, created, 1)

	p := created[0]
	assert.Equal(t, repository.ConfidenceLow, p.ConfidenceLevel)
	assert.Equal(t, []string{"risk category: budget"}, p.Indicators)
	assert.Equal(t, []string{"p1", "p2", "p3"}, p.Examples)
}

func TestRunTenantUncategorizedRisksBucketAsGeneral(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("p%d", i)
		f.addCompleted(testOrg, id, ptr(50.0))
		f.store.AddRisk(repository.Risk{OrgID: testOrg, ProjectID: id, Category: ptr("")})
	}

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, []string{"risk category: " + repository.DefaultRiskCategory}, created[0].Indicators)
}

func TestRunTenantCapsExamples(t *testing.T) {
	f := newFixture()
	for i := 0; i < 12; i++ {
		f.addCompleted(testOrg, fmt.Sprintf("p%02d", i), ptr(1.0))
	}

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Len(t, created[0].Examples, repository.MaxPatternExamples)
	assert.Equal(t, "p00", created[0].Examples[0])
}

func TestRunTenantEmissionIsMonotonic(t *testing.T) {
	f := newFixture()
	for i := 0; i < 8; i++ {
		f.addCompleted(testOrg, fmt.Sprintf("healthy%d", i), ptr(45.0))
	}
	f.addCompleted(testOrg, "weak0", ptr(5.0))
	f.addCompleted(testOrg, "weak1", ptr(5.0))

	svc := f.patternService()
	for i := 2; i < 12; i++ {
		created, err := svc.RunTenant(context.Background(), testOrg)
		require.NoError(t, err)
		require.Len(t, created, 1, "weak projects: %d", i)
		assert.Len(t, created[0].Examples, min(i, repository.MaxPatternExamples))

		f.addCompleted(testOrg, fmt.Sprintf("weak%d", i), ptr(5.0))
	}
}

func TestRunTenantReadFailureAborts(t *testing.T) {
	f := newFixture()
	f.addCompleted(testOrg, "p1", nil)
	f.addCompleted(testOrg, "p2", nil)
	boom := stderrors.New("store unavailable")
	f.store.InjectFault("LatestFinancial", testOrg, boom)

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, created)
}

func TestRunAllIsolatesTenantFailures(t *testing.T) {
	f := newFixture()
	for _, org := range []string{"org-b", "org-c"} {
		f.store.AddOrg(repository.Org{ID: org, Status: repository.OrgStatusActive})
	}
	f.store.AddOrg(repository.Org{ID: "org-d", Status: repository.OrgStatusInactive})

	for _, org := range []string{testOrg, "org-c", "org-d"} {
		f.addCompleted(org, org+"-p1", ptr(3.0))
		f.addCompleted(org, org+"-p2", ptr(3.0))
	}
	boom := stderrors.New("tenant b is broken")
	f.store.InjectFault("ListByStatus", "org-b", boom)

	summary, err := f.patternService().RunAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "tenant org-b")

	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Tenants)
	assert.Equal(t, 2, summary.Patterns)
	assert.Equal(t, []string{"org-b"}, summary.FailedTenants)

	for _, org := range []string{testOrg, "org-c"} {
		patterns, err := f.store.Patterns().List(context.Background(), org, nil)
		require.NoError(t, err)
		assert.Len(t, patterns, 1, org)
	}
	inactive, err := f.store.Patterns().List(context.Background(), "org-d", nil)
	require.NoError(t, err)
	assert.Empty(t, inactive)
}

// addWeakAndCreeping seeds a completed project that is both below the
// margin target and over the scope-creep ratio.
func (f *fixture) addWeakAndCreeping(orgID, id string) {
	f.store.AddProject(repository.Project{ID: id, OrgID: orgID, Name: id, Status: repository.ProjectStatusCompleted})
	f.store.AddFinancial(repository.Financial{
		OrgID:                  orgID,
		ProjectID:              id,
		EstimatedMarginPercent: ptr(5.0),
		AdditionalScopeValue:   ptr(5000.0),
		QuotedValue:            ptr(10000.0),
		CreatedAt:              fixedNow,
	})
}

func TestRunTenantKeepsPatternsWrittenBeforeFailure(t *testing.T) {
	f := newFixture()
	f.addWeakAndCreeping(testOrg, "p1")
	f.addWeakAndCreeping(testOrg, "p2")
	boom := stderrors.New("write failed")
	f.store.InjectFaultAfter("CreatePattern", testOrg, 1, boom)

	created, err := f.patternService().RunTenant(context.Background(), testOrg)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Indicators[0], "estimatedMarginPercent")

	stored, err := f.store.Patterns().List(context.Background(), testOrg, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, created[0].ID, stored[0].ID)
	assert.Empty(t, f.events.subjects())
}

func TestRunAllCountsPatternsWrittenBeforeFailure(t *testing.T) {
	f := newFixture()
	f.addWeakAndCreeping(testOrg, "p1")
	f.addWeakAndCreeping(testOrg, "p2")
	f.store.InjectFaultAfter("CreatePattern", testOrg, 1, stderrors.New("write failed"))

	summary, err := f.patternService().RunAll(context.Background())
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Patterns)
	assert.Equal(t, []string{testOrg}, summary.FailedTenants)
}

func TestRunAllListFailure(t *testing.T) {
	f := newFixture()
	f.store.InjectFault("ListActive", "", stderrors.New("down"))

	summary, err := f.patternService().RunAll(context.Background())
	assert.Error(t, err)
	assert.Nil(t, summary)
}

func TestManualRunRequiresAdmin(t *testing.T) {
	f := newFixture()
	f.addCompleted(testOrg, "p1", ptr(1.0))
	f.addCompleted(testOrg, "p2", ptr(1.0))
	svc := f.patternService()

	_, err := svc.Run(context.Background(), caller("staff"), testOrg)
	assert.True(t, errors.IsCode(err, errors.ErrCodePermissionDenied))

	_, err = svc.Run(context.Background(), nil, testOrg)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthenticated))

	created, err := svc.Run(context.Background(), caller("admin"), testOrg)
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestListPatterns(t *testing.T) {
	f := newFixture()
	f.store.AddPattern(repository.Pattern{ID: "d1", OrgID: testOrg, Status: repository.PatternStatusDraft})
	f.store.AddPattern(repository.Pattern{ID: "a1", OrgID: testOrg, Status: repository.PatternStatusApproved})
	svc := f.patternService()

	all, err := svc.List(context.Background(), caller("viewer"), testOrg, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	drafts, err := svc.List(context.Background(), caller("viewer"), testOrg, ptr(repository.PatternStatusDraft))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "d1", drafts[0].ID)

	_, err = svc.List(context.Background(), caller("viewer"), testOrg, ptr("archived"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = svc.List(context.Background(), caller("client"), testOrg, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodePermissionDenied))
}
