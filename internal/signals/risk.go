package signals

import (
	"time"

	"github.com/pesio-ai/be-commercial-intelligence/internal/repository"
)

// UpdateLagWindow is how old the latest published update may be.
const UpdateLagWindow = 7 * 24 * time.Hour

// RiskSignals are the boolean delivery-risk indicators of a project.
type RiskSignals struct {
	MilestoneOverdue bool `json:"milestoneOverdue"`
	DeliverableStuck bool `json:"deliverableStuck"`
	UpdateLag        bool `json:"updateLag"`
}

// EvaluateRiskSignals computes the indicators at now; a zero now means the
// current time. updates must already be ordered most recent first: the
// first published entry is taken as the latest.
func EvaluateRiskSignals(
	milestones []*repository.Milestone,
	deliverables []*repository.Deliverable,
	updates []*repository.ProjectUpdate,
	now time.Time,
) RiskSignals {
	if now.IsZero() {
		now = time.Now()
	}

	var out RiskSignals

	for _, m := range milestones {
		if m.DueDate != nil && m.Status != repository.MilestoneStatusComplete && m.DueDate.Before(now) {
			out.MilestoneOverdue = true
			break
		}
	}

	for _, d := range deliverables {
		if d.Status == repository.DeliverableStatusChangesRequested {
			out.DeliverableStuck = true
			break
		}
	}

	out.UpdateLag = true
	for _, u := range updates {
		if u.Status != repository.UpdateStatusPublished {
			continue
		}
		out.UpdateLag = now.Sub(u.PeriodEnd) > UpdateLagWindow
		break
	}

	return out
}
