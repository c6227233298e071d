// Package signals evaluates project health heuristics over plain documents.
// Nothing here performs I/O.
package signals

import "github.com/pesio-ai/be-commercial-intelligence/internal/repository"

const (
	// WeakMarginPercent is the margin below which a project is flagged.
	WeakMarginPercent = 20.0
	// ScopeCreepRatio is the share of the quoted value that additional
	// scope may reach before a project is flagged.
	ScopeCreepRatio = 0.3
)

// FinancialFlags are the derived flags of one financial record.
type FinancialFlags struct {
	WeakMargin bool `json:"weakMargin"`
	ScopeCreep bool `json:"scopeCreep"`
}

// EvaluateFinancials applies the margin and scope-creep rules. A nil record
// is evaluated with every field at its declared default, so an absent
// margin counts as weak. Without a quote, any additional scope is creep.
func EvaluateFinancials(f *repository.Financial) FinancialFlags {
	return FinancialFlags{
		WeakMargin: f.MarginPercent() < WeakMarginPercent,
		ScopeCreep: scopeCreep(f),
	}
}

func scopeCreep(f *repository.Financial) bool {
	scope := f.ScopeValue()
	if !f.HasQuote() {
		return scope > 0
	}
	return scope > ScopeCreepRatio*f.Quote()
}
