package models

type EstimateStatus string

const (
	EstimateStatusDraft     EstimateStatus = "Draft"
	EstimateStatusSubmitted EstimateStatus = "Submitted"
	EstimateStatusApproved  EstimateStatus = "Approved"
	EstimateStatusRejected  EstimateStatus = "Rejected"
	EstimateStatusArchived  EstimateStatus = "Archived"
)

// estimateStatusTransitions lists the allowed outgoing transitions per
// status. Archived is terminal.
var estimateStatusTransitions = map[EstimateStatus][]EstimateStatus{
	EstimateStatusDraft:     {EstimateStatusSubmitted, EstimateStatusArchived},
	EstimateStatusSubmitted: {EstimateStatusApproved, EstimateStatusRejected, EstimateStatusArchived},
	EstimateStatusApproved:  {EstimateStatusArchived},
	EstimateStatusRejected:  {EstimateStatusArchived},
	EstimateStatusArchived:  {},
}

func (s EstimateStatus) IsValid() bool {
	_, ok := estimateStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal transition from s.
// Status transitions are validated independently of variance logic and
// never affect the ledger's numeric invariants.
func (s EstimateStatus) CanTransitionTo(next EstimateStatus) bool {
	for _, allowed := range estimateStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type LedgerEventAction string

const (
	LedgerEventActionCreate LedgerEventAction = "Create"
	LedgerEventActionUpdate LedgerEventAction = "Update"
	LedgerEventActionDelete LedgerEventAction = "Delete"
)

type LedgerEntityType string

const (
	LedgerEntityLineItem    LedgerEntityType = "LineItem"
	LedgerEntityActualEntry LedgerEntityType = "ActualEntry"
	LedgerEntityEstimate    LedgerEntityType = "Estimate"
)
