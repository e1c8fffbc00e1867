package models_test

import (
	"testing"

	"github.com/zawbuild/sitebooks_backend/models"
)

func TestEstimateStatusTransitions(t *testing.T) {
	cases := []struct {
		from    models.EstimateStatus
		to      models.EstimateStatus
		allowed bool
	}{
		{models.EstimateStatusDraft, models.EstimateStatusSubmitted, true},
		{models.EstimateStatusDraft, models.EstimateStatusArchived, true},
		{models.EstimateStatusDraft, models.EstimateStatusApproved, false},
		{models.EstimateStatusDraft, models.EstimateStatusRejected, false},
		{models.EstimateStatusSubmitted, models.EstimateStatusApproved, true},
		{models.EstimateStatusSubmitted, models.EstimateStatusRejected, true},
		{models.EstimateStatusSubmitted, models.EstimateStatusArchived, true},
		{models.EstimateStatusSubmitted, models.EstimateStatusDraft, false},
		{models.EstimateStatusApproved, models.EstimateStatusArchived, true},
		{models.EstimateStatusApproved, models.EstimateStatusRejected, false},
		{models.EstimateStatusRejected, models.EstimateStatusArchived, true},
		{models.EstimateStatusRejected, models.EstimateStatusApproved, false},
		// Archived is terminal.
		{models.EstimateStatusArchived, models.EstimateStatusDraft, false},
		{models.EstimateStatusArchived, models.EstimateStatusSubmitted, false},
		{models.EstimateStatusArchived, models.EstimateStatusApproved, false},
		{models.EstimateStatusArchived, models.EstimateStatusRejected, false},
		{models.EstimateStatusArchived, models.EstimateStatusArchived, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestEstimateStatusIsValid(t *testing.T) {
	for _, s := range []models.EstimateStatus{
		models.EstimateStatusDraft, models.EstimateStatusSubmitted,
		models.EstimateStatusApproved, models.EstimateStatusRejected,
		models.EstimateStatusArchived,
	} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if models.EstimateStatus("Cancelled").IsValid() {
		t.Error("Cancelled should not be a valid status")
	}
}
