package models

import "errors"

// Domain errors returned by ledger operations. All are recoverable by
// the caller; none leaves partially committed state behind.
var (
	ErrSiteNotFound     = errors.New("site not found")
	ErrEstimateNotFound = errors.New("estimate not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrItemNotFound     = errors.New("line item not found")
	ErrActualNotFound   = errors.New("actual entry not found")

	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidPrice    = errors.New("unit price must be greater than zero")

	// ErrHasDependentActuals is advisory: re-invoke DeleteLineItem with
	// cascade=true to remove the item together with its entries.
	ErrHasDependentActuals = errors.New("line item has recorded actual entries")

	ErrInvalidStatusChange = errors.New("invalid estimate status transition")

	// ErrConcurrentModification means the write lost its lock after the
	// retry budget was spent.
	ErrConcurrentModification = errors.New("concurrent modification, retry the operation")

	// ErrUnavailable wraps non-domain store failures after retries.
	ErrUnavailable = errors.New("ledger store unavailable")
)
