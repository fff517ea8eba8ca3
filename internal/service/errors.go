package service

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors below wrap one of these so callers can match
// either the precise condition or its kind with errors.Is.
var (
	// ErrNotFound covers both absent records and records owned by another tenant.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is matched by *QuotaExceededError.
	ErrQuotaExceeded = errors.New("plan limit reached")

	// ErrInvalidTransition indicates the entity is not in a state that allows the operation.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrForbidden indicates the caller lacks the role required for the action.
	ErrForbidden = errors.New("permission denied")

	// ErrUpstreamUnavailable marks failures of the billing or identity provider.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrStorageFailure wraps persistence errors, including failed activity writes.
	ErrStorageFailure = errors.New("storage failure")

	// ErrValidation marks malformed input that is not a validator.ValidationErrors.
	ErrValidation = errors.New("invalid input")
)

var (
	ErrAssetNotFound    = fmt.Errorf("asset %w", ErrNotFound)
	ErrIncidentNotFound = fmt.Errorf("incident %w", ErrNotFound)

	ErrAssetUnavailable      = fmt.Errorf("asset is not available for checkout: %w", ErrInvalidTransition)
	ErrNoActiveAssignment    = fmt.Errorf("no active assignment found for this asset: %w", ErrInvalidTransition)
	ErrStatusConflict        = fmt.Errorf("asset status changed concurrently: %w", ErrInvalidTransition)
	ErrAssetInUse            = fmt.Errorf("asset is referenced by assignments or incidents: %w", ErrInvalidTransition)
	ErrCheckoutOwned         = fmt.Errorf("checked out status is managed by checkout and checkin: %w", ErrInvalidTransition)
	ErrArchiveRequiresClosed = fmt.Errorf("only closed incidents can be archived: %w", ErrInvalidTransition)

	ErrAdminRequired      = fmt.Errorf("admin privileges required for this action: %w", ErrForbidden)
	ErrFeatureUnavailable = fmt.Errorf("feature not included in your plan: %w", ErrForbidden)

	ErrReasonRequired      = fmt.Errorf("a reason is required to change asset status: %w", ErrValidation)
	ErrInvalidStatus       = fmt.Errorf("unknown status: %w", ErrValidation)
	ErrInvalidSeverity     = fmt.Errorf("unknown severity: %w", ErrValidation)
	ErrEmptyNote           = fmt.Errorf("note text must not be empty: %w", ErrValidation)
	ErrMissingOrganization = fmt.Errorf("organization is required: %w", ErrValidation)
	ErrQRCodeTaken         = fmt.Errorf("qr code already assigned to another asset: %w", ErrValidation)
	ErrUnsupportedFileType = fmt.Errorf("only image uploads are allowed: %w", ErrValidation)
	ErrFileTooLarge        = fmt.Errorf("file exceeds the upload size limit: %w", ErrValidation)
)

// QuotaExceededError reports which plan limit blocked the operation.
type QuotaExceededError struct {
	Resource Resource
	Tier     PlanTier
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("limit reached for your %s plan (%d %s). Please upgrade to Pro for unlimited access", e.Tier, e.Limit, e.Resource)
}

// Is lets errors.Is(err, ErrQuotaExceeded) match.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
