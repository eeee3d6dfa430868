package app

import "errors"

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrChapterNotFound    = errors.New("chapter not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrGenerationInFlight = errors.New("generation already in progress")
	ErrPlanExists         = errors.New("book plan already generated")
	ErrExportUnavailable  = errors.New("export storage not configured")
	ErrExportNotReady     = errors.New("book is not completed")
)

// QuotaError denies book creation with the tier-specific reason.
type QuotaError struct {
	Reason string
}

func (e *QuotaError) Error() string {
	return e.Reason
}
