package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation rules.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup for an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected because of concurrent state.
	ErrConflict = errors.New("conflict")

	// ErrDuplicateInvoice marks an attempt to create a second non-cancelled
	// invoice for the same recipient and billing period.
	ErrDuplicateInvoice = errors.New("duplicate invoice for recipient and period")

	// ErrRecipientResolution marks a failure to resolve the recipient set for
	// a batch run. Unlike per-recipient errors it is fatal to the whole batch.
	ErrRecipientResolution = errors.New("recipient resolution failed")
)
