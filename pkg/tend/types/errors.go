package types

import "errors"

// Error kinds returned across the pipeline. Callers branch on them with
// errors.Is and decide whether to warn-and-continue or abort.
var (
	// ErrUnavailable indicates the tool backing a source is not installed.
	ErrUnavailable = errors.New("source unavailable")

	// ErrScanFailed indicates the inventory scan for a source failed.
	ErrScanFailed = errors.New("scan failed")

	// ErrExecutionFailed indicates an external command failed for an item.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrSourceMismatch indicates an action was routed to the wrong backend.
	ErrSourceMismatch = errors.New("source mismatch")

	// ErrUnknownSource indicates an unrecognized source name.
	ErrUnknownSource = errors.New("unknown source")

	// ErrInvalidAction indicates an action failed validation.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidConfidence indicates a confidence outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be within [0, 1]")

	// ErrDuplicateEntry indicates an identity present in both keep and remove.
	ErrDuplicateEntry = errors.New("identity listed in both keep and remove")
)
