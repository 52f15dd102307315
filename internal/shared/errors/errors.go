package errors

import "errors"

// Domain errors
var (
	// Scan errors
	ErrScanRunNotFound         = errors.New("scan run not found")
	ErrInvalidScanStatus       = errors.New("invalid scan status")
	ErrScanRunAlreadyStarted   = errors.New("scan run already started")
	ErrScanRunNotStarted       = errors.New("scan run not started")
	ErrScanRunAlreadyCompleted = errors.New("scan run already completed")
	ErrEmptyTarget             = errors.New("target cannot be empty")
	ErrInvalidTarget           = errors.New("target must be an absolute http(s) URL")
	ErrNoChecksSelected        = errors.New("no checks selected")

	// Audit errors
	ErrAuditTrailNotFound   = errors.New("audit trail not found")
	ErrAuditTrailSealed     = errors.New("audit trail is sealed")
	ErrInvalidHashAlgorithm = errors.New("invalid hash algorithm")

	// Repository errors
	ErrRepositoryOperation   = errors.New("repository operation failed")
	ErrInvalidData           = errors.New("invalid data")
	ErrSerializationFailed   = errors.New("serialization failed")
	ErrDeserializationFailed = errors.New("deserialization failed")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
