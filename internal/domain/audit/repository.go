package audit

import "context"

// Repository defines the interface for audit trail persistence
type Repository interface {
	// Save writes the whole trail, and its seal when sealed
	Save(ctx context.Context, auditTrail *AuditTrail) error

	// FindByRunID retrieves the audit trail of a run
	FindByRunID(ctx context.Context, runID string) (*AuditTrail, error)

	// ComputeHash calculates the digest of the stored trail
	ComputeHash(ctx context.Context, runID, algorithm string) (string, error)

	// VerifyIntegrity compares the stored trail against its seal
	VerifyIntegrity(ctx context.Context, runID string) (bool, error)
}
