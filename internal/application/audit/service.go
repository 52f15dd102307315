// Package audit records the evidence trail of scan runs.
package audit

import (
	"context"
	"fmt"

	"github.com/khanhnv2901/seca-probe/internal/domain/audit"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// Service provides application-level audit operations
type Service struct {
	repo audit.Repository
}

// NewService creates a new audit service
func NewService(repo audit.Repository) *Service {
	return &Service{repo: repo}
}

// RecordRun writes one entry per result of run and seals the trail with
// algorithm. It returns the seal digest.
func (s *Service) RecordRun(ctx context.Context, run *scan.Run, algorithm string) (string, error) {
	if !audit.ValidAlgorithm(algorithm) {
		return "", fmt.Errorf("%w: %s", sharedErrors.ErrInvalidHashAlgorithm, algorithm)
	}
	trail, err := audit.NewAuditTrail(run.ID())
	if err != nil {
		return "", err
	}

	at := run.StartedAt()
	for _, res := range run.Results() {
		at = at.Add(res.Duration())
		entry := &audit.Entry{
			Timestamp:       at,
			RunID:           run.ID(),
			Operator:        run.Operator(),
			Check:           res.Check(),
			Target:          res.Target(),
			Category:        string(res.Category()),
			Outcome:         string(res.Outcome()),
			Issues:          len(res.Issues()),
			Error:           res.ErrorText(),
			DurationSeconds: res.Duration().Seconds(),
		}
		if err := trail.AppendEntry(entry); err != nil {
			return "", fmt.Errorf("failed to record audit entry: %w", err)
		}
	}

	if err := s.repo.Save(ctx, trail); err != nil {
		return "", fmt.Errorf("failed to save audit trail: %w", err)
	}
	hash, err := s.repo.ComputeHash(ctx, run.ID(), algorithm)
	if err != nil {
		return "", fmt.Errorf("failed to compute hash: %w", err)
	}
	if err := trail.Seal(hash, algorithm); err != nil {
		return "", fmt.Errorf("failed to seal audit trail: %w", err)
	}
	if err := s.repo.Save(ctx, trail); err != nil {
		return "", fmt.Errorf("failed to save audit trail: %w", err)
	}
	return hash, nil
}

// GetAuditTrail retrieves the audit trail of a run
func (s *Service) GetAuditTrail(ctx context.Context, runID string) (*audit.AuditTrail, error) {
	trail, err := s.repo.FindByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit trail: %w", err)
	}
	return trail, nil
}

// VerifyIntegrity verifies the integrity of an audit trail
func (s *Service) VerifyIntegrity(ctx context.Context, runID string) (bool, error) {
	valid, err := s.repo.VerifyIntegrity(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("failed to verify integrity: %w", err)
	}
	return valid, nil
}
