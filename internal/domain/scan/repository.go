package scan

import "context"

// Repository defines scan run persistence.
type Repository interface {
	// Save persists a run with all its results, replacing an earlier copy.
	Save(ctx context.Context, run *Run) error

	// FindByID retrieves a run. A missing run yields ErrScanRunNotFound.
	FindByID(ctx context.Context, id string) (*Run, error)

	// FindAll retrieves every stored run, newest first.
	FindAll(ctx context.Context) ([]*Run, error)

	// Delete removes a run.
	Delete(ctx context.Context, id string) error
}
