package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/checker"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/khanhnv2901/seca-probe/internal/shared/security"
)

// scanRunDTO is the on-disk form of a scan run.
type scanRunDTO struct {
	ID          string      `json:"id"`
	Target      string      `json:"target"`
	Operator    string      `json:"operator"`
	Checks      []string    `json:"checks"`
	Pages       []string    `json:"pages,omitempty"`
	StartedAt   string      `json:"started_at"`
	CompletedAt string      `json:"completed_at,omitempty"`
	Status      string      `json:"status"`
	Results     []resultDTO `json:"results"`
}

type resultDTO struct {
	Target     string     `json:"target"`
	Category   string     `json:"category"`
	Check      string     `json:"check"`
	Family     string     `json:"family"`
	Outcome    string     `json:"outcome"`
	Issues     []issueDTO `json:"issues,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

type issueDTO struct {
	Ref                string `json:"ref"`
	Position           string `json:"position,omitempty"`
	Content            string `json:"content"`
	MaybeFalsePositive bool   `json:"maybe_false_positive"`
}

// ScanRunRepository implements scan.Repository with one JSON document per
// run at <resultsDir>/<run-id>/scan.json.
type ScanRunRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewScanRunRepository creates the repository and its results directory.
func NewScanRunRepository(resultsDir string) (*ScanRunRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("%w: results directory", sharedErrors.ErrMissingRequired)
	}
	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &ScanRunRepository{resultsDir: resultsDir}, nil
}

// Save persists a run with all its results.
func (r *ScanRunRepository) Save(ctx context.Context, run *scan.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := security.ResolveRunFile(r.resultsDir, run.ID(), consts.ScanFileName)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	runDir, err := security.ResolveWithin(r.resultsDir, run.ID())
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := os.MkdirAll(runDir, consts.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(toDTO(run), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	// Write then rename so a reader never sees a half-written document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to save scan run: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save scan run: %w", err)
	}
	return nil
}

// FindByID retrieves a run by its ID.
func (r *ScanRunRepository) FindByID(ctx context.Context, id string) (*scan.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, err := security.ResolveRunFile(r.resultsDir, id, consts.ScanFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrScanRunNotFound, err)
	}
	run, err := loadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrScanRunNotFound, id)
	}
	return run, err
}

// FindAll retrieves every readable run, newest first. Directories without a
// valid scan document are skipped.
func (r *ScanRunRepository) FindAll(ctx context.Context) ([]*scan.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var runs []*scan.Run
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		path, err := security.ResolveRunFile(r.resultsDir, entry.Name(), consts.ScanFileName)
		if err != nil {
			continue
		}
		run, err := loadFromFile(path)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt().After(runs[j].StartedAt())
	})
	return runs, nil
}

// Delete removes a run and its directory.
func (r *ScanRunRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := security.ResolveRunFile(r.resultsDir, id, consts.ScanFileName)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrScanRunNotFound, err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", sharedErrors.ErrScanRunNotFound, id)
	}
	runDir, err := security.ResolveWithin(r.resultsDir, id)
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrRepositoryOperation, err)
	}
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to delete scan run: %w", err)
	}
	return nil
}

func loadFromFile(path string) (*scan.Run, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path built by ResolveRunFile
	if err != nil {
		return nil, err
	}
	var dto scanRunDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sharedErrors.ErrDeserializationFailed, path, err)
	}
	return fromDTO(dto)
}

func toDTO(run *scan.Run) scanRunDTO {
	dto := scanRunDTO{
		ID:        run.ID(),
		Target:    run.Target(),
		Operator:  run.Operator(),
		Checks:    run.Checks(),
		Pages:     run.Pages(),
		StartedAt: run.StartedAt().Format(time.RFC3339Nano),
		Status:    string(run.Status()),
		Results:   make([]resultDTO, 0, len(run.Results())),
	}
	if !run.CompletedAt().IsZero() {
		dto.CompletedAt = run.CompletedAt().Format(time.RFC3339Nano)
	}
	for _, res := range run.Results() {
		rd := resultDTO{
			Target:     res.Target(),
			Category:   string(res.Category()),
			Check:      res.Check(),
			Family:     string(res.Family()),
			Outcome:    string(res.Outcome()),
			Error:      res.ErrorText(),
			DurationMS: res.Duration().Milliseconds(),
		}
		for _, issue := range res.Issues() {
			rd.Issues = append(rd.Issues, issueDTO(issue))
		}
		dto.Results = append(dto.Results, rd)
	}
	return dto
}

func fromDTO(dto scanRunDTO) (*scan.Run, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, dto.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: started_at: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	var completedAt time.Time
	if dto.CompletedAt != "" {
		completedAt, err = time.Parse(time.RFC3339Nano, dto.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: completed_at: %v", sharedErrors.ErrDeserializationFailed, err)
		}
	}

	results := make([]*scan.Result, 0, len(dto.Results))
	for _, rd := range dto.Results {
		category := checker.TargetType(rd.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("%w: category %q", sharedErrors.ErrInvalidData, rd.Category)
		}
		issues := make([]checker.Issue, 0, len(rd.Issues))
		for _, id := range rd.Issues {
			issues = append(issues, checker.Issue(id))
		}
		results = append(results, scan.ReconstructResult(
			rd.Target,
			category,
			rd.Check,
			checker.Family(rd.Family),
			checker.OutcomeKind(rd.Outcome),
			issues,
			rd.Error,
			time.Duration(rd.DurationMS)*time.Millisecond,
		))
	}

	return scan.Reconstruct(
		dto.ID,
		dto.Target,
		dto.Operator,
		dto.Checks,
		dto.Pages,
		startedAt,
		completedAt,
		scan.RunStatus(dto.Status),
		results,
	)
}
