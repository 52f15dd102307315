package json

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/csv"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/audit"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
	"github.com/khanhnv2901/seca-probe/internal/shared/security"
)

var auditHeader = []string{
	"timestamp",
	"run_id",
	"operator",
	"check",
	"target",
	"category",
	"outcome",
	"issues",
	"error",
	"duration_seconds",
}

// AuditRepository stores audit trails as <results>/<run-id>/audit.csv with
// the seal in a sibling audit.csv.<algorithm> file.
type AuditRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewAuditRepository creates a CSV-based audit repository.
func NewAuditRepository(resultsDir string) (*AuditRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("%w: results directory", sharedErrors.ErrMissingRequired)
	}
	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &AuditRepository{resultsDir: resultsDir}, nil
}

// Save rewrites the trail and, when sealed, its hash file.
func (r *AuditRepository) Save(ctx context.Context, trail *audit.AuditTrail) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filePath, err := r.auditPath(trail.RunID())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), consts.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(auditHeader); err != nil {
		return fmt.Errorf("%w: header: %v", sharedErrors.ErrSerializationFailed, err)
	}
	for _, entry := range trail.Entries() {
		if err := writer.Write(entryRecord(entry)); err != nil {
			return fmt.Errorf("%w: entry: %v", sharedErrors.ErrSerializationFailed, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to replace audit file: %w", err)
	}

	if trail.IsSealed() {
		hashContent := fmt.Sprintf("%s  %s\n", trail.Hash(), filepath.Base(filePath))
		if err := os.WriteFile(filePath+"."+trail.HashAlgorithm(), []byte(hashContent), consts.DefaultFilePerm); err != nil {
			return fmt.Errorf("failed to write hash file: %w", err)
		}
	}
	return nil
}

// FindByRunID loads the trail of a run.
func (r *AuditRepository) FindByRunID(ctx context.Context, runID string) (*audit.AuditTrail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.existingAuditPath(runID)
	if err != nil {
		return nil, err
	}
	return loadAuditTrail(filePath, runID)
}

// ComputeHash calculates the digest of the stored audit file.
func (r *AuditRepository) ComputeHash(ctx context.Context, runID, algorithm string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.existingAuditPath(runID)
	if err != nil {
		return "", err
	}
	return hashFile(filePath, algorithm)
}

// VerifyIntegrity recomputes the digest and compares it with the seal.
func (r *AuditRepository) VerifyIntegrity(ctx context.Context, runID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.existingAuditPath(runID)
	if err != nil {
		return false, err
	}
	expected, algorithm, err := readSeal(filePath)
	if err != nil {
		return false, err
	}
	if algorithm == "" {
		return false, fmt.Errorf("%w: no seal for run %s", sharedErrors.ErrAuditTrailNotFound, runID)
	}
	actual, err := hashFile(filePath, algorithm)
	if err != nil {
		return false, err
	}
	return expected == actual, nil
}

func (r *AuditRepository) auditPath(runID string) (string, error) {
	path, err := security.ResolveRunFile(r.resultsDir, runID, consts.AuditFileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrAuditTrailNotFound, err)
	}
	return path, nil
}

func (r *AuditRepository) existingAuditPath(runID string) (string, error) {
	path, err := r.auditPath(runID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", sharedErrors.ErrAuditTrailNotFound
	}
	return path, nil
}

func entryRecord(entry *audit.Entry) []string {
	return []string{
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.RunID,
		entry.Operator,
		entry.Check,
		entry.Target,
		entry.Category,
		entry.Outcome,
		strconv.Itoa(entry.Issues),
		entry.Error,
		strconv.FormatFloat(entry.DurationSeconds, 'f', 3, 64),
	}
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case audit.HashSHA256:
		return sha256.New(), nil
	case audit.HashSHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %s", sharedErrors.ErrInvalidHashAlgorithm, algorithm)
}

func hashFile(filePath, algorithm string) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}
	file, err := os.Open(filePath) // #nosec G304 -- resolved within the results directory.
	if err != nil {
		return "", fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to compute hash: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// readSeal returns the recorded digest and its algorithm, or empty strings
// when the trail was never sealed.
func readSeal(filePath string) (string, string, error) {
	for _, algorithm := range []string{audit.HashSHA256, audit.HashSHA512} {
		content, err := os.ReadFile(filePath + "." + algorithm) // #nosec G304 -- sibling of a resolved audit file.
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to read hash file: %w", err)
		}
		fields := strings.Fields(string(content))
		if len(fields) == 0 {
			return "", "", fmt.Errorf("%w: empty hash file", sharedErrors.ErrDeserializationFailed)
		}
		return fields[0], algorithm, nil
	}
	return "", "", nil
}

func loadAuditTrail(filePath, runID string) (*audit.AuditTrail, error) {
	file, err := os.Open(filePath) // #nosec G304 -- resolved within the results directory.
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(auditHeader)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("%w: header: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	entries := make([]*audit.Entry, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
		}
		timestamp, err := time.Parse(time.RFC3339Nano, record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: timestamp: %v", sharedErrors.ErrDeserializationFailed, err)
		}
		issues, _ := strconv.Atoi(record[7])
		duration, _ := strconv.ParseFloat(record[9], 64)

		entries = append(entries, &audit.Entry{
			Timestamp:       timestamp,
			RunID:           record[1],
			Operator:        record[2],
			Check:           record[3],
			Target:          record[4],
			Category:        record[5],
			Outcome:         record[6],
			Issues:          issues,
			Error:           record[8],
			DurationSeconds: duration,
		})
	}

	hash, algorithm, err := readSeal(filePath)
	if err != nil {
		return nil, err
	}
	createdAt := time.Now()
	if len(entries) > 0 {
		createdAt = entries[0].Timestamp
	}
	return audit.Reconstruct(runID, entries, hash, algorithm, createdAt), nil
}
