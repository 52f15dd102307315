package audit

import (
	"fmt"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-probe/internal/shared/errors"
)

// Supported seal algorithms.
const (
	HashSHA256 = "sha256"
	HashSHA512 = "sha512"
)

// AuditTrail is the evidence log of one scan run: one entry per settled
// check. Once sealed, no more entries can be added.
type AuditTrail struct {
	runID         string
	entries       []*Entry
	hash          string
	hashAlgorithm string
	createdAt     time.Time
	sealed        bool
}

// Entry records one check outcome.
type Entry struct {
	Timestamp       time.Time
	RunID           string
	Operator        string
	Check           string
	Target          string
	Category        string
	Outcome         string
	Issues          int
	Error           string
	DurationSeconds float64
}

// NewAuditTrail creates an empty trail for a run.
func NewAuditTrail(runID string) (*AuditTrail, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id", sharedErrors.ErrMissingRequired)
	}
	return &AuditTrail{
		runID:     runID,
		entries:   make([]*Entry, 0),
		createdAt: time.Now(),
	}, nil
}

// Reconstruct creates an audit trail from persisted data.
func Reconstruct(runID string, entries []*Entry, hash, hashAlgorithm string, createdAt time.Time) *AuditTrail {
	return &AuditTrail{
		runID:         runID,
		entries:       entries,
		hash:          hash,
		hashAlgorithm: hashAlgorithm,
		createdAt:     createdAt,
		sealed:        hash != "",
	}
}

// ValidAlgorithm reports whether algorithm can seal a trail.
func ValidAlgorithm(algorithm string) bool {
	return algorithm == HashSHA256 || algorithm == HashSHA512
}

// AppendEntry adds an entry to the trail.
func (at *AuditTrail) AppendEntry(entry *Entry) error {
	if at.sealed {
		return sharedErrors.ErrAuditTrailSealed
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", sharedErrors.ErrMissingRequired)
	}
	if entry.RunID != at.runID {
		return fmt.Errorf("%w: entry belongs to run %s, not %s", sharedErrors.ErrInvalidInput, entry.RunID, at.runID)
	}
	at.entries = append(at.entries, entry)
	return nil
}

// Seal finalizes the trail with the digest of its stored form.
func (at *AuditTrail) Seal(hash, algorithm string) error {
	if at.sealed {
		return sharedErrors.ErrAuditTrailSealed
	}
	if hash == "" {
		return fmt.Errorf("%w: hash", sharedErrors.ErrMissingRequired)
	}
	if !ValidAlgorithm(algorithm) {
		return fmt.Errorf("%w: %s", sharedErrors.ErrInvalidHashAlgorithm, algorithm)
	}
	at.hash = hash
	at.hashAlgorithm = algorithm
	at.sealed = true
	return nil
}

// VerifyIntegrity checks a freshly computed digest against the seal.
func (at *AuditTrail) VerifyIntegrity(computedHash string) bool {
	return at.sealed && at.hash == computedHash
}

func (at *AuditTrail) IsSealed() bool {
	return at.sealed
}

func (at *AuditTrail) RunID() string {
	return at.runID
}

func (at *AuditTrail) Entries() []*Entry {
	entriesCopy := make([]*Entry, len(at.entries))
	copy(entriesCopy, at.entries)
	return entriesCopy
}

func (at *AuditTrail) Hash() string {
	return at.hash
}

func (at *AuditTrail) HashAlgorithm() string {
	return at.hashAlgorithm
}

func (at *AuditTrail) CreatedAt() time.Time {
	return at.createdAt
}
