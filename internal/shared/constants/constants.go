package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// EvidenceLimitBytes caps how much response text an issue keeps as evidence.
	EvidenceLimitBytes = 512
	// TLSSoonExpiryWindow warns operators when a certificate expires inside this window.
	TLSSoonExpiryWindow = 14 * 24 * time.Hour
	// WeakTokenEntropy is the Shannon entropy, in bits per symbol, below which
	// an anti-CSRF token is reported as weakly random.
	WeakTokenEntropy = 2.4
)

const (
	// DefaultMaxPages bounds page discovery when --all-pages is set.
	DefaultMaxPages = 50
	// DefaultMaxDepth bounds link depth during page discovery.
	DefaultMaxDepth = 2
	// ScanFileName is the file a scan run is stored in under its run directory.
	ScanFileName = "scan.json"
	// AuditFileName is the per-run audit trail.
	AuditFileName = "audit.csv"
)
