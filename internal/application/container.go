package application

import (
	"fmt"

	auditapp "github.com/khanhnv2901/seca-probe/internal/application/audit"
	scanapp "github.com/khanhnv2901/seca-probe/internal/application/scan"
	"github.com/khanhnv2901/seca-probe/internal/checks"
	"github.com/khanhnv2901/seca-probe/internal/domain/audit"
	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
	"github.com/khanhnv2901/seca-probe/internal/infrastructure/persistence/json"
	"go.uber.org/zap"
)

// Container holds the application services and repositories used by the
// commands.
type Container struct {
	ScanRunRepo  scan.Repository
	AuditRepo    audit.Repository
	Registry     *checks.Registry
	ScanService  *scanapp.Service
	AuditService *auditapp.Service
}

// NewContainer wires the services around a results directory.
func NewContainer(resultsDir string, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scanRunRepo, err := json.NewScanRunRepository(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan run repository: %w", err)
	}
	auditRepo, err := json.NewAuditRepository(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit repository: %w", err)
	}

	return &Container{
		ScanRunRepo:  scanRunRepo,
		AuditRepo:    auditRepo,
		Registry:     checks.NewRegistry(),
		ScanService:  scanapp.NewService(scanRunRepo, logger),
		AuditService: auditapp.NewService(auditRepo),
	}, nil
}
