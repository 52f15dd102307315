package cmd

import (
	"testing"

	"github.com/khanhnv2901/seca-probe/internal/application"
	"github.com/khanhnv2901/seca-probe/internal/testutil"
	"go.uber.org/zap/zaptest"
)

// setupTestAppContext installs an AppContext backed by a temporary results
// directory and real services. The previous context is restored on cleanup.
func setupTestAppContext(t *testing.T) *AppContext {
	t.Helper()

	env := testutil.NewTestEnv(t)
	logger := zaptest.NewLogger(t)
	services, err := application.NewContainer(env.ResultsDir, logger)
	if err != nil {
		t.Fatalf("failed to initialize services: %v", err)
	}

	appCtx := &AppContext{
		Logger:     logger.Sugar(),
		Operator:   env.Operator,
		ResultsDir: env.ResultsDir,
		Config:     newCLIConfig(),
		Services:   services,
	}

	original := globalAppContext
	globalAppContext = appCtx
	t.Cleanup(func() {
		globalAppContext = original
	})
	return appCtx
}
