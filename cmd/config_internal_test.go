package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestApplyConfigDefaultsRespectsChangedFlags(t *testing.T) {
	resetViper(t)
	viper.Set("scan.concurrency", 9)
	viper.Set("scan.max_pages", 7)
	viper.Set("scan.all_pages", true)
	viper.Set("auth.username", "carol")
	viper.Set("defaults.timeout_secs", 30)

	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	flags.Int("concurrency", 4, "")
	flags.Int("max-pages", 50, "")
	flags.Int("timeout", 10, "")
	if err := flags.Parse([]string{"--concurrency=2"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := newCLIConfig()
	applyConfigDefaults(flags, cfg)

	if cfg.Scan.Concurrency != defaultConcurrency {
		t.Fatalf("explicit --concurrency must win over config, got %d", cfg.Scan.Concurrency)
	}
	if cfg.Scan.MaxPages != 7 {
		t.Fatalf("expected max pages from config, got %d", cfg.Scan.MaxPages)
	}
	if !cfg.Scan.AllPages {
		t.Fatalf("expected all pages from config")
	}
	if cfg.Auth.Username != "carol" {
		t.Fatalf("expected username from config, got %q", cfg.Auth.Username)
	}
	if cfg.Scan.TimeoutSecs != 30 || cfg.Defaults.TimeoutSecs != 30 {
		t.Fatalf("expected timeout 30, got %d/%d", cfg.Scan.TimeoutSecs, cfg.Defaults.TimeoutSecs)
	}
}

func TestApplyConfigDefaultsFromEnvironment(t *testing.T) {
	resetViper(t)
	t.Setenv("SECA_PROBE_AUTH_PASSWORD", "s3cret")
	t.Setenv("SECA_PROBE_DEFAULTS_OPERATOR", "ops-team")
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := newCLIConfig()
	applyConfigDefaults(pflag.NewFlagSet("scan", pflag.ContinueOnError), cfg)

	if cfg.Auth.Password != "s3cret" {
		t.Fatalf("expected password from environment, got %q", cfg.Auth.Password)
	}
	if cfg.Defaults.Operator != "ops-team" {
		t.Fatalf("expected operator from environment, got %q", cfg.Defaults.Operator)
	}
}

func TestApplyDefaultHelpers(t *testing.T) {
	var called bool
	applyIntDefault(nil, "missing", 1, func(int) { called = true })
	if !called {
		t.Fatalf("nil flag set should still apply the default")
	}

	flags := pflag.NewFlagSet("x", pflag.ContinueOnError)
	flags.Bool("all-pages", false, "")
	_ = flags.Set("all-pages", "true")
	called = false
	applyBoolDefault(flags, "all-pages", false, func(bool) { called = true })
	if called {
		t.Fatalf("changed flag must not be overwritten")
	}
}
