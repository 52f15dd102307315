package cmd

import (
	"os"

	"github.com/khanhnv2901/seca-probe/internal/domain/audit"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultHTTPTimeoutSeconds  = 10
	defaultCheckTimeoutSeconds = 120
	defaultConcurrency         = 4
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Scan     ScanRuntimeConfig
	Auth     AuthConfig
}

// DefaultValues represent operator-level defaults, typically derived from env/config.
type DefaultValues struct {
	TimeoutSecs   int
	Operator      string
	HashAlgorithm string
}

// ScanRuntimeConfig consolidates flag-driven settings for the scan command.
type ScanRuntimeConfig struct {
	Checks           []string
	Concurrency      int
	RateLimit        int
	TimeoutSecs      int
	CheckTimeoutSecs int
	AllPages         bool
	MaxPages         int
	MaxDepth         int
	Insecure         bool
	Format           string
	Output           string
	ProgressEnabled  bool
}

// AuthConfig holds the accounts used by checks that need a logged-in session.
type AuthConfig struct {
	LoginURL       string
	Username       string
	Password       string
	SecondUsername string
	SecondPassword string
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			TimeoutSecs:   defaultHTTPTimeoutSeconds,
			Operator:      detectOperatorFromEnv(),
			HashAlgorithm: audit.HashSHA256,
		},
		Scan: ScanRuntimeConfig{
			Concurrency:      defaultConcurrency,
			TimeoutSecs:      defaultHTTPTimeoutSeconds,
			CheckTimeoutSecs: defaultCheckTimeoutSeconds,
			MaxPages:         consts.DefaultMaxPages,
			MaxDepth:         consts.DefaultMaxDepth,
			Format:           formatText,
		},
	}
}

func detectOperatorFromEnv() string {
	if env := os.Getenv("USER"); env != "" {
		return env
	}
	if env := os.Getenv("LOGNAME"); env != "" {
		return env
	}
	return ""
}

// applyConfigDefaults merges config file and environment values into cfg
// when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(flags *pflag.FlagSet, cfg *CLIConfig) {
	if viper.IsSet("defaults.operator") {
		applyStringDefault(flags, "operator", viper.GetString("defaults.operator"), func(v string) {
			if v != "" {
				cfg.Defaults.Operator = v
			}
		})
	}
	if viper.IsSet("defaults.timeout_secs") {
		applyIntDefault(flags, "timeout", viper.GetInt("defaults.timeout_secs"), func(v int) {
			cfg.Defaults.TimeoutSecs = v
			cfg.Scan.TimeoutSecs = v
		})
	}

	if viper.IsSet("defaults.hash_algorithm") {
		if algo := viper.GetString("defaults.hash_algorithm"); audit.ValidAlgorithm(algo) {
			cfg.Defaults.HashAlgorithm = algo
		}
	}

	ints := []struct {
		key, flag string
		dst       *int
	}{
		{"scan.concurrency", "concurrency", &cfg.Scan.Concurrency},
		{"scan.rate_limit", "rate-limit", &cfg.Scan.RateLimit},
		{"scan.check_timeout_secs", "check-timeout", &cfg.Scan.CheckTimeoutSecs},
		{"scan.max_pages", "max-pages", &cfg.Scan.MaxPages},
		{"scan.max_depth", "max-depth", &cfg.Scan.MaxDepth},
	}
	for _, o := range ints {
		if viper.IsSet(o.key) {
			dst := o.dst
			applyIntDefault(flags, o.flag, viper.GetInt(o.key), func(v int) { *dst = v })
		}
	}

	if viper.IsSet("scan.all_pages") {
		applyBoolDefault(flags, "all-pages", viper.GetBool("scan.all_pages"), func(v bool) {
			cfg.Scan.AllPages = v
		})
	}

	strs := []struct {
		key, flag string
		dst       *string
	}{
		{"auth.login_url", "login-url", &cfg.Auth.LoginURL},
		{"auth.username", "username", &cfg.Auth.Username},
		{"auth.password", "password", &cfg.Auth.Password},
		{"auth.second_username", "second-username", &cfg.Auth.SecondUsername},
		{"auth.second_password", "second-password", &cfg.Auth.SecondPassword},
	}
	for _, o := range strs {
		if viper.IsSet(o.key) {
			dst := o.dst
			applyStringDefault(flags, o.flag, viper.GetString(o.key), func(v string) { *dst = v })
		}
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if setter == nil || flagChanged(flags, name) {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if setter == nil || flagChanged(flags, name) {
		return
	}
	setter(value)
}

func applyStringDefault(flags *pflag.FlagSet, name, value string, setter func(string)) {
	if setter == nil || flagChanged(flags, name) {
		return
	}
	setter(value)
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}
