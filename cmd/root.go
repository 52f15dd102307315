package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/khanhnv2901/seca-probe/internal/application"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "SECA_PROBE"

var cfgFile string
var logEnabled bool

var rootCmd = &cobra.Command{
	Use:           "seca-probe",
	Short:         "Safe web application security probes (for authorized testing only)",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		applyConfigDefaults(cmd.Flags(), cliConfig)
		if !cmd.Flags().Changed("log") && viper.IsSet("log.enabled") {
			logEnabled = viper.GetBool("log.enabled")
		}

		resultsDir := viper.GetString("results_dir")
		if resultsDir == "" {
			resultsDir = "./results"
		}
		if abs, err := filepath.Abs(resultsDir); err == nil {
			resultsDir = abs
		}
		if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}

		logger, err := newLogger(logEnabled)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		services, err := application.NewContainer(resultsDir, logger)
		if err != nil {
			return err
		}

		appCtx := &AppContext{
			Logger:     logger.Sugar(),
			Operator:   cliConfig.Defaults.Operator,
			ResultsDir: resultsDir,
			Config:     cliConfig,
			Services:   services,
		}
		storeAppContext(cmd, appCtx)

		appCtx.Logger.Infof("operator=%s results_dir=%s", appCtx.Operator, resultsDir)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".seca-probe")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

func newLogger(enabled bool) (*zap.Logger, error) {
	if !enabled {
		return zap.NewNop(), nil
	}
	return zap.NewProduction()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-probe.yaml)")
	rootCmd.PersistentFlags().StringVarP(&cliConfig.Defaults.Operator, "operator", "o", cliConfig.Defaults.Operator, "operator name (or set via USER env)")
	rootCmd.PersistentFlags().BoolVar(&logEnabled, "log", false, "write structured logs to stderr")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(checksCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}
