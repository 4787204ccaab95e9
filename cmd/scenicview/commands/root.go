package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/scenicview/internal/config"
	"github.com/bryanchriswhite/scenicview/internal/logger"
)

var (
	cfgFile string
	pretty  bool
	rootCmd = &cobra.Command{
		Use:   "scenicview",
		Short: "ScenicView - Live inspector for running X11 applications",
		Long: `ScenicView attaches to running applications, lists their top-level windows
as stages and lets you inspect and edit the selected window live.

Features:
  • Agents discover the inspector through a local registry
  • Stages and popup windows tracked as they come and go
  • Editable window properties with validation
  • REST API and WebSocket event stream
  • Prometheus metrics
  • Persistent configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/scenicview/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "API server port (default is 8558)")
	rootCmd.PersistentFlags().Int("registry-port", 0, "connector registry port (default is 7557)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "human readable log output")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("registry_port", rootCmd.PersistentFlags().Lookup("registry-port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig opens the config file, applies flag overrides and sets up
// logging.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}
	if err := configMgr.ApplyOverrides(viper.GetViper()); err != nil {
		return nil, nil, err
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, pretty)
	logger.WithComponent("cli").Debug().
		Str("path", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")
	return configMgr, cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
