package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/scenicview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ScenicView configuration",
	Long: `View and manage the settings shared by the inspector and its agents.

Keys:
  server_port, registry_port, log_level,
  poll_interval, discovery_backoff, topology_interval, refresh_interval,
  status_timeout, remote_timeout,
  inspection.show_bounds, inspection.show_baseline, inspection.show_popups,
  inspection.auto_refresh, inspection.animations_enabled`,
}

func init() {
	rootCmd.AddCommand(configCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration file contents",
		Example: `  scenicview config show
  scenicview config show --format json`,
		RunE: withConfig(showConfig),
	}
	showCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")

	configCmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:   "list",
			Short: "List every key with its current value",
			RunE:  withConfig(listConfig),
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one configuration value",
			Example: `  scenicview config get registry_port
  scenicview config get inspection.show_popups`,
			Args: cobra.ExactArgs(1),
			RunE: withConfig(getConfig),
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change and save one configuration value",
			Example: `  # Serve the API on another port
  scenicview config set server_port 9090

  # Poll agents every second
  scenicview config set poll_interval 1s

  # Start inspections with bounds shown
  scenicview config set inspection.show_bounds true`,
			Args: cobra.ExactArgs(2),
			RunE: withConfig(setConfig),
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			RunE:  withConfig(configPath),
		},
	)
}

var formatFlag string

type configFunc func(cmd *cobra.Command, configMgr *config.Manager, args []string) error

// withConfig opens the configuration file before running fn. Flag
// overrides are not applied so that set and show reflect the file.
func withConfig(fn configFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		configMgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return fn(cmd, configMgr, args)
	}
}

func showConfig(cmd *cobra.Command, configMgr *config.Manager, _ []string) error {
	cfg := configMgr.Get()
	out := cmd.OutOrStdout()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func listConfig(cmd *cobra.Command, configMgr *config.Manager, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "KEY\tVALUE")
	for _, key := range config.Keys {
		value, err := configMgr.Value(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return nil
}

func getConfig(cmd *cobra.Command, configMgr *config.Manager, args []string) error {
	value, err := configMgr.Value(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func setConfig(cmd *cobra.Command, configMgr *config.Manager, args []string) error {
	key, value := args[0], args[1]
	if err := configMgr.Set(key, value); err != nil {
		return err
	}
	if err := configMgr.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration updated: %s = %s\n", key, value)
	return nil
}

func configPath(cmd *cobra.Command, configMgr *config.Manager, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), configMgr.GetConfigPath())
	return nil
}
