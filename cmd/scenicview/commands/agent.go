package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/scenicview/internal/agent"
	"github.com/bryanchriswhite/scenicview/internal/logger"
)

var agentPID int

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run an agent for an application",
	Long: `Run an agent exposing the top-level windows of one process as stages.

The agent binds its own registry on a free client port and announces
itself to the inspector's connector as soon as the inspector is found.
Start the agent and the inspector in either order.`,
	Example: `  # Inspect the windows of process 4242
  scenicview agent --pid 4242

  # Announce to an inspector on a custom registry port
  scenicview agent --pid 4242 --registry-port 7600`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().IntVar(&agentPID, "pid", 0, "process id of the application to inspect (required)")
	agentCmd.MarkFlagRequired("pid")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	if agentPID <= 0 {
		return fmt.Errorf("invalid pid %d", agentPID)
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("agent-cmd")

	toolkit, err := agent.NewX11Toolkit()
	if err != nil {
		return fmt.Errorf("failed to initialize toolkit: %w", err)
	}
	defer toolkit.Close()

	a := agent.New(agentPID, toolkit)
	a.SetTopologyInterval(cfg.TopologyInterval)
	a.SetRetryInterval(cfg.DiscoveryBackoff)
	if err := a.Start(cfg.RegistryPort); err != nil {
		return err
	}

	log.Info().
		Int("pid", agentPID).
		Int("port", a.Port()).
		Int("connector_port", cfg.RegistryPort).
		Msg("Agent running, press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully...")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop agent: %w", err)
	}
	return nil
}
