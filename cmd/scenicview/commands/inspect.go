package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanchriswhite/scenicview/internal/api"
	"github.com/bryanchriswhite/scenicview/internal/config"
	"github.com/bryanchriswhite/scenicview/internal/connector"
	"github.com/bryanchriswhite/scenicview/internal/inspector"
	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/metrics"
	"github.com/bryanchriswhite/scenicview/internal/remote"
	"github.com/bryanchriswhite/scenicview/internal/repository"
	"github.com/bryanchriswhite/scenicview/internal/uithread"
	"github.com/bryanchriswhite/scenicview/internal/update"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Start the inspector",
	Long: `Start the inspector: bind the connector registry, wait for agents to
announce themselves and serve the REST API and event stream.

Run "scenicview agent --pid N" next to each application to inspect.`,
	Example: `  # Start the inspector on the default ports
  scenicview inspect

  # Serve the API on a custom port
  scenicview inspect --port 9090

  # Start with debug logging
  scenicview inspect --log-level debug`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("inspect")

	m := metrics.New()
	queue := uithread.New(logger.WithComponent("ui-thread"))
	defer queue.Stop()

	hub := inspector.NewHub(queue, m)
	hub.SetRemoteTimeout(cfg.RemoteTimeout)
	hub.SetStatusDuration(cfg.StatusTimeout)
	hub.SetConfiguration(cfg.Inspection.Stage(cfg.RefreshInterval))

	conn := connector.New(remote.Address(remote.LocalHost, cfg.RegistryPort), m)
	conn.SetRetryInterval(cfg.DiscoveryBackoff)
	registry, err := remote.BindConnector(conn, cfg.RegistryPort)
	if err != nil {
		return fmt.Errorf("failed to start connector: %w", err)
	}
	defer func() {
		if err := remote.UnbindConnector(registry); err != nil {
			log.Warn().Err(err).Msg("Failed to unbind connector")
		}
	}()

	repo := repository.New(queue, hub, hub)
	poller := update.NewPoller(repo, cfg.PollInterval, m)
	poller.SetWaitInterval(cfg.DiscoveryBackoff)
	poller.SetConnector(conn)
	poller.SetExitFunc(func(code int) {
		log.Info().Int("code", code).Msg("Inspector finished")
	})

	server := api.NewServer(hub, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(ctx)
	})
	g.Go(func() error {
		return server.Start(ctx, cfg.ServerPort)
	})
	g.Go(func() error {
		persistConfiguration(ctx, hub, configMgr)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down gracefully...")
		poller.Stop()
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout)
		defer cancel()
		for _, app := range repo.Apps() {
			app.Close(closeCtx)
		}
		poller.Finish(closeCtx)
		return nil
	})

	log.Info().
		Int("registry_port", registry.Port()).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("ScenicView inspector is running, press Ctrl+C to stop")

	return g.Wait()
}

// persistConfiguration saves every configuration change made through
// the hub until ctx ends.
func persistConfiguration(ctx context.Context, hub *inspector.Hub, configMgr *config.Manager) {
	log := logger.WithComponent("inspect")
	id, notifications := hub.Subscribe()
	defer hub.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if n.Type != inspector.NotifyConfiguration || n.Configuration == nil {
				continue
			}
			if err := configMgr.SetInspection(*n.Configuration); err != nil {
				log.Warn().Err(err).Msg("Failed to save configuration")
			}
		}
	}
}
