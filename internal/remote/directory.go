package remote

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Well-known names.
const (
	ConnectorName = "RemoteConnector"
	AgentName     = "AgentServer"
)

// BasePort is the default connector port; client ports are allocated
// above it.
const BasePort = 7557

// LocalHost is where retrying lookups search.
const LocalHost = "127.0.0.1"

// DefaultRetryInterval is the fixed pause between lookup attempts when
// the caller passes no interval.
const DefaultRetryInterval = 50 * time.Millisecond

var clientPort atomic.Int64

func init() {
	clientPort.Store(BasePort)
}

// ClientPort allocates a port for an agent registry. No two calls in a
// process return the same port.
func ClientPort() int {
	return int(clientPort.Add(1))
}

// BindConnector creates a registry on port and binds connector as
// ConnectorName.
func BindConnector(connector Connector, port int) (*Registry, error) {
	return bind(ConnectorName, ConnectorObject(connector), port)
}

// BindApplication creates a registry on port and binds app as AgentName.
func BindApplication(app model.Application, port int) (*Registry, error) {
	return bind(AgentName, ApplicationObject(app), port)
}

func bind(name string, object Object, port int) (*Registry, error) {
	registry, err := Listen(port)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", name, err)
	}
	registry.Bind(name, object)
	return registry, nil
}

// UnbindConnector unbinds ConnectorName and closes the registry.
func UnbindConnector(registry *Registry) error {
	return unbind(registry, ConnectorName)
}

// UnbindApplication unbinds AgentName and closes the registry.
func UnbindApplication(registry *Registry) error {
	return unbind(registry, AgentName)
}

func unbind(registry *Registry, name string) error {
	if registry == nil {
		return nil
	}
	registry.Unbind(name)
	return registry.Close()
}

// Address joins host and port.
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindConnector looks up the connector at host:port. It fails with
// ErrNotBound when the registry answers without a connector, or with a
// connection error when nothing answers.
func FindConnector(ctx context.Context, host string, port int) (*ConnectorClient, error) {
	address := Address(host, port)
	if err := NewClient(address).Lookup(ctx, ConnectorName); err != nil {
		return nil, err
	}
	return NewConnectorClient(address), nil
}

// FindApplication looks up the agent at host:port.
func FindApplication(ctx context.Context, host string, port int) (*ApplicationClient, error) {
	address := Address(host, port)
	if err := NewClient(address).Lookup(ctx, AgentName); err != nil {
		return nil, err
	}
	return NewApplicationClient(address), nil
}

// FindConnectorWithRetry searches for the connector on the local host in
// the background every interval until it is found, then calls onFound
// once. Only cancelling ctx stops the search.
func FindConnectorWithRetry(ctx context.Context, port int, interval time.Duration, onFound func(*ConnectorClient)) {
	findWithRetry(ctx, ConnectorName, port, interval, FindConnector, onFound)
}

// FindApplicationWithRetry searches for an agent on the local host in
// the background every interval until it is found, then calls onFound
// once.
func FindApplicationWithRetry(ctx context.Context, port int, interval time.Duration, onFound func(*ApplicationClient)) {
	findWithRetry(ctx, AgentName, port, interval, FindApplication, onFound)
}

func findWithRetry[T any](
	ctx context.Context,
	name string,
	port int,
	interval time.Duration,
	find func(context.Context, string, int) (T, error),
	onFound func(T),
) {
	log := logger.WithComponent("directory")
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	go func() {
		attempts := 0
		found, err := backoff.Retry(ctx,
			func() (T, error) {
				attempts++
				return find(ctx, LocalHost, port)
			},
			backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, _ time.Duration) {
				if attempts == 1 {
					log.Debug().Err(err).Str("name", name).Int("port", port).Msg("Finding connection")
				}
			}),
		)
		if err != nil {
			log.Debug().Err(err).Str("name", name).Int("port", port).Msg("Stopped finding connection")
			return
		}

		log.Debug().Str("name", name).Int("port", port).Int("attempts", attempts).Msg("Found connection")
		onFound(found)
	}()
}
