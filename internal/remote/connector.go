package remote

import (
	"context"

	"github.com/bryanchriswhite/scenicview/internal/codec"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Actions of the connector.
const (
	ActionAgentStarted  = "agentStarted"
	ActionAgentFinished = "agentFinished"
	ActionDispatch      = "dispatch"
)

// Connector is the inspector-side endpoint agents talk to.
type Connector interface {
	// AgentStarted announces an agent whose registry listens on port.
	AgentStarted(ctx context.Context, appID, port int) error
	// AgentFinished announces that an agent went away.
	AgentFinished(ctx context.Context, appID int) error
	// Dispatch delivers one event.
	Dispatch(ctx context.Context, event model.Event) error
}

type agentParams struct {
	AppID int `cbor:"app_id"`
	Port  int `cbor:"port,omitempty"`
}

type dispatchParams struct {
	Event model.Event `cbor:"event"`
}

// ConnectorClient is a Connector living behind a registry.
type ConnectorClient struct {
	client *Client
}

var _ Connector = (*ConnectorClient)(nil)

// NewConnectorClient returns a client for the connector bound as
// ConnectorName at address.
func NewConnectorClient(address string) *ConnectorClient {
	return &ConnectorClient{client: NewClient(address)}
}

// Address returns the connector registry address.
func (c *ConnectorClient) Address() string {
	return c.client.Address()
}

func (c *ConnectorClient) AgentStarted(ctx context.Context, appID, port int) error {
	return c.client.Call(ctx, ConnectorName, ActionAgentStarted, agentParams{AppID: appID, Port: port}, nil)
}

func (c *ConnectorClient) AgentFinished(ctx context.Context, appID int) error {
	return c.client.Call(ctx, ConnectorName, ActionAgentFinished, agentParams{AppID: appID}, nil)
}

func (c *ConnectorClient) Dispatch(ctx context.Context, event model.Event) error {
	return c.client.Call(ctx, ConnectorName, ActionDispatch, dispatchParams{Event: event}, nil)
}

// ConnectorObject serves connector through a registry.
func ConnectorObject(connector Connector) Object {
	return Actions{
		ActionAgentStarted: func(ctx context.Context, raw codec.RawMessage) (any, error) {
			p, err := decodeParams[agentParams](raw)
			if err != nil {
				return nil, err
			}
			return nil, connector.AgentStarted(ctx, p.AppID, p.Port)
		},
		ActionAgentFinished: func(ctx context.Context, raw codec.RawMessage) (any, error) {
			p, err := decodeParams[agentParams](raw)
			if err != nil {
				return nil, err
			}
			return nil, connector.AgentFinished(ctx, p.AppID)
		},
		ActionDispatch: func(ctx context.Context, raw codec.RawMessage) (any, error) {
			p, err := decodeParams[dispatchParams](raw)
			if err != nil {
				return nil, err
			}
			return nil, connector.Dispatch(ctx, p.Event)
		},
	}
}
