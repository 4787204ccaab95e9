package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bryanchriswhite/scenicview/internal/codec"
)

// DefaultTimeout bounds one call: dialing, writing and reading.
var DefaultTimeout = 5 * time.Second

const maxResponseSize = 4 * 1024 * 1024

// Client calls objects bound in a remote registry.
type Client struct {
	address string
	timeout time.Duration
}

// NewClient returns a client for the registry at address ("host:port").
func NewClient(address string) *Client {
	return &Client{address: address, timeout: DefaultTimeout}
}

// Address returns the registry address.
func (c *Client) Address() string {
	return c.address
}

// Call invokes action on object. Failures reported by the far side are
// returned as *RemoteError; result, when non-nil, receives the data.
func (c *Client) Call(ctx context.Context, object, action string, params any, result any) error {
	request := Request{Object: object, Action: action}
	if params != nil {
		raw, err := codec.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params for %s.%s: %w", object, action, err)
		}
		request.Params = raw
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to call %s.%s on %s: %w", object, action, c.address, err)
	}

	if !response.OK {
		return &RemoteError{
			Object:  object,
			Action:  action,
			Code:    response.Code,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("failed to decode result of %s.%s: %w", object, action, err)
		}
	}
	return nil
}

// Lookup checks that name is bound in the registry.
func (c *Client) Lookup(ctx context.Context, name string) error {
	return c.Call(ctx, RegistryObject, actionLookup, lookupParams{Name: name}, nil)
}

// Names lists the names bound in the registry.
func (c *Client) Names(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.Call(ctx, RegistryObject, actionList, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) send(ctx context.Context, request Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &response, nil
}
