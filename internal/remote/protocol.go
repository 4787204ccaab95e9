// Package remote is the bridge between the inspector and its agents: a
// registry binding well-known names to objects, reachable over TCP with
// one CBOR request and one CBOR response per connection.
//
// A request names an object and an action:
//
//	{object: "AgentServer", action: "getStageIDs", params: <cbor>}
//
// and the response is an envelope:
//
//	{ok: true, data: <cbor>}
//	{ok: false, code: "not-bound", error: "..."}
//
// The registry itself answers requests addressed to RegistryObject.
package remote

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/scenicview/internal/codec"
)

// RegistryObject is the name under which the registry answers lookups.
const RegistryObject = "registry"

// Registry actions.
const (
	actionLookup = "lookup"
	actionList   = "list"
)

// Request is the wire-format envelope of a call.
type Request struct {
	Object string           `cbor:"object"`
	Action string           `cbor:"action"`
	Params codec.RawMessage `cbor:"params,omitempty"`
}

// Response is the wire-format envelope of every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Code  string           `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Object is something that can be bound in a registry.
type Object interface {
	// Invoke runs action with the raw CBOR params. A non-nil result is
	// encoded into the response data.
	Invoke(ctx context.Context, action string, params codec.RawMessage) (any, error)
}

// ActionFunc handles one action of an object.
type ActionFunc func(ctx context.Context, params codec.RawMessage) (any, error)

// Actions is an Object routing by action name.
type Actions map[string]ActionFunc

// Invoke implements Object.
func (a Actions) Invoke(ctx context.Context, action string, params codec.RawMessage) (any, error) {
	handler, ok := a[action]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, action)
	}
	return handler(ctx, params)
}

func decodeParams[T any](raw codec.RawMessage) (T, error) {
	var params T
	if len(raw) == 0 {
		return params, nil
	}
	if err := codec.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("failed to decode params: %w", err)
	}
	return params, nil
}

type lookupParams struct {
	Name string `cbor:"name"`
}
