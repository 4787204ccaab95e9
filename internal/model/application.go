package model

import (
	"context"

	"github.com/bryanchriswhite/scenicview/internal/details"
)

// Application is the remote interface of an inspected application,
// implemented by the agent and consumed by the inspector. Every method
// may fail with a remote or connection error; callers treat that as
// "target unreachable".
type Application interface {
	ConfigurationUpdated(ctx context.Context, id StageID, cfg Configuration) error
	Update(ctx context.Context, id StageID) error
	// SetEventDispatcher asks the agent to send the events of a stage to
	// the connector listening at endpoint ("host:port").
	SetEventDispatcher(ctx context.Context, id StageID, endpoint string) error
	StageIDs(ctx context.Context) ([]StageID, error)
	CloseStage(ctx context.Context, id StageID) error
	Close(ctx context.Context) error
	SetSelectedNode(ctx context.Context, id StageID, node NodeRef) error
	RemoveSelectedNode(ctx context.Context, id StageID) error
	SetDetail(ctx context.Context, id StageID, pane details.PaneType, detailID int, value string) error
	AnimationsEnabled(ctx context.Context, id StageID, enabled bool) error
	UpdateAnimations(ctx context.Context, id StageID) error
	PauseAnimation(ctx context.Context, id StageID, animationID int) error
}

// Router delivers events arriving for a stage to a local dispatcher.
type Router interface {
	Route(id StageID, dispatcher Dispatcher)
	Unroute(id StageID)
	// Endpoint is the address agents send events to.
	Endpoint() string
}
