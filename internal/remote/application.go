package remote

import (
	"context"

	"github.com/bryanchriswhite/scenicview/internal/codec"
	"github.com/bryanchriswhite/scenicview/internal/details"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Actions of the remote application.
const (
	ActionConfigurationUpdated = "configurationUpdated"
	ActionUpdate               = "update"
	ActionSetEventDispatcher   = "setEventDispatcher"
	ActionGetStageIDs          = "getStageIDs"
	ActionCloseStage           = "closeStage"
	ActionClose                = "close"
	ActionSetSelectedNode      = "setSelectedNode"
	ActionRemoveSelectedNode   = "removeSelectedNode"
	ActionSetDetail            = "setDetail"
	ActionAnimationsEnabled    = "animationsEnabled"
	ActionUpdateAnimations     = "updateAnimations"
	ActionPauseAnimation       = "pauseAnimation"
)

type stageParams struct {
	Stage       model.StageID        `cbor:"stage"`
	Config      *model.Configuration `cbor:"config,omitempty"`
	Endpoint    string               `cbor:"endpoint,omitempty"`
	Node        *model.NodeRef       `cbor:"node,omitempty"`
	Pane        details.PaneType     `cbor:"pane,omitempty"`
	DetailID    int                  `cbor:"detail_id,omitempty"`
	Value       string               `cbor:"value,omitempty"`
	Enabled     bool                 `cbor:"enabled,omitempty"`
	AnimationID int                  `cbor:"animation_id,omitempty"`
}

// ApplicationClient is a model.Application living behind a registry.
type ApplicationClient struct {
	client *Client
	name   string
}

var _ model.Application = (*ApplicationClient)(nil)

// NewApplicationClient returns a client for the application bound as
// AgentName at address.
func NewApplicationClient(address string) *ApplicationClient {
	return &ApplicationClient{client: NewClient(address), name: AgentName}
}

// Address returns the agent registry address.
func (a *ApplicationClient) Address() string {
	return a.client.Address()
}

func (a *ApplicationClient) call(ctx context.Context, action string, params stageParams) error {
	return a.client.Call(ctx, a.name, action, params, nil)
}

func (a *ApplicationClient) ConfigurationUpdated(ctx context.Context, id model.StageID, cfg model.Configuration) error {
	return a.call(ctx, ActionConfigurationUpdated, stageParams{Stage: id, Config: &cfg})
}

func (a *ApplicationClient) Update(ctx context.Context, id model.StageID) error {
	return a.call(ctx, ActionUpdate, stageParams{Stage: id})
}

func (a *ApplicationClient) SetEventDispatcher(ctx context.Context, id model.StageID, endpoint string) error {
	return a.call(ctx, ActionSetEventDispatcher, stageParams{Stage: id, Endpoint: endpoint})
}

func (a *ApplicationClient) StageIDs(ctx context.Context) ([]model.StageID, error) {
	var ids []model.StageID
	if err := a.client.Call(ctx, a.name, ActionGetStageIDs, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (a *ApplicationClient) CloseStage(ctx context.Context, id model.StageID) error {
	return a.call(ctx, ActionCloseStage, stageParams{Stage: id})
}

func (a *ApplicationClient) Close(ctx context.Context) error {
	return a.client.Call(ctx, a.name, ActionClose, nil, nil)
}

func (a *ApplicationClient) SetSelectedNode(ctx context.Context, id model.StageID, node model.NodeRef) error {
	return a.call(ctx, ActionSetSelectedNode, stageParams{Stage: id, Node: &node})
}

func (a *ApplicationClient) RemoveSelectedNode(ctx context.Context, id model.StageID) error {
	return a.call(ctx, ActionRemoveSelectedNode, stageParams{Stage: id})
}

func (a *ApplicationClient) SetDetail(ctx context.Context, id model.StageID, pane details.PaneType, detailID int, value string) error {
	return a.call(ctx, ActionSetDetail, stageParams{Stage: id, Pane: pane, DetailID: detailID, Value: value})
}

func (a *ApplicationClient) AnimationsEnabled(ctx context.Context, id model.StageID, enabled bool) error {
	return a.call(ctx, ActionAnimationsEnabled, stageParams{Stage: id, Enabled: enabled})
}

func (a *ApplicationClient) UpdateAnimations(ctx context.Context, id model.StageID) error {
	return a.call(ctx, ActionUpdateAnimations, stageParams{Stage: id})
}

func (a *ApplicationClient) PauseAnimation(ctx context.Context, id model.StageID, animationID int) error {
	return a.call(ctx, ActionPauseAnimation, stageParams{Stage: id, AnimationID: animationID})
}

// ApplicationObject serves app through a registry.
func ApplicationObject(app model.Application) Object {
	stage := func(fn func(ctx context.Context, p stageParams) error) ActionFunc {
		return func(ctx context.Context, raw codec.RawMessage) (any, error) {
			p, err := decodeParams[stageParams](raw)
			if err != nil {
				return nil, err
			}
			return nil, fn(ctx, p)
		}
	}

	return Actions{
		ActionConfigurationUpdated: stage(func(ctx context.Context, p stageParams) error {
			cfg := model.DefaultConfiguration()
			if p.Config != nil {
				cfg = *p.Config
			}
			return app.ConfigurationUpdated(ctx, p.Stage, cfg)
		}),
		ActionUpdate: stage(func(ctx context.Context, p stageParams) error {
			return app.Update(ctx, p.Stage)
		}),
		ActionSetEventDispatcher: stage(func(ctx context.Context, p stageParams) error {
			return app.SetEventDispatcher(ctx, p.Stage, p.Endpoint)
		}),
		ActionGetStageIDs: func(ctx context.Context, _ codec.RawMessage) (any, error) {
			ids, err := app.StageIDs(ctx)
			if err != nil {
				return nil, err
			}
			if ids == nil {
				ids = []model.StageID{}
			}
			return ids, nil
		},
		ActionCloseStage: stage(func(ctx context.Context, p stageParams) error {
			return app.CloseStage(ctx, p.Stage)
		}),
		ActionClose: func(ctx context.Context, _ codec.RawMessage) (any, error) {
			return nil, app.Close(ctx)
		},
		ActionSetSelectedNode: stage(func(ctx context.Context, p stageParams) error {
			var node model.NodeRef
			if p.Node != nil {
				node = *p.Node
			}
			return app.SetSelectedNode(ctx, p.Stage, node)
		}),
		ActionRemoveSelectedNode: stage(func(ctx context.Context, p stageParams) error {
			return app.RemoveSelectedNode(ctx, p.Stage)
		}),
		ActionSetDetail: stage(func(ctx context.Context, p stageParams) error {
			return app.SetDetail(ctx, p.Stage, p.Pane, p.DetailID, p.Value)
		}),
		ActionAnimationsEnabled: stage(func(ctx context.Context, p stageParams) error {
			return app.AnimationsEnabled(ctx, p.Stage, p.Enabled)
		}),
		ActionUpdateAnimations: stage(func(ctx context.Context, p stageParams) error {
			return app.UpdateAnimations(ctx, p.Stage)
		}),
		ActionPauseAnimation: stage(func(ctx context.Context, p stageParams) error {
			return app.PauseAnimation(ctx, p.Stage, p.AnimationID)
		}),
	}
}
