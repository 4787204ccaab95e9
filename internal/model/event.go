package model

import "github.com/bryanchriswhite/scenicview/internal/details"

// EventType discriminates events sent by an agent.
type EventType string

const (
	EventAnimationsUpdated EventType = "animations-updated"
	EventWindowsUpdated    EventType = "windows-updated"
	EventDetailsUpdated    EventType = "details-updated"
	EventDetailUpdated     EventType = "detail-updated"
	EventNodeSelected      EventType = "node-selected"
)

// Event is a fire-and-forget notification from an agent, keyed by stage.
// Only the fields matching Type are set.
type Event struct {
	Type       EventType        `json:"type"`
	Stage      StageID          `json:"stage"`
	Animations []Animation      `json:"animations,omitempty"`
	Popups     []PopupWindow    `json:"popups,omitempty"`
	Pane       details.PaneType `json:"pane,omitempty"`
	Details    []details.Detail `json:"details,omitempty"`
	Detail     *details.Detail  `json:"detail,omitempty"`
	Node       *NodeRef         `json:"node,omitempty"`
}

// Dispatcher receives events for the stages it was registered on.
type Dispatcher interface {
	Dispatch(event Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(event Event)

func (f DispatcherFunc) Dispatch(event Event) {
	f(event)
}
