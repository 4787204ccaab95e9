package inspector

import (
	"time"

	"github.com/bryanchriswhite/scenicview/internal/model"
)

// NotificationType discriminates hub notifications.
type NotificationType string

const (
	NotifyAppAdded      NotificationType = "app-added"
	NotifyAppRemoved    NotificationType = "app-removed"
	NotifyStageAdded    NotificationType = "stage-added"
	NotifyStageRemoved  NotificationType = "stage-removed"
	NotifyActiveStage   NotificationType = "active-stage"
	NotifyConfiguration NotificationType = "configuration"
	NotifyEvent         NotificationType = "event"
	NotifyStatus        NotificationType = "status"
	NotifySnapshot      NotificationType = "snapshot"
)

// Notification is sent to every subscriber when the inspector state
// changes.
type Notification struct {
	Type          NotificationType     `json:"type"`
	Time          time.Time            `json:"time"`
	App           *AppView             `json:"app,omitempty"`
	Stage         *model.StageID       `json:"stage,omitempty"`
	Event         *model.Event         `json:"event,omitempty"`
	Status        string               `json:"status,omitempty"`
	Configuration *model.Configuration `json:"configuration,omitempty"`
	Snapshot      *StatusView          `json:"snapshot,omitempty"`
}

// AppView is the JSON view of one inspected application.
type AppView struct {
	ID     int             `json:"id"`
	Stages []model.StageID `json:"stages"`
}

// StatusView is the JSON view of the inspector state.
type StatusView struct {
	Apps        int                 `json:"apps"`
	Stages      int                 `json:"stages"`
	ActiveStage *model.StageID      `json:"active_stage,omitempty"`
	Selected    *model.NodeRef      `json:"selected,omitempty"`
	Popups      []model.PopupWindow `json:"popups"`
	Status      string              `json:"status,omitempty"`
	Subscribers int                 `json:"subscribers"`
}
