// Package model holds the types shared by the inspector and the agent:
// stage identities, controllers, configuration, animations, window
// descriptions and the events flowing from the agent to the inspector.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// StageID addresses one stage of one application. It is immutable and
// unique for the lifetime of a connection.
type StageID struct {
	AppID   int `json:"app_id"`
	StageID int `json:"stage_id"`
}

func (s StageID) String() string {
	return fmt.Sprintf("%d:%d", s.AppID, s.StageID)
}

// ParseStageID parses the "app:stage" form produced by String.
func ParseStageID(s string) (StageID, error) {
	app, stage, ok := strings.Cut(s, ":")
	if !ok {
		return StageID{}, fmt.Errorf("invalid stage id %q", s)
	}
	appID, err := strconv.Atoi(app)
	if err != nil {
		return StageID{}, fmt.Errorf("invalid app id in %q: %w", s, err)
	}
	stageID, err := strconv.Atoi(stage)
	if err != nil {
		return StageID{}, fmt.Errorf("invalid stage id in %q: %w", s, err)
	}
	return StageID{AppID: appID, StageID: stageID}, nil
}

// NodeRef identifies a node inside a stage.
type NodeRef struct {
	ID   uint32 `json:"id"`
	Name string `json:"name,omitempty"`
}
