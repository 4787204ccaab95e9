package model

import "time"

// Configuration is the per-stage inspection configuration pushed from
// the inspector to the agent.
type Configuration struct {
	ShowBounds        bool          `json:"show_bounds"`
	ShowBaseline      bool          `json:"show_baseline"`
	ShowPopups        bool          `json:"show_popups"`
	AutoRefresh       bool          `json:"auto_refresh"`
	AnimationsEnabled bool          `json:"animations_enabled"`
	RefreshInterval   time.Duration `json:"refresh_interval"`
}

// DefaultConfiguration returns the configuration a new stage starts with.
func DefaultConfiguration() Configuration {
	return Configuration{
		ShowPopups:        true,
		AutoRefresh:       true,
		AnimationsEnabled: true,
		RefreshInterval:   500 * time.Millisecond,
	}
}

// Animation is a snapshot of one running animation.
type Animation struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Rate        float64       `json:"rate"`
	CycleCount  int           `json:"cycle_count"`
	CurrentTime time.Duration `json:"current_time"`
	Paused      bool          `json:"paused"`
}
