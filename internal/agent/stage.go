package agent

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/mirror"
	"github.com/bryanchriswhite/scenicview/internal/model"
	"github.com/bryanchriswhite/scenicview/internal/remote"
	"github.com/bryanchriswhite/scenicview/internal/window"
)

const defaultRefreshInterval = 500 * time.Millisecond

// stage is the agent-side state of one inspected top-level window.
type stage struct {
	id     model.StageID
	window uint32
	log    *zerolog.Logger

	mu       sync.Mutex
	config   model.Configuration
	sender   remote.Connector
	tracker  *window.Tracker
	popups   []model.PopupWindow
	selected *Node
	mirror   *mirror.Tracker

	refreshStop chan struct{}
	refreshDone chan struct{}
}

func newStage(id model.StageID) *stage {
	return &stage{
		id:     id,
		window: uint32(id.StageID),
		config: model.DefaultConfiguration(),
		log:    logger.WithStage("agent-stage", id.String()),
	}
}

func (s *stage) refreshInterval() time.Duration {
	if s.config.RefreshInterval > 0 {
		return s.config.RefreshInterval
	}
	return defaultRefreshInterval
}

// startRefresh runs refresh on a ticker until stopRefresh. Callers
// hold s.mu.
func (s *stage) startRefresh(refresh func()) {
	if s.refreshStop != nil {
		return
	}
	stopChan := make(chan struct{})
	done := make(chan struct{})
	s.refreshStop, s.refreshDone = stopChan, done

	interval := s.refreshInterval()
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()
	s.log.Debug().Dur("interval", interval).Msg("Node refresh started")
}

// stopRefresh returns the channel closed once the refresh loop exited,
// or nil when none was running. Callers hold s.mu and must wait on the
// channel only after releasing it.
func (s *stage) stopRefresh() chan struct{} {
	if s.refreshStop == nil {
		return nil
	}
	close(s.refreshStop)
	done := s.refreshDone
	s.refreshStop, s.refreshDone = nil, nil
	return done
}

func wait(done chan struct{}) {
	if done != nil {
		<-done
	}
}

// takeTracker detaches the topology tracker; the caller stops it
// outside the lock.
func (s *stage) takeTracker() *window.Tracker {
	t := s.tracker
	s.tracker = nil
	return t
}
