// Package repository holds the inspector's authoritative view of the
// inspected applications and their stages.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/scenicview/internal/logger"
	"github.com/bryanchriswhite/scenicview/internal/model"
)

// Notifier is told about every committed change. It is called on the
// UI goroutine.
type Notifier interface {
	AppAdded(app *model.AppController)
	AppRemoved(app *model.AppController)
	StageAdded(stage *model.StageController)
	StageRemoved(stage *model.StageController)
	ConfigurationUpdated()
	SetActiveStage(stage *model.StageController)
}

// Scheduler runs functions one at a time on the UI goroutine.
type Scheduler interface {
	RunLater(fn func()) bool
	RunAndWait(fn func()) bool
}

// Repository applies app and stage diffs. Every mutation runs on the
// scheduler, commits its list change, then notifies.
type Repository struct {
	scheduler  Scheduler
	notifier   Notifier
	dispatcher model.Dispatcher
	log        *zerolog.Logger

	// apps is only touched on the scheduler.
	apps []*model.AppController
}

// New creates an empty repository. Stages are wired to dispatcher as
// they are added.
func New(scheduler Scheduler, notifier Notifier, dispatcher model.Dispatcher) *Repository {
	return &Repository{
		scheduler:  scheduler,
		notifier:   notifier,
		dispatcher: dispatcher,
		log:        logger.WithComponent("repository"),
	}
}

// Apps returns a copy of the applications, taken on the scheduler after
// every mutation scheduled before the call. It must not be called from
// the scheduler itself. A stopped scheduler yields nil.
func (r *Repository) Apps() []*model.AppController {
	var apps []*model.AppController
	r.scheduler.RunAndWait(func() {
		apps = make([]*model.AppController, len(r.apps))
		for i, app := range r.apps {
			apps[i] = app.Clone()
		}
	})
	return apps
}

func (r *Repository) appIndex(appID int) int {
	for i, app := range r.apps {
		if app.ID == appID {
			return i
		}
	}
	return -1
}

// AppAdded tracks app. An app whose id is already tracked is ignored.
func (r *Repository) AppAdded(app *model.AppController) {
	r.scheduler.RunLater(func() {
		r.dumpStatus("appAddedStart", app.ID)
		defer r.dumpStatus("appAddedStop", app.ID)

		tracked := app.Clone()

		if r.appIndex(app.ID) >= 0 {
			r.log.Debug().Int("app", app.ID).Msg("App already tracked")
			return
		}
		first := len(r.apps) == 0
		r.apps = append(r.apps, tracked)

		ctx := context.Background()
		for _, stage := range tracked.Stages {
			stage.SetEventDispatcher(ctx, r.dispatcher)
		}

		r.notifier.AppAdded(tracked)
		if first && len(tracked.Stages) > 0 {
			r.notifier.SetActiveStage(tracked.Stages[0])
		}
		r.notifier.ConfigurationUpdated()
	})
}

// AppRemoved stops tracking the app with app's id and closes it.
func (r *Repository) AppRemoved(app *model.AppController) {
	r.scheduler.RunLater(func() {
		r.dumpStatus("appRemovedStart", app.ID)
		defer r.dumpStatus("appRemovedStop", app.ID)

		i := r.appIndex(app.ID)
		if i < 0 {
			r.log.Warn().Int("app", app.ID).Msg("Removal of untracked app ignored")
			return
		}
		removed := r.apps[i]
		r.apps = append(r.apps[:i:i], r.apps[i+1:]...)

		removed.Close(context.Background())
		r.notifier.AppRemoved(removed)
	})
}

// StageAdded appends stage to its application.
func (r *Repository) StageAdded(stage *model.StageController) {
	r.scheduler.RunLater(func() {
		r.dumpStatus("stageAddedStart", stage.ID.StageID)
		defer r.dumpStatus("stageAddedStop", stage.ID.StageID)

		i := r.appIndex(stage.ID.AppID)
		if i < 0 {
			r.log.Warn().Str("stage", stage.ID.String()).Msg("Stage added to untracked app ignored")
			return
		}
		if _, exists := r.apps[i].Stage(stage.ID.StageID); exists {
			r.log.Debug().Str("stage", stage.ID.String()).Msg("Stage already tracked")
			return
		}
		r.apps[i].AddStage(stage)

		stage.SetEventDispatcher(context.Background(), r.dispatcher)
		r.notifier.StageAdded(stage)
		r.notifier.ConfigurationUpdated()
	})
}

// StageRemoved removes stage from its application and closes it.
func (r *Repository) StageRemoved(stage *model.StageController) {
	r.scheduler.RunLater(func() {
		r.dumpStatus("stageRemovedStart", stage.ID.StageID)
		defer r.dumpStatus("stageRemovedStop", stage.ID.StageID)

		i := r.appIndex(stage.ID.AppID)
		if i < 0 {
			r.log.Warn().Str("stage", stage.ID.String()).Msg("Stage removed from untracked app ignored")
			return
		}
		removed, ok := r.apps[i].RemoveStage(stage.ID.StageID)
		if !ok {
			r.log.Warn().Str("stage", stage.ID.String()).Msg("Removal of untracked stage ignored")
			return
		}

		removed.Close(context.Background())
		r.notifier.StageRemoved(removed)
	})
}

func (r *Repository) dumpStatus(operation string, id int) {
	if r.log.GetLevel() > zerolog.DebugLevel || zerolog.GlobalLevel() > zerolog.DebugLevel {
		return
	}

	var b strings.Builder
	for i, app := range r.apps {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d:[", app.ID)
		for j, s := range app.Stages {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%d", s.ID.StageID)
		}
		b.WriteString("]")
	}

	r.log.Debug().Str("operation", operation).Int("id", id).Str("apps", b.String()).Msg("Status")
}
