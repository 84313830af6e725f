package engagement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/internal/apierror"
	"github.com/Brunux-hub/albru-engagement/model"
	"github.com/sirupsen/logrus"
)

// Side-effect actions produced by a transition. The coordinator
// executes them after the row update commits.
const (
	ActionStartDispatchTimeout  = "start_dispatch_timeout"
	ActionMarkUnworked          = "mark_unworked"
	ActionMarkClosed            = "mark_closed"
	ActionMarkFinalized         = "mark_finalized"
	ActionSendToDownstreamQueue = "send_to_downstream_queue"
	ActionStartSession          = "start_session"
	ActionEndSession            = "end_session"
)

// dispatcherTransitions is the adjacency table for the dispatcher
// track. A lead with no dispatcher history yet may enter at any of the
// states reachable from "none".
var dispatcherTransitions = map[string][]string{
	model.DispatchNone:          {model.DispatchNew, model.DispatchDispatched, model.DispatchUnworked, model.DispatchClosed},
	model.DispatchNew:           {model.DispatchDispatched, model.DispatchUnworked},
	model.DispatchDispatched:    {model.DispatchWorkerStarted, model.DispatchUnworked},
	model.DispatchWorkerStarted: {model.DispatchUnworked, model.DispatchClosed},
	model.DispatchUnworked:      {model.DispatchDispatched},
	model.DispatchClosed:        {model.DispatchClosed},
}

// workerTransitions is the adjacency table for the worker track.
// in_progress self-loops so heartbeat-style updates stay legal, and
// finished is terminal apart from its own self-loop.
var workerTransitions = map[string][]string{
	model.WorkerNone:               {model.WorkerInProgress, model.WorkerFinished, model.WorkerReturnedToDispatch},
	model.WorkerInProgress:         {model.WorkerInProgress, model.WorkerFinished, model.WorkerReturnedToDispatch},
	model.WorkerFinished:           {model.WorkerFinished},
	model.WorkerReturnedToDispatch: {model.WorkerInProgress},
}

func transitionTable(track string) (map[string][]string, bool) {
	switch track {
	case model.TrackDispatcher:
		return dispatcherTransitions, true
	case model.TrackWorker:
		return workerTransitions, true
	default:
		return nil, false
	}
}

// ValidateTransition reports whether moving from current to requested
// on the given track is legal. It returns an empty string when the
// move is allowed and a human-readable reason when it is not. Current
// and requested are trimmed. A lead with no history on the track yet
// (empty current) may enter at any state the track knows, except the
// "none" placeholder itself.
func ValidateTransition(track, current, requested string) string {
	table, ok := transitionTable(track)
	if !ok {
		return fmt.Sprintf("unknown track '%s'", track)
	}
	current = strings.TrimSpace(current)
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "requested status is required"
	}
	if current == "" {
		if requested != noneFor(track) && knownState(table, requested) {
			return ""
		}
		return fmt.Sprintf("cannot enter %s track at '%s'", track, requested)
	}
	allowed, known := table[current]
	if !known {
		return fmt.Sprintf("unknown %s status '%s'", track, current)
	}
	for _, next := range allowed {
		if next == requested {
			return ""
		}
	}
	if requested != noneFor(track) && !knownState(table, requested) {
		return fmt.Sprintf("unknown %s status '%s'", track, requested)
	}
	return fmt.Sprintf("cannot move %s track from '%s' to '%s'", track, current, requested)
}

// knownState reports whether a state appears anywhere in the track's
// table, as an adjacency row or as a target.
func knownState(table map[string][]string, state string) bool {
	if _, ok := table[state]; ok {
		return true
	}
	for _, targets := range table {
		for _, target := range targets {
			if target == state {
				return true
			}
		}
	}
	return false
}

func noneFor(track string) string {
	if track == model.TrackWorker {
		return model.WorkerNone
	}
	return model.DispatchNone
}

// TransitionMeta carries the caller-supplied context a transition may
// react to.
type TransitionMeta struct {
	Worker             string
	Category           string
	Comment            string
	DownstreamCategory string
}

// TransitionResult is the pure outcome of applying a transition:
// the field updates to persist and the side-effect actions to run
// once the update commits.
type TransitionResult struct {
	Updates model.LeadUpdates
	Actions []string
}

// ApplyRules computes the row updates and follow-up actions for a
// validated transition. It never touches storage and only ever writes
// the track it was asked about.
func ApplyRules(lead *model.Lead, track, requested string, meta TransitionMeta) TransitionResult {
	now := time.Now()
	result := TransitionResult{}
	requested = strings.TrimSpace(requested)

	if track == model.TrackDispatcher {
		result.Updates.DispatchStatus = &requested
		switch requested {
		case model.DispatchDispatched:
			result.Updates.DispatchedAt = &now
			result.Actions = append(result.Actions, ActionStartDispatchTimeout)
		case model.DispatchWorkerStarted:
			if lead.OpenedAt == nil {
				result.Updates.OpenedAt = &now
			}
		case model.DispatchUnworked:
			result.Actions = append(result.Actions, ActionMarkUnworked)
		case model.DispatchClosed:
			result.Actions = append(result.Actions, ActionMarkClosed)
		}
		return result
	}

	result.Updates.WorkerStatus = &requested
	switch requested {
	case model.WorkerInProgress:
		if meta.Worker != "" {
			worker := meta.Worker
			result.Updates.AssignedWorker = &worker
		}
		if lead.OpenedAt == nil {
			result.Updates.OpenedAt = &now
		}
		result.Updates.LastActivityAt = &now
		result.Actions = append(result.Actions, ActionStartSession)
	case model.WorkerFinished:
		result.Actions = append(result.Actions, ActionMarkFinalized, ActionEndSession)
		if meta.Category != "" && meta.Category == meta.DownstreamCategory {
			result.Actions = append(result.Actions, ActionSendToDownstreamQueue)
		}
	case model.WorkerReturnedToDispatch:
		result.Actions = append(result.Actions, ActionEndSession)
	}
	return result
}

// StatusChange is a request to move a lead along one of its tracks.
// ExpectedVersion, when set, makes the update conditional on the row
// still being at that version.
type StatusChange struct {
	LeadID          string
	Track           string
	Requested       string
	Worker          string
	Category        string
	Comment         string
	ExpectedVersion *int64
}

// UpdateStatus validates and applies a status transition, persists it
// with optimistic concurrency, runs the resulting session side effects
// and broadcasts the change. It returns the updated row together with
// the actions that fired.
func (e *Engagement) UpdateStatus(ctx context.Context, change StatusChange) (*model.Lead, []string, error) {
	if strings.TrimSpace(change.LeadID) == "" {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	lead, err := e.datasource.GetLeadByID(ctx, change.LeadID)
	if err != nil {
		return nil, nil, err
	}

	current := lead.DispatchStatus
	if change.Track == model.TrackWorker {
		current = lead.WorkerStatus
	}
	if reason := ValidateTransition(change.Track, current, change.Requested); reason != "" {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, reason, map[string]interface{}{
			"track":   change.Track,
			"current": current,
		})
	}
	// in_progress always has an accountable worker: either on the
	// request or already assigned on the row
	if change.Track == model.TrackWorker && strings.TrimSpace(change.Requested) == model.WorkerInProgress &&
		strings.TrimSpace(change.Worker) == "" && lead.AssignedWorker == nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput, "a worker is required to move a lead in progress", nil)
	}

	configuration, err := config.Fetch()
	if err != nil {
		return nil, nil, err
	}
	result := ApplyRules(lead, change.Track, change.Requested, TransitionMeta{
		Worker:             change.Worker,
		Category:           change.Category,
		Comment:            change.Comment,
		DownstreamCategory: configuration.Engagement.DownstreamCategory,
	})

	updated, err := e.datasource.UpdateLeadTransition(ctx, change.LeadID, change.ExpectedVersion, result.Updates)
	if err != nil {
		return nil, nil, err
	}

	e.runTransitionActions(ctx, updated, change, result.Actions)
	e.bus.Publish(model.EventStatusChanged, updated.LeadID, map[string]interface{}{
		"track":    change.Track,
		"previous": current,
		"status":   change.Requested,
		"worker":   change.Worker,
		"category": change.Category,
		"comment":  change.Comment,
		"version":  updated.Version,
	})
	return updated, result.Actions, nil
}

// runTransitionActions executes session side effects. Failures here
// never fail the transition itself; the row update already committed.
func (e *Engagement) runTransitionActions(ctx context.Context, lead *model.Lead, change StatusChange, actions []string) {
	for _, action := range actions {
		switch action {
		case ActionStartSession:
			worker := change.Worker
			if worker == "" && lead.AssignedWorker != nil {
				worker = *lead.AssignedWorker
			}
			if _, err := e.StartSession(ctx, lead.LeadID, worker); err != nil {
				logrus.Warnf("starting session for lead %s failed: %v", lead.LeadID, err)
			}
		case ActionEndSession:
			if err := e.EndSession(ctx, lead.LeadID, change.Worker, change.Requested); err != nil {
				logrus.Warnf("ending session for lead %s failed: %v", lead.LeadID, err)
			}
		case ActionSendToDownstreamQueue:
			e.bus.PublishToRole("downstream", model.EventStatusChanged, lead.LeadID, map[string]interface{}{
				"category": change.Category,
				"status":   change.Requested,
			})
		}
	}
}
