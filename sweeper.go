package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SweeperHandle owns the background timeout sweep. Callers hold the
// handle; there is no package-level sweeper state, so several handles
// can coexist in tests or in processes that shard the work.
type SweeperHandle struct {
	engagement *Engagement
	interval   time.Duration
	threshold  time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewSweeper builds a sweeper from the loaded configuration.
func (e *Engagement) NewSweeper() (*SweeperHandle, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return &SweeperHandle{
		engagement: e,
		interval:   time.Duration(configuration.Engagement.SweepIntervalMs) * time.Millisecond,
		threshold:  time.Duration(configuration.Engagement.TimeoutSecs) * time.Second,
	}, nil
}

// Start launches the sweep loop. Starting an already running sweeper
// is a logged no-op.
func (h *SweeperHandle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		logrus.Warn("timeout sweeper already running; ignoring start")
		return
	}
	h.running = true
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.run(h.stop, h.done)
	logrus.Infof("timeout sweeper started: interval %s, inactivity threshold %s", h.interval, h.threshold)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
// Stopping a sweeper that is not running is a logged no-op.
func (h *SweeperHandle) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		logrus.Warn("timeout sweeper not running; ignoring stop")
		return
	}
	h.running = false
	stop := h.stop
	done := h.done
	h.mu.Unlock()

	close(stop)
	<-done
	logrus.Info("timeout sweeper stopped")
}

// IsRunning reports whether the loop is active.
func (h *SweeperHandle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *SweeperHandle) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := h.SweepOnce(context.Background()); err != nil {
				logrus.Errorf("timeout sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce runs a single sweep cycle: reconcile the session cache,
// find leads whose last activity is past the threshold, and return
// each one to the dispatch pool. One lead failing does not stop the
// rest of the batch. It returns the number of leads reverted.
func (h *SweeperHandle) SweepOnce(ctx context.Context) (int, error) {
	if _, err := h.engagement.SyncSessions(ctx); err != nil {
		logrus.Warnf("session reconciliation during sweep failed: %v", err)
	}

	stale, err := h.engagement.datasource.GetStaleLeads(ctx, h.threshold)
	if err != nil {
		return 0, errors.Wrap(err, "fetching stale leads")
	}

	reverted := 0
	for i := range stale {
		lead := stale[i]
		if err := h.revertStaleLead(ctx, &lead); err != nil {
			logrus.Errorf("reverting stale lead %s failed: %v", lead.LeadID, err)
			continue
		}
		reverted++
	}
	return reverted, nil
}

// revertStaleLead sends a timed-out lead back through the normal
// transition path. A lead a worker abandoned mid-work goes back on the
// worker track; a lead that was dispatched but never opened goes back
// on the dispatcher track.
func (h *SweeperHandle) revertStaleLead(ctx context.Context, lead *model.Lead) error {
	change := StatusChange{
		LeadID:  lead.LeadID,
		Track:   model.TrackDispatcher,
		Comment: "inactivity timeout",
	}
	if lead.WorkerStatus == model.WorkerInProgress {
		change.Track = model.TrackWorker
		change.Requested = model.WorkerReturnedToDispatch
	} else {
		change.Requested = model.DispatchUnworked
	}
	version := lead.Version
	change.ExpectedVersion = &version

	if _, _, err := h.engagement.UpdateStatus(ctx, change); err != nil {
		return errors.Wrapf(err, "applying %s/%s", change.Track, change.Requested)
	}

	inactivity := h.threshold
	if touched := lead.LastTouchedAt(); touched != nil {
		inactivity = time.Since(*touched)
	}
	h.engagement.bus.Publish(model.EventDispatchTimeout, lead.LeadID, map[string]interface{}{
		"track":              change.Track,
		"status":             change.Requested,
		"inactivity_seconds": int(inactivity.Seconds()),
	})
	return nil
}
