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

const sessionKeyPrefix = "session:"

func sessionKey(leadID string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, leadID)
}

func sessionTTL() time.Duration {
	configuration, err := config.Fetch()
	if err != nil {
		return time.Duration(config.DefaultSessionTTLSecs) * time.Second
	}
	return time.Duration(configuration.Engagement.SessionTTLSecs) * time.Second
}

// StartSession records that a worker has an open working session on a
// lead. The entry lives in the cache with a TTL; the datasource row
// remains the source of truth for who is working what.
func (e *Engagement) StartSession(ctx context.Context, leadID, worker string) (*model.Session, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	if strings.TrimSpace(worker) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "worker is required", nil)
	}
	now := time.Now()
	session := &model.Session{
		LeadID:     leadID,
		Worker:     worker,
		StartedAt:  now,
		LastSeenAt: now,
	}
	if err := e.cache.Set(ctx, sessionKey(leadID), session, sessionTTL()); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to start session", err)
	}
	e.bus.Publish(model.EventSessionStarted, leadID, map[string]interface{}{
		"worker": worker,
	})
	return session, nil
}

// EndSession drops the session entry for a lead. Ending a session that
// does not exist is not an error; the outcome is carried on the event
// so consumers know why the session closed.
func (e *Engagement) EndSession(ctx context.Context, leadID, worker, outcome string) error {
	if strings.TrimSpace(leadID) == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	if err := e.cache.Delete(ctx, sessionKey(leadID)); err != nil {
		logrus.Warnf("deleting session for lead %s failed: %v", leadID, err)
	}
	e.bus.Publish(model.EventSessionEnded, leadID, map[string]interface{}{
		"worker":  worker,
		"outcome": outcome,
	})
	return nil
}

// UpdateActivity is the heartbeat: it refreshes the session's lastSeen
// and TTL and writes the activity timestamp through to the lead row so
// the timeout sweeper sees it. A heartbeat for a lead with no cached
// session recreates the entry rather than failing.
func (e *Engagement) UpdateActivity(ctx context.Context, leadID, worker string) (*model.Session, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	now := time.Now()

	var session model.Session
	if err := e.cache.Get(ctx, sessionKey(leadID), &session); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to read session", err)
	}
	if session.LeadID == "" {
		session = model.Session{
			LeadID:    leadID,
			Worker:    worker,
			StartedAt: now,
		}
	}
	if worker != "" {
		session.Worker = worker
	}
	session.LastSeenAt = now

	if err := e.cache.Set(ctx, sessionKey(leadID), &session, sessionTTL()); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to refresh session", err)
	}
	if err := e.datasource.TouchLeadActivity(ctx, leadID, now); err != nil {
		return nil, err
	}
	return &session, nil
}

// SessionStatus returns the cached session for a lead, or nil when no
// session is live.
func (e *Engagement) SessionStatus(ctx context.Context, leadID string) (*model.Session, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	var session model.Session
	if err := e.cache.Get(ctx, sessionKey(leadID), &session); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to read session", err)
	}
	if session.LeadID == "" {
		return nil, nil
	}
	return &session, nil
}

// RestoreSession rebuilds a session entry from the authoritative lead
// row after a cache loss. Only a lead whose worker track is in
// progress can be restored.
func (e *Engagement) RestoreSession(ctx context.Context, leadID string) (*model.Session, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	lead, err := e.datasource.GetLeadByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.WorkerStatus != model.WorkerInProgress || lead.AssignedWorker == nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("lead %s has no restorable session", leadID), map[string]interface{}{
			"worker_status": lead.WorkerStatus,
		})
	}

	now := time.Now()
	startedAt := now
	if lead.OpenedAt != nil {
		startedAt = *lead.OpenedAt
	}
	lastSeen := now
	if lead.LastActivityAt != nil {
		lastSeen = *lead.LastActivityAt
	}
	session := &model.Session{
		LeadID:     leadID,
		Worker:     *lead.AssignedWorker,
		StartedAt:  startedAt,
		LastSeenAt: lastSeen,
	}
	if err := e.cache.Set(ctx, sessionKey(leadID), session, sessionTTL()); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to restore session", err)
	}
	e.bus.Publish(model.EventSessionStarted, leadID, map[string]interface{}{
		"worker":   session.Worker,
		"restored": true,
	})
	return session, nil
}

// ActiveSessions lists every live session entry.
func (e *Engagement) ActiveSessions(ctx context.Context) ([]model.Session, error) {
	keys, err := e.cache.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to list sessions", err)
	}
	sessions := make([]model.Session, 0, len(keys))
	for _, key := range keys {
		var session model.Session
		if err := e.cache.Get(ctx, key, &session); err != nil {
			logrus.Warnf("reading session %s failed: %v", key, err)
			continue
		}
		if session.LeadID == "" {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// SyncSessions reconciles the cache against the datasource: any cached
// session whose lead is no longer in progress is dropped. It returns
// the number of entries removed.
func (e *Engagement) SyncSessions(ctx context.Context) (int, error) {
	sessions, err := e.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.LeadID)
	}
	inProgress, err := e.datasource.GetLeadsInProgress(ctx, ids)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, session := range sessions {
		if inProgress[session.LeadID] {
			continue
		}
		if err := e.cache.Delete(ctx, sessionKey(session.LeadID)); err != nil {
			logrus.Warnf("reconciling session for lead %s failed: %v", session.LeadID, err)
			continue
		}
		removed++
		e.bus.Publish(model.EventSessionReconciled, session.LeadID, map[string]interface{}{
			"worker": session.Worker,
		})
	}
	return removed, nil
}
