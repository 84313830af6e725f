package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dispatcher track states. The dispatcher track is owned by the
// routing/assignment role; worker_started is the dispatcher-side view
// of a worker opening the lead.
const (
	DispatchNone          = "none"
	DispatchNew           = "new"
	DispatchDispatched    = "dispatched"
	DispatchWorkerStarted = "worker_started"
	DispatchUnworked      = "unworked"
	DispatchClosed        = "closed"
)

// Worker track states, owned by the individual handling the lead.
const (
	WorkerNone               = "none"
	WorkerInProgress         = "in_progress"
	WorkerFinished           = "finished"
	WorkerReturnedToDispatch = "returned_to_dispatch"
)

// Track identifiers for the status flow engine.
const (
	TrackDispatcher = "dispatcher"
	TrackWorker     = "worker"
)

// Lead is the durable record a lead engagement revolves around. Only
// the lifecycle fields are owned here; everything else on the CRM row
// belongs to the surrounding application.
type Lead struct {
	LeadID         string                 `json:"lead_id"`
	DispatchStatus string                 `json:"dispatch_status"`
	WorkerStatus   string                 `json:"worker_status"`
	AssignedWorker *string                `json:"assigned_worker"`
	DispatchedAt   *time.Time             `json:"dispatched_at"`
	OpenedAt       *time.Time             `json:"opened_at"`
	LastActivityAt *time.Time             `json:"last_activity_at"`
	Version        int64                  `json:"version"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data"`
}

// LastTouchedAt returns the most recent lifecycle timestamp following
// the COALESCE(last_activity_at, opened_at, dispatched_at) precedence
// the sweeper query uses. Nil when the lead was never dispatched.
func (l *Lead) LastTouchedAt() *time.Time {
	if l.LastActivityAt != nil {
		return l.LastActivityAt
	}
	if l.OpenedAt != nil {
		return l.OpenedAt
	}
	return l.DispatchedAt
}

// Lease is an exclusive, time-bounded claim on a lead. Expiry is a
// logical condition: a row past expires_at stays in place until it is
// overwritten by a takeover or deleted by a release.
type Lease struct {
	LeadID     string    `json:"lead_id"`
	Holder     string    `json:"holder"`
	Token      string    `json:"token"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports whether the lease is logically dead at the given
// instant.
func (l *Lease) IsExpired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}

// Matches implements the release/renew authentication rule: the stored
// token matches, or the stored holder matches (fallback for clients
// that lost their token across a reconnect).
func (l *Lease) Matches(holder, token string) bool {
	if token != "" && l.Token == token {
		return true
	}
	if holder != "" && l.Holder == holder {
		return true
	}
	return false
}

// Session is the ephemeral cache mirror of a lead actively being
// worked. It is rebuildable from the lead row at any time and carries
// no authority of its own.
type Session struct {
	LeadID     string    `json:"lead_id"`
	Worker     string    `json:"worker"`
	StartedAt  time.Time `json:"started_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// LeadUpdates carries the field mutations produced by a status
// transition. Nil fields are left untouched by the store; the schema is
// fixed and known, so nothing here is probed at query time.
type LeadUpdates struct {
	DispatchStatus *string
	WorkerStatus   *string
	AssignedWorker *string
	DispatchedAt   *time.Time
	OpenedAt       *time.Time
	LastActivityAt *time.Time
}

// IsEmpty reports whether the update would touch no columns.
func (u LeadUpdates) IsEmpty() bool {
	return u.DispatchStatus == nil && u.WorkerStatus == nil && u.AssignedWorker == nil &&
		u.DispatchedAt == nil && u.OpenedAt == nil && u.LastActivityAt == nil
}

// GenerateUUIDWithSuffix generates a UUID with a given module name as a
// prefix, producing context-specific identifiers like "lead_<uuid>".
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// GenerateLeaseToken issues an opaque, unguessable lease token. The
// token lets a holder prove ownership without re-deriving identity
// after a disconnect/reconnect cycle.
func GenerateLeaseToken() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}
