package model

import "time"

// Event types carried on the notification bus.
const (
	EventLeaseAcquired     = "lease.acquired"
	EventLeaseReleased     = "lease.released"
	EventLeaseRenewed      = "lease.renewed"
	EventStatusChanged     = "status.changed"
	EventDispatchTimeout   = "returned.to.dispatch.by.timeout"
	EventSessionStarted    = "session.started"
	EventSessionEnded      = "session.ended"
	EventSessionReconciled = "session.reconciled"
)

// Event is the envelope every bus message carries. Delivery is
// at-most-once; consumers must tolerate missed events and recover by
// reconnect-and-poll.
type Event struct {
	Type      string                 `json:"type"`
	LeadID    string                 `json:"lead_id"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}
