package database

import (
	"context"
	"time"

	"github.com/Brunux-hub/albru-engagement/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	lead  // Interface for lead-related operations
	lease // Interface for lease-related operations
}

// lead defines methods for handling lead lifecycle fields.
type lead interface {
	CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error)                                               // Creates a new lead record
	GetLeadByID(ctx context.Context, id string) (*model.Lead, error)                                                   // Retrieves a lead by ID
	UpdateLeadTransition(ctx context.Context, id string, expectedVersion *int64, updates model.LeadUpdates) (*model.Lead, error) // Applies transition field updates under optimistic concurrency
	GetStaleLeads(ctx context.Context, threshold time.Duration) ([]model.Lead, error)                                  // Finds leads inactive past the threshold
	GetLeadsInProgress(ctx context.Context, ids []string) (map[string]bool, error)                                     // Reports which of the given leads are worker-in-progress
	TouchLeadActivity(ctx context.Context, id string, at time.Time) error                                              // Write-through of a heartbeat to last_activity_at
}

// lease defines methods for handling exclusive lead claims.
type lease interface {
	AcquireLease(ctx context.Context, leadID, holder string, duration time.Duration) (*model.Lease, error) // Acquires or takes over the lease for a lead
	ReleaseLease(ctx context.Context, leadID, holder, token string) error                                  // Releases a lease by token or holder match
	RenewLease(ctx context.Context, leadID, holder, token string, extend time.Duration) (*model.Lease, error) // Extends a live lease without rotating the token
	GetLease(ctx context.Context, leadID string) (*model.Lease, error)                                     // Reads the lease row, nil when absent
}
