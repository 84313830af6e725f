package engagement

import (
	"context"
	"fmt"

	"github.com/Brunux-hub/albru-engagement/cache"
	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/database"
	redis_db "github.com/Brunux-hub/albru-engagement/internal/redis-db"
	"github.com/Brunux-hub/albru-engagement/model"
)

// Engagement is the engagement lifecycle coordinator: lease-based
// mutual exclusion over leads, the two-track status flow, the session
// cache and the notification bus. The datasource is the single source
// of truth; the cache is a disposable accelerator.
type Engagement struct {
	datasource database.IDataSource
	cache      cache.Cache
	bus        *Bus
}

// NewEngagement initializes the coordinator with the provided database
// datasource, dialing Redis for the session cache and the bus from the
// loaded configuration.
func NewEngagement(db database.IDataSource) (*Engagement, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	sessionCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	return &Engagement{
		datasource: db,
		cache:      sessionCache,
		bus:        NewBus(redisClient.Client()),
	}, nil
}

// Bus exposes the notification bus, mainly so callers can subscribe.
func (e *Engagement) Bus() *Bus {
	return e.bus
}

// CreateLead registers a lead record with the coordinator. The
// surrounding CRM owns everything beyond the lifecycle fields.
func (e *Engagement) CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error) {
	return e.datasource.CreateLead(ctx, lead)
}

// GetLead returns the authoritative lead row.
func (e *Engagement) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return e.datasource.GetLeadByID(ctx, id)
}
