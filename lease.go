package engagement

import (
	"context"
	"strings"
	"time"

	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/Brunux-hub/albru-engagement/internal/apierror"
	"github.com/Brunux-hub/albru-engagement/model"
)

// AcquireLease grants the holder an exclusive, time-bounded claim on a
// lead. A zero or negative duration falls back to the configured
// default. On success the grant is broadcast to the holder's channel.
func (e *Engagement) AcquireLease(ctx context.Context, leadID, holder string, durationSecs int) (*model.Lease, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	if strings.TrimSpace(holder) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "holder is required", nil)
	}
	if durationSecs <= 0 {
		configuration, err := config.Fetch()
		if err != nil {
			return nil, err
		}
		durationSecs = configuration.Engagement.LeaseDurationSecs
	}

	lease, err := e.datasource.AcquireLease(ctx, leadID, holder, time.Duration(durationSecs)*time.Second)
	if err != nil {
		return nil, err
	}
	e.bus.PublishToWorker(holder, model.EventLeaseAcquired, leadID, map[string]interface{}{
		"holder":     lease.Holder,
		"expires_at": lease.ExpiresAt,
	})
	return lease, nil
}

// ReleaseLease gives the claim on a lead back. The caller proves
// ownership with the lease token or, failing that, the holder name.
func (e *Engagement) ReleaseLease(ctx context.Context, leadID, holder, token string) error {
	if strings.TrimSpace(leadID) == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	if strings.TrimSpace(holder) == "" && strings.TrimSpace(token) == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "a holder or token is required to release a lease", nil)
	}
	if err := e.datasource.ReleaseLease(ctx, leadID, holder, token); err != nil {
		return err
	}
	e.bus.Publish(model.EventLeaseReleased, leadID, map[string]interface{}{
		"holder": holder,
	})
	return nil
}

// RenewLease pushes the expiry of a held lease further out without
// rotating its token.
func (e *Engagement) RenewLease(ctx context.Context, leadID, holder, token string, extendSecs int) (*model.Lease, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	if strings.TrimSpace(holder) == "" && strings.TrimSpace(token) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "a holder or token is required to renew a lease", nil)
	}
	if extendSecs <= 0 {
		configuration, err := config.Fetch()
		if err != nil {
			return nil, err
		}
		extendSecs = configuration.Engagement.LeaseDurationSecs
	}

	lease, err := e.datasource.RenewLease(ctx, leadID, holder, token, time.Duration(extendSecs)*time.Second)
	if err != nil {
		return nil, err
	}
	e.bus.PublishToWorker(lease.Holder, model.EventLeaseRenewed, leadID, map[string]interface{}{
		"holder":     lease.Holder,
		"expires_at": lease.ExpiresAt,
	})
	return lease, nil
}

// LeaseStatus reports who currently holds a lead, if anyone. An
// expired record counts as no lease. The token never leaves the
// coordinator through this path.
func (e *Engagement) LeaseStatus(ctx context.Context, leadID string) (*model.Lease, error) {
	if strings.TrimSpace(leadID) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "lead id is required", nil)
	}
	lease, err := e.datasource.GetLease(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lease == nil || lease.IsExpired(time.Now()) {
		return nil, nil
	}
	lease.Token = ""
	return lease, nil
}
