package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/Brunux-hub/albru-engagement/internal/apierror"
	"github.com/Brunux-hub/albru-engagement/model"
)

// AcquireLease grants or takes over the exclusive claim on a lead. The
// read-modify-write runs under a row lock so two concurrent acquires
// for the same lead serialize; exactly one wins. A conflict is returned
// only when a live lease is held by a different holder; expired rows
// and same-holder rows are overwritten with a fresh token.
func (d Datasource) AcquireLease(ctx context.Context, leadID, holder string, duration time.Duration) (*model.Lease, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin lease transaction", err)
	}

	now := time.Now()
	row := tx.QueryRowContext(ctx, `
		SELECT holder, token, acquired_at, expires_at
		FROM albru.leases
		WHERE lead_id = $1
		FOR UPDATE
	`, leadID)

	existing := model.Lease{LeadID: leadID}
	err = row.Scan(&existing.Holder, &existing.Token, &existing.AcquiredAt, &existing.ExpiresAt)
	switch {
	case err == sql.ErrNoRows:
		lease := model.Lease{
			LeadID:     leadID,
			Holder:     holder,
			Token:      model.GenerateLeaseToken(),
			AcquiredAt: now,
			ExpiresAt:  now.Add(duration),
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO albru.leases (lead_id, holder, token, acquired_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
		`, lease.LeadID, lease.Holder, lease.Token, lease.AcquiredAt, lease.ExpiresAt)
		if err != nil {
			_ = tx.Rollback()
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create lease", err)
		}
		if err = tx.Commit(); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit lease", err)
		}
		return &lease, nil

	case err != nil:
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read lease", err)
	}

	if !existing.IsExpired(now) && existing.Holder != holder {
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Lease is held by another worker", map[string]interface{}{
			"owner":      existing.Holder,
			"expires_at": existing.ExpiresAt,
		})
	}

	// Renewal by the same holder or takeover of an expired row: the row
	// is overwritten in place and a fresh token issued either way.
	lease := model.Lease{
		LeadID:     leadID,
		Holder:     holder,
		Token:      model.GenerateLeaseToken(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(duration),
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE albru.leases
		SET holder = $2, token = $3, acquired_at = $4, expires_at = $5
		WHERE lead_id = $1
	`, lease.LeadID, lease.Holder, lease.Token, lease.AcquiredAt, lease.ExpiresAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to overwrite lease", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit lease", err)
	}
	return &lease, nil
}

// ReleaseLease deletes the lease row when the caller proves ownership by
// token or by holder identity.
func (d Datasource) ReleaseLease(ctx context.Context, leadID, holder, token string) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin lease transaction", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT holder, token, acquired_at, expires_at
		FROM albru.leases
		WHERE lead_id = $1
		FOR UPDATE
	`, leadID)

	existing := model.Lease{LeadID: leadID}
	err = row.Scan(&existing.Holder, &existing.Token, &existing.AcquiredAt, &existing.ExpiresAt)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return apierror.NewAPIError(apierror.ErrNotFound, "No lease exists for this lead", err)
	}
	if err != nil {
		_ = tx.Rollback()
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read lease", err)
	}

	if !existing.Matches(holder, token) {
		_ = tx.Rollback()
		return apierror.NewAPIError(apierror.ErrForbidden, "Neither token nor holder matches the lease", nil)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM albru.leases WHERE lead_id = $1`, leadID)
	if err != nil {
		_ = tx.Rollback()
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete lease", err)
	}
	if err = tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit lease release", err)
	}
	return nil
}

// RenewLease extends a live lease from now. The matching rule is the
// same as release; the token is not rotated.
func (d Datasource) RenewLease(ctx context.Context, leadID, holder, token string, extend time.Duration) (*model.Lease, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin lease transaction", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT holder, token, acquired_at, expires_at
		FROM albru.leases
		WHERE lead_id = $1
		FOR UPDATE
	`, leadID)

	existing := model.Lease{LeadID: leadID}
	err = row.Scan(&existing.Holder, &existing.Token, &existing.AcquiredAt, &existing.ExpiresAt)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "No lease exists for this lead", err)
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read lease", err)
	}

	if !existing.Matches(holder, token) {
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Neither token nor holder matches the lease", nil)
	}

	existing.ExpiresAt = time.Now().Add(extend)
	_, err = tx.ExecContext(ctx, `
		UPDATE albru.leases
		SET expires_at = $2
		WHERE lead_id = $1
	`, leadID, existing.ExpiresAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to extend lease", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit lease renewal", err)
	}
	return &existing, nil
}

// GetLease reads the lease row without mutating it. Returns nil when no
// row exists; an expired row is returned as-is, expiry being a logical
// condition evaluated by the caller.
func (d Datasource) GetLease(ctx context.Context, leadID string) (*model.Lease, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT holder, token, acquired_at, expires_at
		FROM albru.leases
		WHERE lead_id = $1
	`, leadID)

	lease := model.Lease{LeadID: leadID}
	err := row.Scan(&lease.Holder, &lease.Token, &lease.AcquiredAt, &lease.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read lease", err)
	}
	return &lease, nil
}
