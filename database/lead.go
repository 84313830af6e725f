package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Brunux-hub/albru-engagement/internal/apierror"
	"github.com/Brunux-hub/albru-engagement/model"
)

const leadColumns = `lead_id, dispatch_status, worker_status, assigned_worker, dispatched_at, opened_at, last_activity_at, version, created_at, meta_data`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	lead := model.Lead{}
	var assignedWorker sql.NullString
	var dispatchedAt, openedAt, lastActivityAt sql.NullTime
	var metaDataJSON []byte

	err := row.Scan(&lead.LeadID, &lead.DispatchStatus, &lead.WorkerStatus, &assignedWorker,
		&dispatchedAt, &openedAt, &lastActivityAt, &lead.Version, &lead.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	if assignedWorker.Valid {
		lead.AssignedWorker = &assignedWorker.String
	}
	if dispatchedAt.Valid {
		t := dispatchedAt.Time
		lead.DispatchedAt = &t
	}
	if openedAt.Valid {
		t := openedAt.Time
		lead.OpenedAt = &t
	}
	if lastActivityAt.Valid {
		t := lastActivityAt.Time
		lead.LastActivityAt = &t
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &lead.MetaData); err != nil {
			return nil, err
		}
	}

	return &lead, nil
}

func (d Datasource) CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error) {
	metaDataJSON, err := json.Marshal(lead.MetaData)
	if err != nil {
		return model.Lead{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	if lead.LeadID == "" {
		lead.LeadID = model.GenerateUUIDWithSuffix("lead")
	}
	if lead.DispatchStatus == "" {
		lead.DispatchStatus = model.DispatchNone
	}
	if lead.WorkerStatus == "" {
		lead.WorkerStatus = model.WorkerNone
	}
	lead.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO albru.leads (lead_id, dispatch_status, worker_status, meta_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, lead.LeadID, lead.DispatchStatus, lead.WorkerStatus, metaDataJSON, lead.CreatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Lead{}, apierror.NewAPIError(apierror.ErrConflict, "Lead with this ID already exists", err)
			default:
				return model.Lead{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Lead{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create lead", err)
	}

	return lead, nil
}

func (d Datasource) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM albru.leads
		WHERE lead_id = $1
	`, leadColumns), id)

	lead, err := scanLead(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Lead not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve lead", err)
	}
	return lead, nil
}

// UpdateLeadTransition persists the field updates of one validated
// transition and bumps the lead version. When expectedVersion is
// supplied and stale the current row is returned inside a conflict
// error so the caller can decide to retry or abort.
func (d Datasource) UpdateLeadTransition(ctx context.Context, id string, expectedVersion *int64, updates model.LeadUpdates) (*model.Lead, error) {
	setClauses := []string{"version = version + 1"}
	args := []interface{}{id}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if updates.DispatchStatus != nil {
		appendSet("dispatch_status", *updates.DispatchStatus)
	}
	if updates.WorkerStatus != nil {
		appendSet("worker_status", *updates.WorkerStatus)
	}
	if updates.AssignedWorker != nil {
		appendSet("assigned_worker", *updates.AssignedWorker)
	}
	if updates.DispatchedAt != nil {
		appendSet("dispatched_at", *updates.DispatchedAt)
	}
	if updates.OpenedAt != nil {
		appendSet("opened_at", *updates.OpenedAt)
	}
	if updates.LastActivityAt != nil {
		appendSet("last_activity_at", *updates.LastActivityAt)
	}

	where := "lead_id = $1"
	if expectedVersion != nil {
		args = append(args, *expectedVersion)
		where = fmt.Sprintf("lead_id = $1 AND version = $%d", len(args))
	}

	query := fmt.Sprintf(`
		UPDATE albru.leads
		SET %s
		WHERE %s
		RETURNING %s
	`, strings.Join(setClauses, ", "), where, leadColumns)

	row := d.Conn.QueryRowContext(ctx, query, args...)
	lead, err := scanLead(row)
	if err == nil {
		return lead, nil
	}
	if err != sql.ErrNoRows {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update lead", err)
	}

	// Zero rows: either the lead is gone or the version check lost the
	// race. Fetch the current row to tell the two apart, and hand it to
	// the caller on conflict.
	current, getErr := d.GetLeadByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if expectedVersion != nil && current.Version != *expectedVersion {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Lead version is stale", current)
	}
	return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Lead update affected no rows", nil)
}

// GetStaleLeads finds leads eligible for the timeout sweep: dispatched
// or actively worked, with no lifecycle activity for at least the
// threshold. The comparison is inclusive, so a lead exactly at the
// threshold is picked up on the next tick.
func (d Datasource) GetStaleLeads(ctx context.Context, threshold time.Duration) ([]model.Lead, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM albru.leads
		WHERE (dispatch_status = $1 OR worker_status = $2)
		AND COALESCE(last_activity_at, opened_at, dispatched_at) <= NOW() - ($3 * INTERVAL '1 second')
	`, leadColumns), model.DispatchDispatched, model.WorkerInProgress, int64(threshold.Seconds()))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to query stale leads", err)
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan lead data", err)
		}
		leads = append(leads, *lead)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over leads", err)
	}

	return leads, nil
}

// GetLeadsInProgress reports which of the given lead ids are currently
// worker-in-progress. Used by session reconciliation to drop cache
// entries whose engagement ended while the cache layer was away.
func (d Datasource) GetLeadsInProgress(ctx context.Context, ids []string) (map[string]bool, error) {
	inProgress := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return inProgress, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT lead_id
		FROM albru.leads
		WHERE lead_id = ANY($1) AND worker_status = $2
	`, pq.Array(ids), model.WorkerInProgress)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to query leads in progress", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan lead id", err)
		}
		inProgress[id] = true
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over leads", err)
	}

	return inProgress, nil
}

// TouchLeadActivity writes a heartbeat through to the durable record so
// the sweeper sees the same activity the session cache does.
func (d Datasource) TouchLeadActivity(ctx context.Context, id string, at time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE albru.leads
		SET last_activity_at = $2
		WHERE lead_id = $1
	`, id, at)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record lead activity", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Lead not found", nil)
	}
	return nil
}
