package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Brunux-hub/albru-engagement/internal/apierror"
	"github.com/Brunux-hub/albru-engagement/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

var leadTestColumns = []string{"lead_id", "dispatch_status", "worker_status", "assigned_worker",
	"dispatched_at", "opened_at", "last_activity_at", "version", "created_at", "meta_data"}

func TestCreateLead_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	lead := model.Lead{
		MetaData: map[string]interface{}{"source": "landing-page"},
	}

	metaDataJSON, err := json.Marshal(lead.MetaData)
	assert.NoError(t, err)

	mock.ExpectExec("INSERT INTO albru.leads").
		WithArgs(sqlmock.AnyArg(), model.DispatchNone, model.WorkerNone, metaDataJSON, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	createdLead, err := ds.CreateLead(context.Background(), lead)
	assert.NoError(t, err)
	assert.NotEmpty(t, createdLead.LeadID)
	assert.Equal(t, model.DispatchNone, createdLead.DispatchStatus)
	assert.WithinDuration(t, time.Now(), createdLead.CreatedAt, time.Second)
}

func TestCreateLead_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	lead := model.Lead{LeadID: "lead_dup"}

	mock.ExpectExec("INSERT INTO albru.leads").
		WithArgs("lead_dup", model.DispatchNone, model.WorkerNone, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.CreateLead(context.Background(), lead)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetLeadByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM albru.leads WHERE lead_id = ?").
		WithArgs("lead_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetLeadByID(context.Background(), "lead_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateLeadTransition_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	dispatched := model.DispatchDispatched
	now := time.Now()
	updates := model.LeadUpdates{DispatchStatus: &dispatched, DispatchedAt: &now}

	mock.ExpectQuery("UPDATE albru.leads SET version = version \\+ 1, dispatch_status = (.+) RETURNING").
		WithArgs("lead_1", dispatched, now).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).
			AddRow("lead_1", dispatched, model.WorkerNone, nil, now, nil, nil, 1, now, []byte(`{}`)))

	lead, err := ds.UpdateLeadTransition(context.Background(), "lead_1", nil, updates)
	assert.NoError(t, err)
	assert.Equal(t, dispatched, lead.DispatchStatus)
	assert.Equal(t, int64(1), lead.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadTransition_StaleVersionSurfacesCurrent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	closed := model.DispatchClosed
	updates := model.LeadUpdates{DispatchStatus: &closed}
	staleVersion := int64(3)
	now := time.Now()

	mock.ExpectQuery("UPDATE albru.leads SET version = version \\+ 1, dispatch_status = (.+) AND version = (.+) RETURNING").
		WithArgs("lead_1", closed, staleVersion).
		WillReturnRows(sqlmock.NewRows(leadTestColumns))
	mock.ExpectQuery("SELECT (.+) FROM albru.leads WHERE lead_id = ?").
		WithArgs("lead_1").
		WillReturnRows(sqlmock.NewRows(leadTestColumns).
			AddRow("lead_1", model.DispatchDispatched, model.WorkerNone, nil, now, nil, nil, 5, now, []byte(`{}`)))

	_, err = ds.UpdateLeadTransition(context.Background(), "lead_1", &staleVersion, updates)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)

	// The conflict carries the authoritative row a fresh GET would see.
	current, ok := apiErr.Details.(*model.Lead)
	assert.True(t, ok)
	assert.Equal(t, int64(5), current.Version)
	assert.Equal(t, model.DispatchDispatched, current.DispatchStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStaleLeads_SelectsOnlyPastThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	dispatchedAt := now.Add(-301 * time.Second)

	// The cutoff comparison must stay inclusive and fall back through
	// the activity timestamps; the boundary itself is evaluated by
	// Postgres, so the test pins the operator rather than the clock.
	mock.ExpectQuery(`SELECT (.+) FROM albru.leads WHERE \(dispatch_status = (.+) OR worker_status = (.+)\) AND COALESCE\(last_activity_at, opened_at, dispatched_at\) <= NOW\(\) - \(\$3 \* INTERVAL '1 second'\)`).
		WithArgs(model.DispatchDispatched, model.WorkerInProgress, int64(300)).
		WillReturnRows(sqlmock.NewRows(leadTestColumns).
			AddRow("lead_stale", model.DispatchDispatched, model.WorkerNone, nil, dispatchedAt, nil, nil, 2, now, []byte(`{}`)))

	leads, err := ds.GetStaleLeads(context.Background(), 300*time.Second)
	assert.NoError(t, err)
	assert.Len(t, leads, 1)
	assert.Equal(t, "lead_stale", leads[0].LeadID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadsInProgress(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	ids := []string{"lead_1", "lead_2"}
	mock.ExpectQuery("SELECT lead_id FROM albru.leads WHERE lead_id = ANY").
		WithArgs(pq.Array(ids), model.WorkerInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"lead_id"}).AddRow("lead_1"))

	inProgress, err := ds.GetLeadsInProgress(context.Background(), ids)
	assert.NoError(t, err)
	assert.True(t, inProgress["lead_1"])
	assert.False(t, inProgress["lead_2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadsInProgress_EmptyInput(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	inProgress, err := ds.GetLeadsInProgress(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, inProgress)
}

func TestTouchLeadActivity_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	at := time.Now()
	mock.ExpectExec("UPDATE albru.leads SET last_activity_at").
		WithArgs("lead_missing", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.TouchLeadActivity(context.Background(), "lead_missing", at)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
