package model

import (
	"github.com/Brunux-hub/albru-engagement/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateLead registers a lead with the coordinator. The lead id is
// optional; one is generated when absent.
type CreateLead struct {
	LeadID   string                 `json:"lead_id"`
	MetaData map[string]interface{} `json:"meta_data"`
}

func (l *CreateLead) ValidateCreateLead() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.LeadID, validation.Length(0, 64)),
	)
}

func (l *CreateLead) ToLead() model.Lead {
	leadID := l.LeadID
	if leadID == "" {
		leadID = model.GenerateUUIDWithSuffix("lead")
	}
	return model.Lead{
		LeadID:   leadID,
		MetaData: l.MetaData,
	}
}

// AcquireLease claims a lead for a holder. DurationSecs of zero takes
// the configured default.
type AcquireLease struct {
	Holder       string `json:"holder"`
	DurationSecs int    `json:"duration_secs"`
}

func (a *AcquireLease) ValidateAcquireLease() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Holder, validation.Required),
		validation.Field(&a.DurationSecs, validation.Min(0)),
	)
}

// ReleaseLease returns a claim. Ownership is proven by token or
// holder name.
type ReleaseLease struct {
	Holder string `json:"holder"`
	Token  string `json:"token"`
}

func (r *ReleaseLease) ValidateReleaseLease() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Holder, validation.Required.When(r.Token == "").Error("either holder or token is required")),
	)
}

// RenewLease extends a held claim.
type RenewLease struct {
	Holder     string `json:"holder"`
	Token      string `json:"token"`
	ExtendSecs int    `json:"extend_secs"`
}

func (r *RenewLease) ValidateRenewLease() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Holder, validation.Required.When(r.Token == "").Error("either holder or token is required")),
		validation.Field(&r.ExtendSecs, validation.Min(0)),
	)
}

// UpdateStatus moves a lead along one of its tracks. ExpectedVersion,
// when present, makes the transition conditional.
type UpdateStatus struct {
	Track           string `json:"track"`
	Status          string `json:"status"`
	Worker          string `json:"worker"`
	Category        string `json:"category"`
	Comment         string `json:"comment"`
	ExpectedVersion *int64 `json:"expected_version"`
}

func (u *UpdateStatus) ValidateUpdateStatus() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Track, validation.Required, validation.In(model.TrackDispatcher, model.TrackWorker)),
		validation.Field(&u.Status, validation.Required),
	)
}

// StartSession opens a working session for a worker on a lead.
type StartSession struct {
	Worker string `json:"worker"`
}

func (s *StartSession) ValidateStartSession() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Worker, validation.Required),
	)
}

// EndSession closes a working session.
type EndSession struct {
	Worker  string `json:"worker"`
	Outcome string `json:"outcome"`
}

// Heartbeat refreshes a session's activity.
type Heartbeat struct {
	Worker string `json:"worker"`
}
