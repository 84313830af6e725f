package mocks

import (
	"context"
	"time"

	"github.com/Brunux-hub/albru-engagement/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Lead methods

func (m *MockDataSource) CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error) {
	args := m.Called(ctx, lead)
	return args.Get(0).(model.Lead), args.Error(1)
}

func (m *MockDataSource) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *MockDataSource) UpdateLeadTransition(ctx context.Context, id string, expectedVersion *int64, updates model.LeadUpdates) (*model.Lead, error) {
	args := m.Called(ctx, id, expectedVersion, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *MockDataSource) GetStaleLeads(ctx context.Context, threshold time.Duration) ([]model.Lead, error) {
	args := m.Called(ctx, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *MockDataSource) GetLeadsInProgress(ctx context.Context, ids []string) (map[string]bool, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockDataSource) TouchLeadActivity(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// Lease methods

func (m *MockDataSource) AcquireLease(ctx context.Context, leadID, holder string, duration time.Duration) (*model.Lease, error) {
	args := m.Called(ctx, leadID, holder, duration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lease), args.Error(1)
}

func (m *MockDataSource) ReleaseLease(ctx context.Context, leadID, holder, token string) error {
	args := m.Called(ctx, leadID, holder, token)
	return args.Error(0)
}

func (m *MockDataSource) RenewLease(ctx context.Context, leadID, holder, token string, extend time.Duration) (*model.Lease, error) {
	args := m.Called(ctx, leadID, holder, token, extend)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lease), args.Error(1)
}

func (m *MockDataSource) GetLease(ctx context.Context, leadID string) (*model.Lease, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lease), args.Error(1)
}
