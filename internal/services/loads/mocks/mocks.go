package mocks

import (
	"context"

	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) FetchAll(ctx context.Context) ([]*models.Load, error) {
	args := m.Called(ctx)
	var out []*models.Load
	if v := args.Get(0); v != nil {
		out = v.([]*models.Load)
	}
	return out, args.Error(1)
}

func (m *MockDataSource) FetchDetail(ctx context.Context, loadID string) (*models.Load, error) {
	args := m.Called(ctx, loadID)
	var out *models.Load
	if v := args.Get(0); v != nil {
		out = v.(*models.Load)
	}
	return out, args.Error(1)
}

type MockPinValidator struct {
	mock.Mock
}

func (m *MockPinValidator) CheckPin(ctx context.Context, pin string) (bool, error) {
	args := m.Called(ctx, pin)
	return args.Bool(0), args.Error(1)
}

type MockActionGateway struct {
	mock.Mock
}

func (m *MockActionGateway) ConfirmLoads(ctx context.Context, loadIDs []string) error {
	args := m.Called(ctx, loadIDs)
	return args.Error(0)
}

func (m *MockActionGateway) RejectLoad(ctx context.Context, loadID string) error {
	args := m.Called(ctx, loadID)
	return args.Error(0)
}

func (m *MockActionGateway) ConfirmPickup(ctx context.Context, loadID string) error {
	args := m.Called(ctx, loadID)
	return args.Error(0)
}

func (m *MockActionGateway) CompleteDelivery(ctx context.Context, proof models.DeliveryProof) error {
	args := m.Called(ctx, proof)
	return args.Error(0)
}

func (m *MockActionGateway) SubmitReassignment(ctx context.Context, req models.ReassignmentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}
