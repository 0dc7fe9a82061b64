package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.OrderHistory), args.Error(1)
}

func (m *mockOrderRepo) Deliver(ctx context.Context, orderID, freelanceID uuid.UUID, now time.Time) (*models.Order, error) {
	args := m.Called(ctx, orderID, freelanceID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) RequestRevision(ctx context.Context, orderID, clientID uuid.UUID, now time.Time) (*models.Order, error) {
	args := m.Called(ctx, orderID, clientID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) Cancel(ctx context.Context, orderID, actorID uuid.UUID, now time.Time) (*models.Order, error) {
	args := m.Called(ctx, orderID, actorID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockOrderRepo) ResolveDisputeCancel(ctx context.Context, orderID, adminID uuid.UUID, resolution string, now time.Time) (*models.Order, error) {
	args := m.Called(ctx, orderID, adminID, resolution, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func newTestOrderService(repo *mockOrderRepo) *OrderService {
	svc := NewOrderService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestOrderService_GetParticipantsOnly(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := newTestOrderService(repo)
	ctx := context.Background()
	order := &models.Order{ID: uuid.New(), ClientID: uuid.New(), FreelanceID: uuid.New()}
	repo.On("GetByID", ctx, order.ID).Return(order, nil)

	got, err := svc.Get(ctx, order.ID, Viewer{UserID: order.FreelanceID, Role: models.RoleFreelance})
	require.NoError(t, err)
	assert.Equal(t, order, got)

	_, err = svc.Get(ctx, order.ID, Viewer{UserID: uuid.New(), Role: models.RoleClient})
	assert.True(t, apperror.IsNotOwner(err))

	_, err = svc.Get(ctx, order.ID, Viewer{UserID: uuid.New(), Role: models.RoleAdmin})
	assert.NoError(t, err)
}

func TestOrderService_GetMissing(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := newTestOrderService(repo)
	ctx := context.Background()
	id := uuid.New()
	repo.On("GetByID", ctx, id).Return(nil, repository.ErrOrderNotFound)

	_, err := svc.Get(ctx, id, Viewer{UserID: uuid.New()})
	assert.True(t, apperror.IsNotFound(err))
}

func TestOrderService_Deliver(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := newTestOrderService(repo)
	ctx := context.Background()
	orderID, freelanceID := uuid.New(), uuid.New()
	delivered := &models.Order{ID: orderID, FreelanceID: freelanceID, Status: models.OrderStatusDelivered}

	repo.On("Deliver", ctx, orderID, freelanceID, fixedNow).Return(delivered, nil)

	got, err := svc.Deliver(ctx, orderID, freelanceID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
}

func TestOrderService_CancelInvalidTransition(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := newTestOrderService(repo)
	ctx := context.Background()
	orderID, clientID := uuid.New(), uuid.New()

	repo.On("Cancel", ctx, orderID, clientID, fixedNow).Return(nil, apperror.ErrInvalidTransition)

	_, err := svc.Cancel(ctx, orderID, clientID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestOrderService_HistoryChecksAccess(t *testing.T) {
	repo := new(mockOrderRepo)
	svc := newTestOrderService(repo)
	ctx := context.Background()
	order := &models.Order{ID: uuid.New(), ClientID: uuid.New(), FreelanceID: uuid.New()}
	repo.On("GetByID", ctx, order.ID).Return(order, nil)
	repo.On("History", ctx, order.ID).Return([]models.OrderHistory{{Action: models.OrderActionCreated}}, nil)

	history, err := svc.History(ctx, order.ID, Viewer{UserID: order.ClientID})
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = svc.History(ctx, order.ID, Viewer{UserID: uuid.New()})
	assert.True(t, apperror.IsNotOwner(err))
	repo.AssertNumberOfCalls(t, "History", 1)
}
