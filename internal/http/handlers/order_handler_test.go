package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

type fakeOrders struct {
	order *models.Order
	err   error
	actor uuid.UUID
}

func (f *fakeOrders) Get(ctx context.Context, orderID uuid.UUID, viewer service.Viewer) (*models.Order, error) {
	f.actor = viewer.UserID
	return f.order, f.err
}

func (f *fakeOrders) History(ctx context.Context, orderID uuid.UUID, viewer service.Viewer) ([]models.OrderHistory, error) {
	return []models.OrderHistory{}, f.err
}

func (f *fakeOrders) Deliver(ctx context.Context, orderID, freelanceID uuid.UUID) (*models.Order, error) {
	f.actor = freelanceID
	return f.order, f.err
}

func (f *fakeOrders) RequestRevision(ctx context.Context, orderID, clientID uuid.UUID) (*models.Order, error) {
	f.actor = clientID
	return f.order, f.err
}

func (f *fakeOrders) Cancel(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	f.actor = actorID
	return f.order, f.err
}

type fakeSettler struct {
	result *repository.SettlementResult
	err    error
}

func (f *fakeSettler) CompleteOrder(ctx context.Context, orderID, clientID uuid.UUID) (*repository.SettlementResult, error) {
	return f.result, f.err
}

func TestOrderHandler_CompleteOrder_Unauthorized(t *testing.T) {
	r := newRouter(uuid.Nil, "")
	r.POST("/orders/complete", NewOrderHandler(&fakeOrders{}, &fakeSettler{}).CompleteOrder)

	w := doJSON(r, http.MethodPost, "/orders/complete", map[string]string{"orderId": uuid.NewString()})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderHandler_CompleteOrder_InvalidOrderID(t *testing.T) {
	r := newRouter(uuid.New(), models.RoleClient)
	r.POST("/orders/complete", NewOrderHandler(&fakeOrders{}, &fakeSettler{}).CompleteOrder)

	w := doJSON(r, http.MethodPost, "/orders/complete", map[string]string{"orderId": "42"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_CompleteOrder(t *testing.T) {
	orderID := uuid.New()
	settler := &fakeSettler{result: &repository.SettlementResult{
		Order:         &models.Order{ID: orderID, Status: models.OrderStatusCompleted},
		SettledAmount: decimal.NewFromInt(23750),
	}}
	r := newRouter(uuid.New(), models.RoleClient)
	r.POST("/orders/complete", NewOrderHandler(&fakeOrders{}, settler).CompleteOrder)

	w := doJSON(r, http.MethodPost, "/orders/complete", map[string]string{"orderId": orderID.String()})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(w)
	assert.Equal(t, false, body["already_completed"])
	assert.Equal(t, "23750", body["settled_amount"])
}

func TestOrderHandler_CompleteOrder_NotDeliverable(t *testing.T) {
	settler := &fakeSettler{err: apperror.ErrNotDeliverable}
	r := newRouter(uuid.New(), models.RoleClient)
	r.POST("/orders/complete", NewOrderHandler(&fakeOrders{}, settler).CompleteOrder)

	w := doJSON(r, http.MethodPost, "/orders/complete", map[string]string{"orderId": uuid.NewString()})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NOT_DELIVERABLE", decodeBody(w)["code"])
}

func TestOrderHandler_Deliver_PassesActor(t *testing.T) {
	freelanceID := uuid.New()
	orders := &fakeOrders{order: &models.Order{ID: uuid.New(), Status: models.OrderStatusDelivered}}
	r := newRouter(freelanceID, models.RoleFreelance)
	r.POST("/orders/:id/deliver", NewOrderHandler(orders, &fakeSettler{}).Deliver)

	w := doJSON(r, http.MethodPost, "/orders/"+uuid.NewString()+"/deliver", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, freelanceID, orders.actor)
}

func TestOrderHandler_Cancel_InvalidTransition(t *testing.T) {
	orders := &fakeOrders{err: apperror.ErrInvalidTransition}
	r := newRouter(uuid.New(), models.RoleClient)
	r.POST("/orders/:id/cancel", NewOrderHandler(orders, &fakeSettler{}).Cancel)

	w := doJSON(r, http.MethodPost, "/orders/"+uuid.NewString()+"/cancel", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOrderHandler_GetOrder_InvalidID(t *testing.T) {
	r := newRouter(uuid.New(), models.RoleClient)
	r.GET("/orders/:id", NewOrderHandler(&fakeOrders{}, &fakeSettler{}).GetOrder)

	w := doJSON(r, http.MethodGet, "/orders/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
