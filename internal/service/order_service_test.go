package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"

	"nebulaai/internal/model"
	"nebulaai/internal/pay"
	"nebulaai/pkg/logger"
)

// fakeOrderStore 基于内存map的订单存储
type fakeOrderStore struct {
	orders    map[string]*model.Order
	createErr error
	nextID    uint64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]*model.Order{}}
}

func (f *fakeOrderStore) Create(ctx context.Context, order *model.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.orders[order.OrderNo]; exists {
		return errors.New("duplicate order_no")
	}
	f.nextID++
	order.ID = f.nextID
	saved := *order
	f.orders[order.OrderNo] = &saved
	return nil
}

func (f *fakeOrderStore) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	order, ok := f.orders[orderNo]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) MarkFailed(ctx context.Context, orderNo string) error {
	if order, ok := f.orders[orderNo]; ok && order.Status == model.OrderStatusPending {
		order.Status = model.OrderStatusFailed
	}
	return nil
}

func (f *fakeOrderStore) MarkCancelled(ctx context.Context, orderNo, tradeNo string) (bool, error) {
	order, ok := f.orders[orderNo]
	if !ok || order.Status != model.OrderStatusPending {
		return false, nil
	}
	order.Status = model.OrderStatusCancelled
	order.TradeNo = sql.NullString{String: tradeNo, Valid: tradeNo != ""}
	return true, nil
}

func (f *fakeOrderStore) UpdateTradeNo(ctx context.Context, orderNo, tradeNo string) error {
	if order, ok := f.orders[orderNo]; ok {
		order.TradeNo = sql.NullString{String: tradeNo, Valid: tradeNo != ""}
	}
	return nil
}

func (f *fakeOrderStore) GetByUserID(ctx context.Context, userID uint64, page, pageSize int) ([]model.Order, int, error) {
	var orders []model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, len(orders), nil
}

// fakeGateway 可编程的支付网关
type fakeGateway struct {
	PrecreateFunc func(ctx context.Context, req pay.PrecreateRequest) (*pay.PrecreateResult, error)
	VerifyFunc    func(values url.Values) (*pay.Notification, error)
	precreateN    int
}

func (f *fakeGateway) Precreate(ctx context.Context, req pay.PrecreateRequest) (*pay.PrecreateResult, error) {
	f.precreateN++
	if f.PrecreateFunc != nil {
		return f.PrecreateFunc(ctx, req)
	}
	return &pay.PrecreateResult{QRCode: "https://qr.example.com/" + req.OutTradeNo}, nil
}

func (f *fakeGateway) VerifyNotification(values url.Values) (*pay.Notification, error) {
	if f.VerifyFunc != nil {
		return f.VerifyFunc(values)
	}
	return nil, pay.ErrInvalidSignature
}

// fakeActivator 模拟会员开通事务：订单待支付时置为已支付，否则按重复开通处理
type fakeActivator struct {
	store       *fakeOrderStore
	activateErr error
	calls       int
}

func (f *fakeActivator) Activate(ctx context.Context, userID, planID uint64, orderNo string) error {
	f.calls++
	if f.activateErr != nil {
		return f.activateErr
	}
	order, ok := f.store.orders[orderNo]
	if !ok {
		return errors.New("order not found")
	}
	if order.Status == model.OrderStatusPaid {
		return ErrOrderAlreadyPaid
	}
	if order.Status != model.OrderStatusPending {
		return ErrOrderNotPending
	}
	order.Status = model.OrderStatusPaid
	return nil
}

func newTestOrderService(store *fakeOrderStore, gateway *fakeGateway, activator *fakeActivator) *OrderService {
	return NewOrderService(store, gateway, activator, nil, nil, nil, nil, logger.NewLogger("error"))
}

func validParams() CreateOrderParams {
	return CreateOrderParams{
		UserID:  1,
		PlanID:  2,
		Amount:  99.00,
		OrderNo: "ORD123",
		Subject: "Annual Plan",
	}
}

func paidNotification(orderNo string) *pay.Notification {
	return &pay.Notification{
		OutTradeNo:  orderNo,
		TradeNo:     "2026082922001",
		TradeStatus: pay.TradeStatusSuccess,
		TotalAmount: "99.00",
	}
}

func TestCreateOrderMissingFields(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{}
	svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

	cases := []func(*CreateOrderParams){
		func(p *CreateOrderParams) { p.UserID = 0 },
		func(p *CreateOrderParams) { p.PlanID = 0 },
		func(p *CreateOrderParams) { p.Amount = 0 },
		func(p *CreateOrderParams) { p.OrderNo = "" },
		func(p *CreateOrderParams) { p.Subject = "" },
	}
	for _, mutate := range cases {
		p := validParams()
		mutate(&p)
		if _, err := svc.CreateOrder(context.Background(), p); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("expected ErrInvalidParams, got %v", err)
		}
	}

	if len(store.orders) != 0 {
		t.Fatalf("no order should be written, got %d", len(store.orders))
	}
	if gateway.precreateN != 0 {
		t.Fatalf("gateway should not be called on validation failure")
	}
}

func TestCreateOrderPersistFailureSkipsGateway(t *testing.T) {
	store := newFakeOrderStore()
	store.createErr = errors.New("db down")
	gateway := &fakeGateway{}
	svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

	if _, err := svc.CreateOrder(context.Background(), validParams()); err == nil {
		t.Fatal("expected error")
	}
	if gateway.precreateN != 0 {
		t.Fatal("gateway must not be called when persistence fails")
	}
}

func TestCreateOrderProviderRejected(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{
		PrecreateFunc: func(ctx context.Context, req pay.PrecreateRequest) (*pay.PrecreateResult, error) {
			return nil, &pay.ProviderError{Code: "40002", Msg: "invalid app_auth_token"}
		},
	}
	svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

	_, err := svc.CreateOrder(context.Background(), validParams())
	var providerErr *pay.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusFailed {
		t.Fatalf("order should be failed after provider rejection, got %d", got)
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{}
	svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

	result, err := svc.CreateOrder(context.Background(), validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.QRCode == "" {
		t.Fatal("expected non-empty qr code")
	}
	if result.OrderNo != "ORD123" {
		t.Fatalf("unexpected order no %q", result.OrderNo)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusPending {
		t.Fatalf("created order should stay pending, got %d", got)
	}
}

func TestNotificationInvalidSignatureNoMutation(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{}
	activator := &fakeActivator{store: store}
	svc := newTestOrderService(store, gateway, activator)

	if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// 无论通知声称什么交易状态，验签失败都不允许任何状态变更
	err := svc.HandleNotification(context.Background(), url.Values{"trade_status": {pay.TradeStatusSuccess}})
	if !errors.Is(err, pay.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusPending {
		t.Fatalf("order must stay pending, got %d", got)
	}
	if activator.calls != 0 {
		t.Fatal("activation must not run on signature failure")
	}
}

func TestNotificationOrderNotFound(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{
		VerifyFunc: func(values url.Values) (*pay.Notification, error) {
			return paidNotification("NO-SUCH-ORDER"), nil
		},
	}
	svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

	if err := svc.HandleNotification(context.Background(), url.Values{}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestNotificationPaidThenRedelivered(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{
		VerifyFunc: func(values url.Values) (*pay.Notification, error) {
			return paidNotification("ORD123"), nil
		},
	}
	activator := &fakeActivator{store: store}
	svc := newTestOrderService(store, gateway, activator)

	if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := svc.HandleNotification(context.Background(), url.Values{}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusPaid {
		t.Fatalf("order should be paid, got %d", got)
	}
	if got := store.orders["ORD123"].TradeNo.String; got != "2026082922001" {
		t.Fatalf("trade no not recorded, got %q", got)
	}

	// 重复投递：不触发二次开通，仍应答成功
	if err := svc.HandleNotification(context.Background(), url.Values{}); err != nil {
		t.Fatalf("redelivery should succeed, got %v", err)
	}
	if activator.calls != 1 {
		t.Fatalf("activation must run exactly once, ran %d times", activator.calls)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusPaid {
		t.Fatalf("order must stay paid, got %d", got)
	}
}

func TestNotificationActivationFailure(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{
		VerifyFunc: func(values url.Values) (*pay.Notification, error) {
			return paidNotification("ORD123"), nil
		},
	}
	activator := &fakeActivator{store: store, activateErr: errors.New("membership update failed")}
	svc := newTestOrderService(store, gateway, activator)

	if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	err := svc.HandleNotification(context.Background(), url.Values{})
	if !errors.Is(err, ErrActivationFailed) {
		t.Fatalf("expected ErrActivationFailed, got %v", err)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusFailed {
		t.Fatalf("order should be failed after activation failure, got %d", got)
	}
}

func TestNotificationConcurrentLoserStillSucceeds(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{
		VerifyFunc: func(values url.Values) (*pay.Notification, error) {
			return paidNotification("ORD123"), nil
		},
	}
	// 另一条并发通知已经完成开通，本方输掉状态守卫
	activator := &fakeActivator{store: store, activateErr: ErrOrderAlreadyPaid}
	svc := newTestOrderService(store, gateway, activator)

	if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := svc.HandleNotification(context.Background(), url.Values{}); err != nil {
		t.Fatalf("loser of the CAS race must still ack success, got %v", err)
	}
	if got := store.orders["ORD123"].Status; got == model.OrderStatusFailed {
		t.Fatal("order must not be marked failed when already paid concurrently")
	}
}

func TestNotificationClosedCancelsPendingOrder(t *testing.T) {
	for _, status := range []string{pay.TradeStatusClosed, pay.TradeStatusCanceled} {
		store := newFakeOrderStore()
		gateway := &fakeGateway{
			VerifyFunc: func(values url.Values) (*pay.Notification, error) {
				n := paidNotification("ORD123")
				n.TradeStatus = status
				return n, nil
			},
		}
		svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

		if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if err := svc.HandleNotification(context.Background(), url.Values{}); err != nil {
			t.Fatalf("close notification: %v", err)
		}
		if got := store.orders["ORD123"].Status; got != model.OrderStatusCancelled {
			t.Fatalf("order should be cancelled on %s, got %d", status, got)
		}
	}
}

func TestNotificationClosedNeverRevertsPaidOrder(t *testing.T) {
	store := newFakeOrderStore()
	verify := paidNotification("ORD123")
	gateway := &fakeGateway{
		VerifyFunc: func(values url.Values) (*pay.Notification, error) {
			return verify, nil
		},
	}
	svc := newTestOrderService(store, gateway, &fakeActivator{store: store})

	if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.HandleNotification(context.Background(), url.Values{}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	// 已支付订单收到关闭通知：状态保持单调，仍应答成功
	verify.TradeStatus = pay.TradeStatusClosed
	if err := svc.HandleNotification(context.Background(), url.Values{}); err != nil {
		t.Fatalf("close after paid should ack success, got %v", err)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusPaid {
		t.Fatalf("paid order must never leave paid state, got %d", got)
	}
}

func TestNotificationUnknownStatusRejected(t *testing.T) {
	store := newFakeOrderStore()
	gateway := &fakeGateway{
		VerifyFunc: func(values url.Values) (*pay.Notification, error) {
			n := paidNotification("ORD123")
			n.TradeStatus = "WAIT_BUYER_PAY"
			return n, nil
		},
	}
	activator := &fakeActivator{store: store}
	svc := newTestOrderService(store, gateway, activator)

	if _, err := svc.CreateOrder(context.Background(), validParams()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := svc.HandleNotification(context.Background(), url.Values{}); !errors.Is(err, ErrUnknownTradeStatus) {
		t.Fatalf("expected ErrUnknownTradeStatus, got %v", err)
	}
	if got := store.orders["ORD123"].Status; got != model.OrderStatusPending {
		t.Fatalf("unknown status must not change order state, got %d", got)
	}
	if activator.calls != 0 {
		t.Fatal("activation must not run for unknown status")
	}
}
