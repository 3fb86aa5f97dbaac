package service

import (
	"commerce_settlement/constants"
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memStore
	users    *fakeUsers
	orders   *fakeOrders
	events   *fakePublisher
	notifier *fakeNotifier
	logs     *fakeCallbackLogs
	queue    *fakeQueue
	svc      *PaymentService
	rec      *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		users:    &fakeUsers{accounts: map[uint]model.AccountInfo{9: {Id: 9, Username: "buyer", Active: true}}},
		orders:   newFakeOrders(),
		events:   &fakePublisher{},
		notifier: &fakeNotifier{},
		logs:     newFakeCallbackLogs(),
		queue:    &fakeQueue{},
	}
	f.svc = NewPaymentService(f.store, f.users, f.orders, f.events, f.notifier, staticQR{}, Options{
		PublishTimeout:     50 * time.Millisecond,
		OrderUpdateTimeout: time.Second,
	})
	f.rec = NewReconciler(f.svc, f.logs, f.queue, NewMemoryReplayGuard(time.Minute, 3), 5)
	return f
}

func (f *fixture) create(t *testing.T, amount int64, ids ...uint) *model.Payment {
	t.Helper()
	return f.createWith(t, model.MethodBankTransfer, amount, ids...)
}

func (f *fixture) createWith(t *testing.T, method model.PaymentMethod, amount int64, ids ...uint) *model.Payment {
	t.Helper()
	p, err := f.svc.Create(context.Background(), model.CreatePaymentCommand{
		OrderIds:  ids,
		Amount:    amount,
		Method:    method,
		UserId:    9,
		CreatedBy: 9,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) withStatus(t *testing.T, status model.PaymentStatus) *model.Payment {
	t.Helper()
	p := f.create(t, 100000, 1)
	p.Status = status
	f.store.set(*p)
	return p
}

func (f *fixture) published(topic string) func() bool {
	return func() bool { return slices.Contains(f.events.topics(), topic) }
}

func TestCreateSingleOrderPayment(t *testing.T) {
	f := newFixture(t)

	p := f.create(t, 100000, 1)

	assert.NotZero(t, p.ID)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.NotEmpty(t, p.QRCode)
	assert.Equal(t, "ORD-1", p.OrderReference)
	assert.Equal(t, "PAYORDERS 1", p.Description)
	assert.Equal(t, uint(1), p.OrderId)
	assert.Equal(t, uint(9), p.UserId)
	assert.Equal(t, uint(9), p.CreatedBy)
	assert.Equal(t, model.MethodBankTransfer, p.Method)
	assert.Nil(t, p.ProcessedAt)
	assert.Zero(t, p.Fee)
	assert.Regexp(t, `^PAY[0-9A-F]{32}$`, p.PaymentCode)

	require.Eventually(t, f.published(constants.TOPIC_PAYMENT_CREATED), time.Second, 5*time.Millisecond)
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  model.CreatePaymentCommand
		want error
	}{
		{"zero amount", model.CreatePaymentCommand{OrderIds: []uint{1}, Amount: 0, Method: model.MethodCOD, UserId: 9}, model.ErrInvalidAmount},
		{"negative amount", model.CreatePaymentCommand{OrderIds: []uint{1}, Amount: -5, Method: model.MethodCOD, UserId: 9}, model.ErrInvalidAmount},
		{"unknown user", model.CreatePaymentCommand{OrderIds: []uint{1}, Amount: 10, Method: model.MethodCOD, UserId: 404}, model.ErrUserNotFound},
		{"no orders", model.CreatePaymentCommand{Amount: 10, Method: model.MethodCOD, UserId: 9}, model.ErrInvalidOrder},
		{"duplicate orders", model.CreatePaymentCommand{OrderIds: []uint{3, 3}, Amount: 10, Method: model.MethodCOD, UserId: 9}, model.ErrInvalidOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.cmd)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	rows, _, _ := f.store.ListByUser(ctx, 9, model.FilterPaymentInput{})
	assert.Empty(t, rows)
}

func TestCreateToleratesUserServiceOutage(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("dial tcp: i/o timeout")

	p := f.create(t, 5000, 2)
	assert.Equal(t, model.PaymentPending, p.Status)
}

func TestCreateSucceedsWhenPublishHangs(t *testing.T) {
	f := newFixture(t)
	f.events.block = true

	start := time.Now()
	p := f.create(t, 5000, 2)
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	got, err := f.store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.Status)
}

func TestCreateSucceedsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	p := f.create(t, 5000, 2)
	assert.NotZero(t, p.ID)
}

func TestCreateBulkSumsOrderAmounts(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = model.OrderInfo{Id: 1, UserId: 9, TotalAmount: 50000}
	f.orders.orders[2] = model.OrderInfo{Id: 2, UserId: 9, TotalAmount: 70000}

	res, err := f.svc.CreateBulk(context.Background(), model.CreatePaymentCommand{OrderIds: []uint{1, 2}, UserId: 9})
	require.NoError(t, err)

	assert.Equal(t, int64(120000), res.TotalAmount)
	assert.Equal(t, 2, res.OrderCount)
	assert.Equal(t, []uint{1, 2}, res.OrderIds)
	assert.NotZero(t, res.PaymentId)
	assert.NotEmpty(t, res.QRCode)
	assert.Equal(t, "PAYORDERS 1 2", res.Description)

	ids, err := utils.DecodeOrderReference(res.Reference)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids)

	p, err := f.store.GetByID(context.Background(), res.PaymentId)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), p.Amount)
	assert.Equal(t, uint(1), p.OrderId)
	assert.Equal(t, model.MethodBankTransfer, p.Method)
}

func TestCreateBulkRejectsForeignOrUnknownOrders(t *testing.T) {
	f := newFixture(t)
	f.orders.orders[1] = model.OrderInfo{Id: 1, UserId: 9, TotalAmount: 50000}
	f.orders.orders[2] = model.OrderInfo{Id: 2, UserId: 77, TotalAmount: 70000}
	ctx := context.Background()

	_, err := f.svc.CreateBulk(ctx, model.CreatePaymentCommand{OrderIds: []uint{1, 3}, UserId: 9})
	assert.ErrorIs(t, err, model.ErrInvalidOrder)

	_, err = f.svc.CreateBulk(ctx, model.CreatePaymentCommand{OrderIds: []uint{1, 2}, UserId: 9})
	assert.ErrorIs(t, err, model.ErrInvalidOrder)
}

func TestTransitionRules(t *testing.T) {
	cases := []struct {
		from model.PaymentStatus
		to   model.PaymentStatus
		ok   bool
	}{
		{model.PaymentPending, model.PaymentPaid, true},
		{model.PaymentPending, model.PaymentFailed, true},
		{model.PaymentPaid, model.PaymentRefunded, true},
		{model.PaymentPending, model.PaymentRefunded, false},
		{model.PaymentPending, model.PaymentPending, false},
		{model.PaymentPaid, model.PaymentFailed, false},
		{model.PaymentPaid, model.PaymentPaid, false},
		{model.PaymentFailed, model.PaymentPaid, false},
		{model.PaymentFailed, model.PaymentRefunded, false},
		{model.PaymentRefunded, model.PaymentPaid, false},
		{model.PaymentRefunded, model.PaymentPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			f := newFixture(t)
			p := f.withStatus(t, tc.from)

			got, err := f.svc.Transition(context.Background(), model.TransitionCommand{PaymentId: p.ID, Target: tc.to, ActorId: 1})
			if !tc.ok {
				assert.ErrorIs(t, err, model.ErrInvalidTransition)
				stored, _ := f.store.GetByID(context.Background(), p.ID)
				assert.Equal(t, tc.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, got.Status)
			assert.Equal(t, uint(1), got.UpdatedBy)
		})
	}
}

func TestTransitionToPaidRequiresQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 100000, 1)
	p.QRCode = ""
	f.store.set(*p)

	_, err := f.svc.Transition(ctx, model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentPaid})
	assert.ErrorIs(t, err, model.ErrMissingQRCode)

	got, err := f.svc.Transition(ctx, model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentPaid, QRCode: "manual", Fee: 1100})
	require.NoError(t, err)
	assert.Equal(t, "manual", got.QRCode)
	assert.Equal(t, int64(1100), got.Fee)
}

func TestTransitionKeepsExistingQRCode(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 100000, 1)

	got, err := f.svc.Transition(context.Background(), model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentPaid, QRCode: "other"})
	require.NoError(t, err)
	assert.Equal(t, p.QRCode, got.QRCode)
}

func TestProcessedAtIsSetOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 100000, 1)

	paid, err := f.svc.Transition(ctx, model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentPaid})
	require.NoError(t, err)
	require.NotNil(t, paid.ProcessedAt)
	first := *paid.ProcessedAt

	refunded, err := f.svc.Refund(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, refunded.Status)
	require.NotNil(t, refunded.ProcessedAt)
	assert.True(t, first.Equal(*refunded.ProcessedAt))

	require.Eventually(t, f.published(constants.TOPIC_PAYMENT_PROCESSED), time.Second, 5*time.Millisecond)
	require.Eventually(t, f.published(constants.TOPIC_PAYMENT_REFUNDED), time.Second, 5*time.Millisecond)
}

func TestRefundOnPendingPaymentIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 100000, 1)

	_, err := f.svc.Refund(ctx, p.ID, 1)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	got, err := f.svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, got.Status)
	assert.Nil(t, got.ProcessedAt)
}

func TestTransitionRejectsNegativeFee(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 100000, 1)

	_, err := f.svc.Transition(context.Background(), model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentPaid, Fee: -1})
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestTransitionUnknownPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transition(context.Background(), model.TransitionCommand{PaymentId: 42, Target: model.PaymentPaid})
	assert.ErrorIs(t, err, model.ErrPaymentNotFound)
}

func TestTransitionBroadcastsToEveryOrder(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 100000, 4, 5)

	_, err := f.svc.Transition(context.Background(), model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentFailed})
	require.NoError(t, err)

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, []uint{4, 5}, events[0].OrderIds)
	assert.Equal(t, model.PaymentFailed, events[0].Status)
	assert.False(t, events[0].IsSuccess)
}

func TestGetStatusByOrderCoversBatchMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 120000, 1, 2)

	snap, err := f.svc.GetStatusByOrder(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, p.ID, snap.PaymentId)
	assert.Equal(t, []uint{1, 2}, snap.OrderIds)
	assert.Equal(t, model.PaymentPending, snap.Status)
	assert.Equal(t, model.FormatStatus(model.PaymentPending), snap.StatusLabel)

	_, err = f.svc.GetStatusByOrder(ctx, 3)
	assert.ErrorIs(t, err, model.ErrPaymentNotFound)

	_, err = f.svc.GetStatusByOrder(ctx, 0)
	assert.ErrorIs(t, err, model.ErrInvalidOrder)
}

func TestGetByQRCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 100000, 1)

	got, err := f.svc.GetByQRCode(ctx, p.QRCode)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.svc.GetByQRCode(ctx, "  ")
	assert.ErrorIs(t, err, model.ErrPaymentNotFound)
}

func TestDeleteHidesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 100000, 1)

	require.NoError(t, f.svc.Delete(ctx, p.ID, 1))

	_, err := f.svc.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrPaymentNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, p.ID, 1), model.ErrPaymentNotFound)
}

func TestListByUser(t *testing.T) {
	f := newFixture(t)
	f.create(t, 100000, 1)
	f.create(t, 100000, 2)

	res, err := f.svc.ListByUser(context.Background(), 9, model.FilterPaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalCount)
}
