package service

import (
	"commerce_settlement/constants"
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
)

const (
	orderSyncBatch = 50
	expiryBatch    = 100
)

// expiringMethods are the methods whose payer instruction stops working after
// PaymentTTL. Transfers and cash on delivery may settle any time later.
var expiringMethods = []model.PaymentMethod{model.MethodVNPay}

// Reconciler applies gateway notifications to the ledger and propagates the
// outcome to orders and live clients.
type Reconciler struct {
	payments    *PaymentService
	logs        CallbackLogStore
	queue       OrderSyncQueue
	guard       ReplayGuard
	maxAttempts int
}

func NewReconciler(payments *PaymentService, logs CallbackLogStore, queue OrderSyncQueue, guard ReplayGuard, maxAttempts int) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Reconciler{
		payments:    payments,
		logs:        logs,
		queue:       queue,
		guard:       guard,
		maxAttempts: maxAttempts,
	}
}

// HandleNotification is safe to call any number of times for the same
// callback. Once the ledger write commits, later failures are only logged.
func (r *Reconciler) HandleNotification(ctx context.Context, n model.Notification) (*model.CallbackResult, error) {
	entry := r.record(ctx, n)

	ids, err := utils.DecodeOrderReference(n.Reference)
	if err != nil {
		r.finish(ctx, entry, model.CallbackRejected, nil, err)
		return nil, err
	}

	p, err := r.resolve(ctx, ids)
	if err != nil {
		r.finish(ctx, entry, rejectionStatus(err), nil, err)
		return nil, err
	}

	target := n.Target()
	if n.Succeeded() && n.Amount > 0 && n.Amount != p.Amount {
		err := fmt.Errorf("%w: got %d, ledger has %d", model.ErrAmountMismatch, n.Amount, p.Amount)
		r.finish(ctx, entry, model.CallbackRejected, &p.ID, err)
		return nil, err
	}

	replayed := p.Status == target
	if !replayed {
		replayed, err = r.transition(ctx, p, target, n)
		if err != nil {
			r.finish(ctx, entry, rejectionStatus(err), &p.ID, err)
			return nil, err
		}
	}

	post := context.WithoutCancel(ctx)
	result := &model.CallbackResult{
		Payment:  p,
		OrderIds: ids,
		Status:   p.Status,
		Replayed: replayed,
	}
	if replayed && r.guard != nil && !r.guard.Allow(post, p.ID) {
		log.Warnw("callback replay limit reached, order update skipped", "payment", p.ID, "transaction", n.TransactionId)
	} else {
		result.OrderSynced = r.syncOrders(post, p, ids)
	}
	r.payments.broadcast(post, p, ids)
	r.finish(post, entry, model.CallbackHandled, &p.ID, nil)

	log.Infow("callback reconciled", "gateway", n.Gateway, "transaction", n.TransactionId, "payment", p.ID, "status", p.Status, "replayed", replayed)
	return result, nil
}

// transition moves p to target. A concurrent delivery that already wrote the
// same target counts as a replay.
func (r *Reconciler) transition(ctx context.Context, p *model.Payment, target model.PaymentStatus, n model.Notification) (bool, error) {
	err := r.payments.apply(ctx, p, model.TransitionCommand{
		PaymentId:     p.ID,
		Target:        target,
		Fee:           n.Fee,
		TransactionId: n.TransactionId,
	})
	if !errors.Is(err, model.ErrStaleWrite) {
		return false, err
	}

	fresh, gerr := r.payments.Store.GetByID(ctx, p.ID)
	if gerr != nil {
		return false, gerr
	}
	*p = *fresh
	if p.Status != target {
		return false, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, p.Status, target)
	}
	return true, nil
}

// resolve picks the newest payment of the primary order whose batch is
// exactly ids. A payment covering a different batch is never settled.
func (r *Reconciler) resolve(ctx context.Context, ids []uint) (*model.Payment, error) {
	payments, err := r.payments.Store.ListByOrder(ctx, ids[0])
	if err != nil {
		return nil, err
	}
	for i := range payments {
		batch, err := utils.DecodeOrderReference(payments[i].OrderReference)
		if err == nil && slices.Equal(batch, ids) {
			return &payments[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no payment for orders %s", model.ErrPaymentNotFound, utils.JoinOrderIds(ids))
}

// syncOrders reports whether every order accepted the update; the rest are queued.
func (r *Reconciler) syncOrders(ctx context.Context, p *model.Payment, ids []uint) bool {
	if r.payments.Orders == nil {
		return false
	}
	var (
		pending []uint
		errs    []error
	)
	for _, id := range ids {
		if err := r.updateOrder(ctx, id, p.ID, p.Status); err != nil {
			log.Warnw("order update failed", "order", id, "payment", p.ID, "error", err)
			pending = append(pending, id)
			errs = append(errs, err)
		}
	}
	if len(pending) == 0 {
		return true
	}
	r.enqueue(ctx, p, pending, errors.Join(errs...))
	return false
}

func (r *Reconciler) updateOrder(ctx context.Context, orderId, paymentId uint, status model.PaymentStatus) error {
	callCtx, cancel := context.WithTimeout(ctx, r.payments.Options.OrderUpdateTimeout)
	defer cancel()

	orders := r.payments.Orders
	switch status {
	case model.PaymentPaid:
		if err := orders.SetPaymentStatus(callCtx, orderId, paymentId, constants.ORDER_PAYMENT_PAID); err != nil {
			return err
		}
		return orders.SetStatus(callCtx, orderId, constants.ORDER_STATUS_CONFIRMED)
	case model.PaymentFailed:
		return orders.SetPaymentStatus(callCtx, orderId, paymentId, constants.ORDER_PAYMENT_FAILED)
	}
	return nil
}

func (r *Reconciler) enqueue(ctx context.Context, p *model.Payment, ids []uint, cause error) {
	if r.queue == nil {
		return
	}
	reference, _ := utils.EncodeOrderReference(ids)
	task := &model.OrderSyncTask{
		PaymentId:      p.ID,
		OrderReference: reference,
		Status:         p.Status,
		LastError:      cause.Error(),
		NextRunAt:      r.payments.now().Add(time.Minute),
	}
	if err := r.queue.Enqueue(ctx, task); err != nil {
		log.Errorw("enqueue order sync failed", "payment", p.ID, "reference", reference, "error", err)
	}
}

// RetryOrderSync replays queued order updates that are due and returns how many completed.
func (r *Reconciler) RetryOrderSync(ctx context.Context) (int, error) {
	if r.queue == nil || r.payments.Orders == nil {
		return 0, nil
	}
	now := r.payments.now()
	tasks, err := r.queue.Due(ctx, now, r.maxAttempts, orderSyncBatch)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, task := range tasks {
		ids, err := utils.DecodeOrderReference(task.OrderReference)
		if err != nil {
			r.markFailed(ctx, task, r.maxAttempts, err, now)
			continue
		}
		var errs []error
		for _, id := range ids {
			if err := r.updateOrder(ctx, id, task.PaymentId, task.Status); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			attempts := task.Attempts + 1
			r.markFailed(ctx, task, attempts, errors.Join(errs...), now.Add(retryBackoff(attempts)))
			continue
		}
		if err := r.queue.MarkDone(ctx, task.ID); err != nil {
			log.Errorw("mark order sync done failed", "task", task.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (r *Reconciler) markFailed(ctx context.Context, task model.OrderSyncTask, attempts int, cause error, next time.Time) {
	if err := r.queue.MarkFailed(ctx, task.ID, attempts, cause.Error(), next); err != nil {
		log.Errorw("mark order sync failed", "task", task.ID, "error", err)
	}
	if attempts >= r.maxAttempts {
		log.Errorw("order sync abandoned", "task", task.ID, "payment", task.PaymentId, "reference", task.OrderReference, "error", cause)
	}
}

func retryBackoff(attempts int) time.Duration {
	d := time.Duration(attempts*attempts) * time.Minute
	if d > time.Hour {
		return time.Hour
	}
	return d
}

// ExpirePending fails payments whose instruction expired while still Pending.
func (r *Reconciler) ExpirePending(ctx context.Context) (int, error) {
	before := r.payments.now().Add(-r.payments.Options.PaymentTTL)
	stale, err := r.payments.Store.ListStalePending(ctx, expiringMethods, before, expiryBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		p := &stale[i]
		err := r.payments.apply(ctx, p, model.TransitionCommand{PaymentId: p.ID, Target: model.PaymentFailed})
		if errors.Is(err, model.ErrStaleWrite) {
			continue
		}
		if err != nil {
			log.Warnw("expire payment failed", "payment", p.ID, "error", err)
			continue
		}
		ids, _ := utils.DecodeOrderReference(p.OrderReference)
		post := context.WithoutCancel(ctx)
		r.syncOrders(post, p, ids)
		r.payments.broadcast(post, p, ids)
		expired++
	}
	if expired > 0 {
		log.Infow("expired pending payments", "count", expired, "before", before)
	}
	return expired, nil
}

func (r *Reconciler) record(ctx context.Context, n model.Notification) *model.CallbackLog {
	if r.logs == nil {
		return nil
	}
	payload := n.Raw
	if !json.Valid(payload) {
		payload, _ = json.Marshal(map[string]string{"raw": string(n.Raw)})
	}
	entry := &model.CallbackLog{
		Gateway:       n.Gateway,
		TransactionId: n.TransactionId,
		Reference:     n.Reference,
		Payload:       datatypes.JSON(payload),
		Status:        model.CallbackReceived,
	}
	if err := r.logs.Create(ctx, entry); err != nil {
		log.Warnw("record callback failed", "transaction", n.TransactionId, "error", err)
		return nil
	}
	return entry
}

func (r *Reconciler) finish(ctx context.Context, entry *model.CallbackLog, status model.CallbackLogStatus, paymentId *uint, cause error) {
	if entry == nil {
		return
	}
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	if err := r.logs.MarkResult(ctx, entry.ID, status, paymentId, errText); err != nil {
		log.Warnw("update callback log failed", "callback", entry.ID, "error", err)
	}
}

func rejectionStatus(err error) model.CallbackLogStatus {
	switch {
	case errors.Is(err, model.ErrInvalidReference),
		errors.Is(err, model.ErrInvalidOrder),
		errors.Is(err, model.ErrPaymentNotFound),
		errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrMissingQRCode),
		errors.Is(err, model.ErrAmountMismatch):
		return model.CallbackRejected
	}
	return model.CallbackFailed
}
