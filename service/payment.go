package service

import (
	"commerce_settlement/constants"
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type Options struct {
	UserCheckTimeout   time.Duration
	OrderUpdateTimeout time.Duration
	PublishTimeout     time.Duration
	PaymentTTL         time.Duration
}

func (o Options) withDefaults() Options {
	if o.UserCheckTimeout <= 0 {
		o.UserCheckTimeout = 3 * time.Second
	}
	if o.OrderUpdateTimeout <= 0 {
		o.OrderUpdateTimeout = 5 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 2 * time.Second
	}
	if o.PaymentTTL <= 0 {
		o.PaymentTTL = 15 * time.Minute
	}
	return o
}

// PaymentService owns every write to the payment ledger.
type PaymentService struct {
	Store    PaymentStore
	Users    UserDirectory
	Orders   OrderCollaborator
	Events   EventPublisher
	Notifier StatusNotifier
	QR       InstructionBuilder
	Mailer   ReceiptMailer
	Options  Options

	now func() time.Time
}

func NewPaymentService(store PaymentStore, users UserDirectory, orders OrderCollaborator, events EventPublisher, notifier StatusNotifier, qr InstructionBuilder, opts Options) *PaymentService {
	return &PaymentService{
		Store:    store,
		Users:    users,
		Orders:   orders,
		Events:   events,
		Notifier: notifier,
		QR:       qr,
		Options:  opts.withDefaults(),
		now:      time.Now,
	}
}

// Create validates the request, persists a Pending payment and announces it.
func (s *PaymentService) Create(ctx context.Context, cmd model.CreatePaymentCommand) (*model.Payment, error) {
	reference, err := utils.EncodeOrderReference(cmd.OrderIds)
	if err != nil {
		return nil, err
	}
	if cmd.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if err := s.checkUser(ctx, cmd.UserId); err != nil {
		return nil, err
	}

	var payment model.Payment
	if err := copier.Copy(&payment, &cmd); err != nil {
		return nil, fmt.Errorf("copy payment command: %w", err)
	}
	payment.PaymentCode = newPaymentCode()
	payment.OrderId = cmd.OrderIds[0]
	payment.OrderReference = reference
	payment.Description = utils.BuildDescription(cmd.OrderIds)
	payment.Status = model.PaymentPending
	payment.UpdatedBy = cmd.CreatedBy
	payment.Orders = make([]model.PaymentOrder, len(cmd.OrderIds))
	for i, id := range cmd.OrderIds {
		payment.Orders[i] = model.PaymentOrder{OrderId: id, Position: i}
	}

	qr, err := s.QR.Build(&payment, cmd.ClientIP)
	if err != nil {
		return nil, err
	}
	payment.QRCode = qr

	if err := s.Store.Create(ctx, &payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	log.Infow("payment created", "payment", payment.ID, "code", payment.PaymentCode, "reference", reference, "amount", payment.Amount)

	s.publish(constants.TOPIC_PAYMENT_CREATED, payment, cmd.OrderIds)
	return &payment, nil
}

// CreateBulk prices every order through the order collaborator and settles them with one payment.
func (s *PaymentService) CreateBulk(ctx context.Context, cmd model.CreatePaymentCommand) (*model.BulkPaymentResult, error) {
	if _, err := utils.EncodeOrderReference(cmd.OrderIds); err != nil {
		return nil, err
	}
	if cmd.Method == "" {
		cmd.Method = model.MethodBankTransfer
	}

	var total int64
	for _, id := range cmd.OrderIds {
		order, err := s.fetchOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if order.UserId != 0 && cmd.UserId != 0 && order.UserId != cmd.UserId {
			return nil, fmt.Errorf("%w: order %d belongs to another user", model.ErrInvalidOrder, id)
		}
		if order.TotalAmount <= 0 {
			return nil, fmt.Errorf("%w: order %d has no payable amount", model.ErrInvalidAmount, id)
		}
		total += order.TotalAmount
	}
	cmd.Amount = total

	payment, err := s.Create(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &model.BulkPaymentResult{
		QRCode:      payment.QRCode,
		PaymentId:   payment.ID,
		TotalAmount: total,
		OrderCount:  len(cmd.OrderIds),
		OrderIds:    cmd.OrderIds,
		Description: payment.Description,
		Reference:   payment.OrderReference,
	}, nil
}

func (s *PaymentService) fetchOrder(ctx context.Context, orderId uint) (*model.OrderInfo, error) {
	if s.Orders == nil {
		return nil, fmt.Errorf("order collaborator is not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.Options.OrderUpdateTimeout)
	defer cancel()

	order, err := s.Orders.GetOrder(callCtx, orderId)
	if err != nil {
		if errors.Is(err, model.ErrInvalidOrder) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch order %d: %w", orderId, err)
	}
	return order, nil
}

// checkUser rejects unknown users; a collaborator outage is logged and tolerated.
func (s *PaymentService) checkUser(ctx context.Context, userId uint) error {
	if userId == 0 {
		return model.ErrUserNotFound
	}
	if s.Users == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.Options.UserCheckTimeout)
	defer cancel()

	if _, err := s.Users.GetUser(callCtx, userId); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnw("user check unavailable, continuing", "user", userId, "error", err)
	}
	return nil
}

// Transition applies a direct status change and pushes it to live clients.
func (s *PaymentService) Transition(ctx context.Context, cmd model.TransitionCommand) (*model.Payment, error) {
	p, err := s.Store.GetByID(ctx, cmd.PaymentId)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, p, cmd); err != nil {
		return nil, err
	}
	ids, _ := utils.DecodeOrderReference(p.OrderReference)
	s.broadcast(context.WithoutCancel(ctx), p, ids)
	return p, nil
}

func (s *PaymentService) Refund(ctx context.Context, paymentId, actorId uint) (*model.Payment, error) {
	return s.Transition(ctx, model.TransitionCommand{
		PaymentId: paymentId,
		Target:    model.PaymentRefunded,
		ActorId:   actorId,
	})
}

// apply validates cmd against p, writes it conditionally on p's current
// status and runs the post-commit announcements. p is updated in place.
func (s *PaymentService) apply(ctx context.Context, p *model.Payment, cmd model.TransitionCommand) error {
	from := p.Status
	next := *p
	if err := s.nextState(&next, cmd); err != nil {
		return err
	}
	if err := s.Store.UpdateTransition(ctx, &next, from); err != nil {
		return err
	}
	*p = next

	log.Infow("payment transitioned", "payment", p.ID, "from", from, "to", p.Status, "fee", p.Fee, "actor", cmd.ActorId)

	ids, _ := utils.DecodeOrderReference(p.OrderReference)
	topic := constants.TOPIC_PAYMENT_PROCESSED
	if p.Status == model.PaymentRefunded {
		topic = constants.TOPIC_PAYMENT_REFUNDED
	}
	s.publish(topic, *p, ids)
	if p.Status == model.PaymentPaid {
		s.sendReceipt(*p)
	}
	return nil
}

func (s *PaymentService) nextState(p *model.Payment, cmd model.TransitionCommand) error {
	if cmd.Fee < 0 {
		return model.ErrInvalidAmount
	}
	invalid := fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, p.Status, cmd.Target)

	switch cmd.Target {
	case model.PaymentPaid:
		if p.Status != model.PaymentPending {
			return invalid
		}
		if p.QRCode == "" {
			p.QRCode = cmd.QRCode
		}
		if p.QRCode == "" {
			return model.ErrMissingQRCode
		}
		p.Fee = cmd.Fee
	case model.PaymentFailed:
		if p.Status != model.PaymentPending {
			return invalid
		}
	case model.PaymentRefunded:
		if p.Status != model.PaymentPaid {
			return invalid
		}
	default:
		return invalid
	}

	if cmd.Target != model.PaymentRefunded && p.ProcessedAt == nil {
		now := s.now()
		p.ProcessedAt = &now
	}
	if cmd.TransactionId != "" {
		p.TransactionId = cmd.TransactionId
	}
	p.Status = cmd.Target
	p.UpdatedBy = cmd.ActorId
	return nil
}

func (s *PaymentService) GetByID(ctx context.Context, id uint) (*model.Payment, error) {
	return s.Store.GetByID(ctx, id)
}

func (s *PaymentService) GetByQRCode(ctx context.Context, qr string) (*model.Payment, error) {
	if strings.TrimSpace(qr) == "" {
		return nil, model.ErrPaymentNotFound
	}
	return s.Store.GetByQRCode(ctx, qr)
}

// GetStatusByOrder returns the latest payment covering orderId, including bulk batches.
func (s *PaymentService) GetStatusByOrder(ctx context.Context, orderId uint) (*model.PaymentSnapshot, error) {
	if orderId == 0 {
		return nil, model.ErrInvalidOrder
	}
	payments, err := s.Store.ListByAnyOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, model.ErrPaymentNotFound
	}
	return Snapshot(&payments[0]), nil
}

func (s *PaymentService) ListByUser(ctx context.Context, userId uint, filter model.FilterPaymentInput) (*model.ResponseCustom, error) {
	rows, total, err := s.Store.ListByUser(ctx, userId, filter)
	if err != nil {
		return nil, err
	}
	return &model.ResponseCustom{
		Rows:       rows,
		Limit:      filter.Limit,
		Page:       filter.Page,
		TotalCount: total,
	}, nil
}

func (s *PaymentService) Delete(ctx context.Context, paymentId, actorId uint) error {
	if err := s.Store.SoftDelete(ctx, paymentId, actorId); err != nil {
		return err
	}
	log.Infow("payment deleted", "payment", paymentId, "actor", actorId)
	return nil
}

// Snapshot is the read model served to status queries and live clients.
func Snapshot(p *model.Payment) *model.PaymentSnapshot {
	ids, err := utils.DecodeOrderReference(p.OrderReference)
	if err != nil {
		ids = []uint{p.OrderId}
	}
	return &model.PaymentSnapshot{
		PaymentId:   p.ID,
		OrderIds:    ids,
		Status:      p.Status,
		StatusLabel: model.FormatStatus(p.Status),
		Amount:      p.Amount,
		Method:      p.Method,
		ProcessedAt: p.ProcessedAt,
	}
}

func newPaymentCode() string {
	return "PAY" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
