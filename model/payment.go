package model

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

var statusLabels = map[PaymentStatus]string{
	PaymentPending:  "Chờ thanh toán",
	PaymentPaid:     "Đã thanh toán",
	PaymentFailed:   "Thanh toán thất bại",
	PaymentRefunded: "Đã hoàn tiền",
}

// FormatStatus returns the display label for a status.
func FormatStatus(s PaymentStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Không xác định"
}

type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCOD          PaymentMethod = "COD"
	MethodWallet       PaymentMethod = "WALLET"
	MethodVNPay        PaymentMethod = "VNPAY"
)

type Payment struct {
	DTO
	PaymentCode    string        `gorm:"size:40;uniqueIndex" json:"paymentCode"`
	OrderId        uint          `gorm:"not null;index" json:"orderId"`
	OrderReference string        `gorm:"size:255;not null" json:"orderReference"`
	UserId         uint          `gorm:"not null;index" json:"userId"`
	Amount         int64         `gorm:"not null" json:"amount"`
	Method         PaymentMethod `gorm:"size:20;not null" json:"method"`
	Status         PaymentStatus `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	QRCode         string        `gorm:"size:1024;index" json:"qrCode"`
	Description    string        `gorm:"size:255" json:"description"`
	Fee            int64         `gorm:"not null;default:0" json:"fee"`
	TransactionId  string        `gorm:"size:100" json:"transactionId,omitempty"`
	ProcessedAt    *time.Time    `json:"processedAt,omitempty"`

	Orders []PaymentOrder `gorm:"foreignKey:PaymentId" json:"-"`
}

// PaymentOrder links a payment to every order of its batch.
type PaymentOrder struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	PaymentId uint `gorm:"not null;index" json:"paymentId"`
	OrderId   uint `gorm:"not null;index" json:"orderId"`
	Position  int  `gorm:"not null" json:"position"`
}

type PaymentSnapshot struct {
	PaymentId   uint          `json:"paymentId"`
	OrderIds    []uint        `json:"orderIds"`
	Status      PaymentStatus `json:"status"`
	StatusLabel string        `json:"statusLabel"`
	Amount      int64         `json:"amount"`
	Method      PaymentMethod `json:"method"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
}

type CreatePaymentInput struct {
	OrderId  uint          `json:"orderId" validate:"required_without=OrderIds"`
	OrderIds []uint        `json:"orderIds" validate:"omitempty,dive,gt=0"`
	Amount   int64         `json:"amount" validate:"required,gt=0"`
	Method   PaymentMethod `json:"method" validate:"required,oneof=BANK_TRANSFER COD WALLET VNPAY"`
	UserId   uint          `json:"userId"`
}

// Ids returns the order batch in request order; OrderIds wins over OrderId.
func (in CreatePaymentInput) Ids() []uint {
	if len(in.OrderIds) > 0 {
		return in.OrderIds
	}
	if in.OrderId == 0 {
		return nil
	}
	return []uint{in.OrderId}
}

type BulkPaymentInput struct {
	OrderIds []uint        `json:"orderIds" validate:"required,min=1,max=50,dive,gt=0"`
	Method   PaymentMethod `json:"method" validate:"omitempty,oneof=BANK_TRANSFER VNPAY WALLET"`
}

type UpdatePaymentStatusInput struct {
	Status PaymentStatus `json:"status" validate:"required,oneof=PAID FAILED"`
	QRCode string        `json:"qrCode" validate:"omitempty,max=1024"`
	Fee    int64         `json:"fee" validate:"gte=0"`
}

type FilterPaymentInput struct {
	Pagination
	Status PaymentStatus `json:"status" query:"status" validate:"omitempty,oneof=PENDING PAID FAILED REFUNDED"`
}

// CreatePaymentCommand is the service-level request built by the handlers.
type CreatePaymentCommand struct {
	OrderIds  []uint
	Amount    int64
	Method    PaymentMethod
	UserId    uint
	CreatedBy uint
	ClientIP  string
}

// TransitionCommand asks the lifecycle to move a payment to Target.
type TransitionCommand struct {
	PaymentId     uint
	Target        PaymentStatus
	QRCode        string
	Fee           int64
	TransactionId string
	ActorId       uint
}

type BulkPaymentResult struct {
	QRCode      string `json:"qrCode"`
	PaymentId   uint   `json:"paymentId"`
	TotalAmount int64  `json:"totalAmount"`
	OrderCount  int    `json:"orderCount"`
	OrderIds    []uint `json:"orderIds"`
	Description string `json:"description"`
	Reference   string `json:"orderReference"`
}
