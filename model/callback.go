package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Notification is a gateway callback after signature checks, independent of the gateway.
type Notification struct {
	Gateway       string `json:"gateway"`
	TransactionId string `json:"transactionId" validate:"required,max=100"`
	Reference     string `json:"orderCode" validate:"required,max=255"`
	Amount        int64  `json:"amount" validate:"gte=0,required_if=Status success,required_if=Status SUCCESS"`
	Fee           int64  `json:"fee" validate:"gte=0"`
	Status        string `json:"status" validate:"required,oneof=success failure SUCCESS FAILURE"`
	Raw           []byte `json:"-"`
}

func (n Notification) Succeeded() bool {
	return strings.EqualFold(n.Status, "success")
}

// Target is the ledger status the callback implies.
func (n Notification) Target() PaymentStatus {
	if n.Succeeded() {
		return PaymentPaid
	}
	return PaymentFailed
}

type CallbackResult struct {
	Payment     *Payment      `json:"payment"`
	OrderIds    []uint        `json:"orderIds"`
	Status      PaymentStatus `json:"status"`
	Replayed    bool          `json:"replayed"`
	OrderSynced bool          `json:"orderSynced"`
}

type CallbackLogStatus string

const (
	CallbackReceived CallbackLogStatus = "RECEIVED"
	CallbackHandled  CallbackLogStatus = "HANDLED"
	CallbackRejected CallbackLogStatus = "REJECTED"
	CallbackFailed   CallbackLogStatus = "FAILED"
)

type CallbackLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Gateway       string            `gorm:"size:20;not null" json:"gateway"`
	TransactionId string            `gorm:"size:100;index" json:"transactionId"`
	Reference     string            `gorm:"size:255" json:"reference"`
	PaymentId     *uint             `gorm:"index" json:"paymentId,omitempty"`
	Payload       datatypes.JSON    `gorm:"type:jsonb" json:"payload"`
	Status        CallbackLogStatus `gorm:"size:20;not null" json:"status"`
	Error         string            `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// OrderSyncTask records an order-state propagation that has to be retried.
type OrderSyncTask struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	PaymentId      uint          `gorm:"not null;index" json:"paymentId"`
	OrderReference string        `gorm:"size:255;not null" json:"orderReference"`
	Status         PaymentStatus `gorm:"size:20;not null" json:"status"`
	Attempts       int           `gorm:"not null;default:0" json:"attempts"`
	LastError      string        `gorm:"type:text" json:"lastError"`
	NextRunAt      time.Time     `gorm:"index" json:"nextRunAt"`
	DoneAt         *time.Time    `gorm:"index" json:"doneAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}
