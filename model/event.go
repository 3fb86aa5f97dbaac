package model

import "time"

type PaymentEvent struct {
	EventType string           `json:"event_type"`
	Data      PaymentEventData `json:"data"`
}

type PaymentEventData struct {
	PaymentId uint      `json:"payment_id"`
	OrderId   uint      `json:"order_id"`
	OrderIds  []uint    `json:"order_ids"`
	UserId    uint      `json:"user_id"`
	Amount    int64     `json:"amount"`
	Fee       int64     `json:"fee"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusEvent is pushed to every live connection watching one of OrderIds.
type StatusEvent struct {
	Type      string        `json:"type"`
	OrderIds  []uint        `json:"orderIds"`
	PaymentId uint          `json:"paymentId"`
	Status    PaymentStatus `json:"status"`
	Amount    int64         `json:"amount"`
	IsSuccess bool          `json:"isSuccess"`
	Timestamp time.Time     `json:"timestamp"`
}

type OrderInfo struct {
	Id            uint   `json:"id"`
	UserId        uint   `json:"userId"`
	TotalAmount   int64  `json:"totalAmount"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

type AccountInfo struct {
	Id       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}
