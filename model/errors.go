package model

import "errors"

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidMethod     = errors.New("unsupported payment method")
	ErrUserNotFound      = errors.New("user does not exist")
	ErrInvalidReference  = errors.New("unrecognized order reference")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrMissingQRCode     = errors.New("qr code is required to mark a payment paid")
	ErrStaleWrite        = errors.New("payment was modified concurrently")
	ErrAmountMismatch    = errors.New("callback amount does not match payment")
	ErrInvalidSignature  = errors.New("invalid gateway signature")
)
