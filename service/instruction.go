package service

import (
	"commerce_settlement/gateway"
	"commerce_settlement/model"
	"commerce_settlement/utils"
	"fmt"
	"time"
)

type BankAccount struct {
	Code   string
	Number string
	Name   string
}

// QRBuilder picks the instruction shape by payment method: a signed VNPay
// URL, a bank transfer memo, or a cash-on-delivery slip.
type QRBuilder struct {
	VNPay *gateway.VNPay
	Bank  BankAccount
	TTL   time.Duration
}

func (b *QRBuilder) Build(p *model.Payment, clientIP string) (string, error) {
	switch p.Method {
	case model.MethodVNPay:
		if b.VNPay == nil {
			return "", fmt.Errorf("vnpay gateway is not configured")
		}
		return b.VNPay.BuildPaymentUrl(model.VNPayRequest{
			Amount:    p.Amount,
			OrderInfo: p.Description,
			TxnRef:    p.PaymentCode,
			IPAddr:    clientIP,
		}, b.TTL)
	case model.MethodBankTransfer, model.MethodWallet:
		return utils.BuildTransferInstruction(utils.TransferInstruction{
			BankCode:    b.Bank.Code,
			AccountNo:   b.Bank.Number,
			AccountName: b.Bank.Name,
			Amount:      p.Amount,
			Description: p.Description,
			PaymentCode: p.PaymentCode,
		}), nil
	case model.MethodCOD:
		return fmt.Sprintf("COD|AMOUNT:%d|MEMO:%s|REF:%s", p.Amount, p.Description, p.PaymentCode), nil
	}
	return "", fmt.Errorf("%w: unsupported method %q", model.ErrInvalidMethod, p.Method)
}
