package utils

import (
	"bytes"
	"commerce_settlement/model"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// PaymentReceiptData feeds the receipt template.
type PaymentReceiptData struct {
	PaymentCode string
	OrderIds    string
	Amount      int64
	Method      string
	Status      string
	PaidAt      string
	QRContent   string
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<html><body>
<h2>Biên nhận thanh toán {{.PaymentCode}}</h2>
<p>Đơn hàng: {{.OrderIds}}</p>
<p>Số tiền: {{.Amount}} VND ({{.Method}})</p>
<p>Trạng thái: {{.Status}} lúc {{.PaidAt}}</p>
<img src="cid:payment_qr" alt="QR"/>
</body></html>`))

func RenderPaymentReceipt(data PaymentReceiptData) (string, error) {
	var body bytes.Buffer
	if err := receiptTemplate.Execute(&body, data); err != nil {
		return "", err
	}
	return body.String(), nil
}

// SendPaymentReceiptEmail mails the receipt with the QR embedded inline.
func SendPaymentReceiptEmail(cfg SMTPConfig, to string, data PaymentReceiptData) error {
	if cfg.Host == "" || to == "" {
		return fmt.Errorf("smtp not configured or empty recipient")
	}
	html, err := RenderPaymentReceipt(data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Biên nhận thanh toán #"+data.PaymentCode)
	m.SetBody("text/html", html)

	if qrBytes, err := GenerateQRCode(data.QRContent, 300); err == nil {
		m.Embed("payment_qr.png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qrBytes)
			return err
		}), gomail.SetHeader(map[string][]string{
			"Content-Type":        {"image/png"},
			"Content-ID":          {"<payment_qr>"},
			"Content-Disposition": {"inline"},
		}))
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	start := time.Now()
	if err := d.DialAndSend(m); err != nil {
		return err
	}
	log.Infow("payment receipt sent", "to", to, "payment", data.PaymentCode, "took", time.Since(start))
	return nil
}

// ReceiptMailer sends the receipt of a settled payment over SMTP.
type ReceiptMailer struct {
	Config SMTPConfig
}

func ReceiptData(p model.Payment, orderIds []uint) PaymentReceiptData {
	data := PaymentReceiptData{
		PaymentCode: p.PaymentCode,
		OrderIds:    JoinOrderIds(orderIds),
		Amount:      p.Amount,
		Method:      string(p.Method),
		Status:      model.FormatStatus(p.Status),
		QRContent:   p.QRCode,
	}
	if p.ProcessedAt != nil {
		data.PaidAt = p.ProcessedAt.Format("02/01/2006 15:04")
	}
	return data
}

func (m ReceiptMailer) SendReceipt(to string, p model.Payment) error {
	orderIds, err := DecodeOrderReference(p.OrderReference)
	if err != nil {
		orderIds = []uint{p.OrderId}
	}
	return SendPaymentReceiptEmail(m.Config, to, ReceiptData(p, orderIds))
}
