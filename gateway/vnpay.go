package gateway

import (
	"commerce_settlement/constants"
	"commerce_settlement/model"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var vnpayLocation = time.FixedZone("ICT", 7*3600)

// VNPay Service
type VNPay struct {
	Config model.VNPayConfig
	now    func() time.Time
}

func NewVNPay(cfg model.VNPayConfig) *VNPay {
	return &VNPay{Config: cfg, now: time.Now}
}

// BuildPaymentUrl returns the signed pay URL; the URL is also the QR content.
func (v *VNPay) BuildPaymentUrl(req model.VNPayRequest, ttl time.Duration) (string, error) {
	if req.Amount <= 0 {
		return "", model.ErrInvalidAmount
	}
	if req.TxnRef == "" {
		return "", fmt.Errorf("vnpay: empty txn ref")
	}
	now := v.now().In(vnpayLocation)

	params := url.Values{}
	params.Add("vnp_Version", "2.1.0")
	params.Add("vnp_Command", "pay")
	params.Add("vnp_TmnCode", v.Config.TmnCode)
	params.Add("vnp_Amount", strconv.FormatInt(req.Amount*100, 10)) // VND * 100
	params.Add("vnp_CreateDate", now.Format("20060102150405"))
	params.Add("vnp_CurrCode", "VND")
	params.Add("vnp_IpAddr", req.IPAddr)
	params.Add("vnp_Locale", "vn")
	params.Add("vnp_OrderInfo", req.OrderInfo)
	params.Add("vnp_OrderType", "other")
	params.Add("vnp_ReturnUrl", v.Config.ReturnURL)
	params.Add("vnp_TxnRef", req.TxnRef)
	params.Add("vnp_ExpireDate", now.Add(ttl).Format("20060102150405"))

	// Encode sorts the keys, which is the order the hash is computed over
	query := params.Encode()
	return v.Config.BaseURL + "?" + query + "&vnp_SecureHash=" + v.generateHash(query), nil
}

// Verify checks the signature of a return or IPN query and extracts the result.
func (v *VNPay) Verify(query url.Values) model.VNPayResult {
	q := url.Values{}
	for k, vals := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		q[k] = vals
	}

	secureHash := query.Get("vnp_SecureHash")
	if secureHash == "" || !hmac.Equal([]byte(secureHash), []byte(v.generateHash(q.Encode()))) {
		return model.VNPayResult{Valid: false, Message: "Invalid hash"}
	}

	amount, _ := strconv.ParseInt(q.Get("vnp_Amount"), 10, 64)
	code := q.Get("vnp_ResponseCode")
	txStatus := q.Get("vnp_TransactionStatus")
	res := model.VNPayResult{
		Valid:         true,
		TxnRef:        q.Get("vnp_TxnRef"),
		TransactionNo: q.Get("vnp_TransactionNo"),
		OrderInfo:     q.Get("vnp_OrderInfo"),
		Amount:        amount / 100,
		ResponseCode:  code,
		IsSuccess:     code == "00" && (txStatus == "" || txStatus == "00"),
	}
	if res.IsSuccess {
		res.Message = "Success"
	} else {
		res.Message = "Payment failed"
	}
	return res
}

// Notification converts a verified result; OrderInfo carries the order description.
func (v *VNPay) Notification(res model.VNPayResult, raw []byte) model.Notification {
	status := "failure"
	if res.IsSuccess {
		status = "success"
	}
	txID := res.TransactionNo
	if txID == "" || txID == "0" {
		txID = res.TxnRef
	}
	return model.Notification{
		Gateway:       constants.GATEWAY_VNPAY,
		TransactionId: txID,
		Reference:     res.OrderInfo,
		Amount:        res.Amount,
		Status:        status,
		Raw:           raw,
	}
}

// SignQuery returns the secure hash for an already-encoded query.
func (v *VNPay) SignQuery(values url.Values) string {
	return v.generateHash(values.Encode())
}

func (v *VNPay) generateHash(data string) string {
	h := hmac.New(sha512.New, []byte(v.Config.HashSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
