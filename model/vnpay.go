package model

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
	IPNURL     string
}

type VNPayRequest struct {
	Amount    int64  `json:"amount"`
	OrderInfo string `json:"orderInfo"`
	TxnRef    string `json:"txnRef"`
	IPAddr    string `json:"ipAddr"`
}

type VNPayResult struct {
	Valid         bool   `json:"valid"`
	IsSuccess     bool   `json:"isSuccess"`
	TxnRef        string `json:"txnRef"`
	TransactionNo string `json:"transactionNo"`
	OrderInfo     string `json:"orderInfo"`
	Amount        int64  `json:"amount"`
	ResponseCode  string `json:"responseCode"`
	Message       string `json:"message"`
}
