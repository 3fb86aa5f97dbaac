package constants

const (
	ROLE_ADMIN    = "ADMIN"
	ROLE_CUSTOMER = "CUSTOMER"
	ROLE_SERVICE  = "SERVICE"
)

// Kafka topics
const (
	TOPIC_PAYMENT_CREATED   = "payment.created"
	TOPIC_PAYMENT_PROCESSED = "payment.processed"
	TOPIC_PAYMENT_REFUNDED  = "payment.refunded"
)

// Order collaborator values
const (
	ORDER_PAYMENT_PAID     = "PAID"
	ORDER_PAYMENT_FAILED   = "FAILED"
	ORDER_STATUS_CONFIRMED = "CONFIRMED"
)

const (
	GATEWAY_VNPAY   = "VNPAY"
	GATEWAY_STRIPE  = "STRIPE"
	GATEWAY_GENERIC = "GENERIC"
)

const (
	ERROR_INTERNAL_ERROR     = "Lỗi hệ thống, vui lòng thử lại sau"
	DATA_INPUT_IS_NOT_NUMBER = "Dữ liệu đầu vào phải là số"
	ERROR_INVALID_BODY       = "Không thể phân tích yêu cầu"
	ERROR_UNAUTHORIZED       = "Vui lòng đăng nhập"
	ERROR_FORBIDDEN          = "Bạn không có quyền thực hiện thao tác này"
	PAYMENT_NOT_FOUND        = "Không tìm thấy thanh toán"
	PAYMENT_CREATED          = "Tạo thanh toán thành công"
	PAYMENT_STATUS_UPDATED   = "Cập nhật trạng thái thanh toán thành công"
	PAYMENT_REFUNDED         = "Hoàn tiền thành công"
	PAYMENT_DELETED          = "Xóa thanh toán thành công"
	PAYMENT_INVALID_REQUEST  = "Yêu cầu thanh toán không hợp lệ"
	PAYMENT_CONFLICT         = "Trạng thái thanh toán không cho phép thao tác này"
	CALLBACK_RECEIVED        = "Đã nhận thông báo thanh toán"
)
