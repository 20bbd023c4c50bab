package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrLoginDisabled      ErrCode = "LOGIN_DISABLED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Room-specific ─────────────────────────────────────────────────
	ErrSessionFinished     ErrCode = "SESSION_FINISHED"
	ErrInvalidKeyUpdate    ErrCode = "INVALID_KEY_UPDATE"
	ErrNoSubmissions       ErrCode = "NO_SUBMISSIONS"
	ErrUnknownPeer         ErrCode = "UNKNOWN_PEER"
	ErrIdentifierTaken     ErrCode = "IDENTIFIER_TAKEN"
	ErrExaminerUnavailable ErrCode = "EXAMINER_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Mật khẩu không đúng."
	case ErrLoginDisabled:
		return "Chưa cấu hình mật khẩu giám thị."
	case ErrTokenRequired:
		return "Cần có mã xác thực."
	case ErrTokenInvalid:
		return "Mã xác thực không hợp lệ hoặc đã hết hạn."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Dữ liệu không hợp lệ. Vui lòng kiểm tra lại."
	case ErrInvalidID:
		return "Số câu không hợp lệ."
	case ErrInvalidPayload:
		return "Nội dung yêu cầu không hợp lệ."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Không tìm thấy dữ liệu."

	// ─── Room-specific ─────────────────────────────────────────────────
	case ErrSessionFinished:
		return "Phòng thi đã kết thúc."
	case ErrInvalidKeyUpdate:
		return "Đáp án không hợp lệ."
	case ErrNoSubmissions:
		return "Chưa có dữ liệu bài làm để xuất báo cáo."
	case ErrUnknownPeer:
		return "Không tìm thấy phòng thi."
	case ErrIdentifierTaken:
		return "Mã phòng đang được sử dụng."
	case ErrExaminerUnavailable:
		return "Máy giám thị đang dừng."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Quá nhiều yêu cầu. Vui lòng thử lại sau."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Lỗi máy chủ nội bộ."
	default:
		return "Đã xảy ra lỗi không xác định."
	}
}
