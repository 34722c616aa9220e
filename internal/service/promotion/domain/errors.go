package domain

// ReasonCode 是对外暴露的稳定错误码，取值是一个封闭集合。
// 候选的不合格原因与校验/提交错误共用同一套码，避免两套平行的分支。
type ReasonCode string

const (
	ReasonNotFound                ReasonCode = "NOT_FOUND"
	ReasonExpired                 ReasonCode = "EXPIRED"
	ReasonMinCartNotMet           ReasonCode = "MIN_CART_NOT_MET"
	ReasonMinItemsNotMet          ReasonCode = "MIN_ITEMS_NOT_MET"
	ReasonUsageLimitReached       ReasonCode = "USAGE_LIMIT_REACHED"
	ReasonPerCustomerLimitReached ReasonCode = "PER_CUSTOMER_LIMIT_REACHED"
	ReasonExclusiveConflict       ReasonCode = "EXCLUSIVE_CONFLICT"
	ReasonAlreadyApplied          ReasonCode = "ALREADY_APPLIED"
	ReasonOutsideTimeWindow       ReasonCode = "OUTSIDE_TIME_WINDOW"
	ReasonOutsideDayWindow        ReasonCode = "OUTSIDE_DAY_WINDOW"
	ReasonSegmentMismatch         ReasonCode = "SEGMENT_MISMATCH"
	ReasonConcurrentModification  ReasonCode = "CONCURRENT_MODIFICATION"
)

// Error 是引擎对外的稳定错误形态 {code, message}。
type Error struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is 让 errors.Is 按错误码匹配，便于 interfaces 层做 HTTP 状态码映射。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError 构造一个带稳定错误码的领域错误。
func NewError(code ReasonCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 哨兵错误：接口层用 errors.Is 依它们分流。
var (
	ErrPromotionNotFound      = NewError(ReasonNotFound, "promotion not found")
	ErrPromotionExpired       = NewError(ReasonExpired, "promotion is outside its active window")
	ErrMinCartNotMet          = NewError(ReasonMinCartNotMet, "cart value below promotion minimum")
	ErrMinItemsNotMet         = NewError(ReasonMinItemsNotMet, "cart items do not satisfy promotion requirements")
	ErrUsageLimitReached      = NewError(ReasonUsageLimitReached, "promotion usage limit reached")
	ErrPerCustomerLimit       = NewError(ReasonPerCustomerLimitReached, "per-customer usage limit reached")
	ErrExclusiveConflict      = NewError(ReasonExclusiveConflict, "promotion conflicts with an exclusive promotion")
	ErrAlreadyApplied         = NewError(ReasonAlreadyApplied, "promotion code already applied")
	ErrOutsideTimeWindow      = NewError(ReasonOutsideTimeWindow, "outside promotion time-of-day window")
	ErrOutsideDayWindow       = NewError(ReasonOutsideDayWindow, "outside promotion day-of-week window")
	ErrSegmentMismatch        = NewError(ReasonSegmentMismatch, "customer segment not covered by promotion")
	ErrConcurrentModification = NewError(ReasonConcurrentModification, "usage counter contention, retries exhausted")
)
