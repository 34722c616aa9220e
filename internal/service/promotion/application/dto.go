package application

import "gusto/internal/service/promotion/domain"

// PreviewRequest 是 preview / list_applicable 的请求体。
type PreviewRequest struct {
	Cart    domain.Cart              `json:"cart"`
	Context domain.EvaluationContext `json:"context"`
}

// ValidateCodeRequest 是单个券码校验的请求体。
type ValidateCodeRequest struct {
	Code    string                   `json:"code"`
	Cart    domain.Cart              `json:"cart"`
	Context domain.EvaluationContext `json:"context"`
}

// CommitRequest 把预览阶段接受的促销落账。
type CommitRequest struct {
	OrderID      string                   `json:"orderId"`
	PromotionIDs []int64                  `json:"promotionIds"`
	Cart         domain.Cart              `json:"cart"`
	Context      domain.EvaluationContext `json:"context"`
}

// CancelRequest 在宽限期内回滚一次已提交的核销。
type CancelRequest struct {
	ReceiptID    string  `json:"receiptId"`
	PromotionIDs []int64 `json:"promotionIds"`
}
