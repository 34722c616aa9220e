package domain

import "time"

// CandidateState 描述单个促销在一次求值中的生命周期：
// CANDIDATE → {ELIGIBLE, INELIGIBLE} → (ELIGIBLE 时) {ACCEPTED, REJECTED}
// → (ACCEPTED 且 commit 时) {COMMITTED, COMMIT_FAILED}。
type CandidateState string

const (
	StateCandidate    CandidateState = "CANDIDATE"
	StateEligible     CandidateState = "ELIGIBLE"
	StateIneligible   CandidateState = "INELIGIBLE"
	StateAccepted     CandidateState = "ACCEPTED"
	StateRejected     CandidateState = "REJECTED"
	StateCommitted    CandidateState = "COMMITTED"
	StateCommitFailed CandidateState = "COMMIT_FAILED"
)

// TriggerKind 标记候选是自动参与还是由券码触发。
// 两类候选走同一条匹配/裁决管线，只在排序时区分先后。
type TriggerKind string

const (
	TriggerAuto TriggerKind = "AUTO"
	TriggerCode TriggerKind = "CODE"
)

// MatchedLine 记录促销目标在购物车中命中的行引用。
// UnitPrice 是有效单价（见 CartItem.EffectiveUnitPrice），计算器据此
// 定价；MenuItemID/CategoryID 让计算器能把行对回它命中的目标。
type MatchedLine struct {
	LineIndex  int // cart.Items 的下标
	Quantity   int // 该行参与优惠的件数
	UnitPrice  float64
	MenuItemID string
	CategoryID string
}

// Candidate 是匹配器对单个目录促销的标注结果，随后由裁决器与计算器就地推进状态。
type Candidate struct {
	Promotion    *Promotion
	CatalogIndex int // 目录插入序，用作稳定排序的最后一级
	Trigger      TriggerKind

	State         CandidateState
	Reason        ReasonCode
	ReasonMessage string

	Matched  []MatchedLine
	Estimate float64 // 裁决排序用的试算折扣
	Discount float64 // 计算器产出的最终折扣
}

// Ineligible 将候选标记为不合格并记录原因。
func (c *Candidate) Ineligible(reason ReasonCode, message string) {
	c.State = StateIneligible
	c.Reason = reason
	c.ReasonMessage = message
}

// Reject 将合格候选标记为被冲突排除。
func (c *Candidate) Reject(reason ReasonCode, message string) {
	c.State = StateRejected
	c.Reason = reason
	c.ReasonMessage = message
}

// ApplicablePromotion 是面向调用方的单条候选结果。
type ApplicablePromotion struct {
	PromotionID    int64         `json:"promotionId"`
	Name           string        `json:"name"`
	Type           PromotionType `json:"type"`
	DiscountAmount float64       `json:"discountAmount"`
	Applied        bool          `json:"applied"`
	Reason         string        `json:"reason,omitempty"`
}

// PromotionPreview 是 preview 操作的完整输出。
type PromotionPreview struct {
	OriginalSubtotal     float64               `json:"originalSubtotal"`
	TotalDiscount        float64               `json:"totalDiscount"`
	EstimatedFinalAmount float64               `json:"estimatedFinalAmount"`
	Promotions           []ApplicablePromotion `json:"promotions"`
}

// PromotionValidation 是 validateCode 的结果。业务性失败不抛错误，
// 而是 Valid=false 加上稳定错误码，调用方可以只渲染部分结果。
type PromotionValidation struct {
	Valid             bool    `json:"valid"`
	PromotionID       int64   `json:"promotionId,omitempty"`
	EstimatedDiscount float64 `json:"estimatedDiscount"`
	Error             *Error  `json:"error,omitempty"`
}

// CommittedPromotion 是回执中的单条核销记录。
type CommittedPromotion struct {
	PromotionID    int64   `json:"promotionId"`
	Name           string  `json:"name"`
	DiscountAmount float64 `json:"discountAmount"`
}

// CommitReceipt 是 commit 成功后的回执，ReceiptID 也是宽限期内回滚的凭据。
type CommitReceipt struct {
	ReceiptID     string               `json:"receiptId"`
	OrderID       string               `json:"orderId"`
	CustomerID    string               `json:"customerId"`
	Committed     []CommittedPromotion `json:"committed"`
	TotalDiscount float64              `json:"totalDiscount"`
	CommittedAt   time.Time            `json:"committedAt"`
}
