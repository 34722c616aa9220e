package domain

import (
	"time"
)

// PromotionType 定义了促销活动的业务形态。
type PromotionType string

const (
	TypeCartDiscount PromotionType = "CART_DISCOUNT" // 整单折扣
	TypeItemDiscount PromotionType = "ITEM_DISCOUNT" // 单品/品类折扣
	TypeBOGO         PromotionType = "BOGO"          // 买赠
	TypeComboDeal    PromotionType = "COMBO_DEAL"    // 套餐组合
	TypeFixedPrice   PromotionType = "FIXED_PRICE"   // 一口价
	TypeTimeBased    PromotionType = "TIME_BASED"    // 时段特惠
	TypeCoupon       PromotionType = "COUPON"        // 券码触发
)

// DiscountType 定义了优惠的计算方式。
// 这是一个封闭的枚举：Calculator 对它做穷举分发，新增形态是编译期可见的局部改动，
// 而不是开放多态。
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"   // 按百分比
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT" // 满减/立减
	DiscountFixedPrice  DiscountType = "FIXED_PRICE"  // 一口价
	DiscountFreeItem    DiscountType = "FREE_ITEM"    // 赠品(BOGO)
)

// Promotion 是促销规则的核心定义。
// 引擎对它只读：规则的创建与编辑由外部管理面完成，UsageCount 只能经由 UsageLedger
// 在 commit 时变更，其余任何组件都不得写它。
type Promotion struct {
	ID          int64
	Name        string
	Description string
	Type        PromotionType

	DiscountType      DiscountType
	DiscountValue     float64 // PERCENTAGE 时为百分比(0-100]，FIXED_AMOUNT 时为金额
	FixedPrice        float64 // DiscountType 为 FIXED_PRICE 时生效
	MaxDiscountAmount float64 // 单次优惠封顶，0 表示不封顶

	// --- 门槛条件 ---
	MinCartValue float64
	MinItems     int
	MaxItems     int // 0 表示不限

	// --- 核销限额 ---
	UsageLimit       int64 // 全局核销上限，0 表示不限
	UsageCount       int64 // 目录快照中的已核销次数
	PerCustomerLimit int64 // 单客上限，0 表示不限

	// --- 生效窗口 ---
	StartDate      time.Time
	EndDate        time.Time
	TimeRangeStart string // "HH:MM"，允许跨午夜，如 22:00-02:00
	TimeRangeEnd   string
	DaysOfWeek     []int // ISO 星期，1=周一 ... 7=周日，空表示每天

	// --- 触发方式 ---
	RequiresCode bool
	PromoCode    string
	AutoApply    bool

	// --- 客群限定 ---
	CustomerSegments []string
	CustomerTypes    []string

	// --- 冲突裁决 ---
	Priority             int // 数值越大越优先
	CanCombineWithOthers bool

	IsActive bool
	Items    []PromotionItem
}

// PromotionItem 描述促销对菜单项或品类的指向。
// MenuItemID 与 CategoryID 二选一，MenuItemID 优先。
type PromotionItem struct {
	MenuItemID       string
	CategoryID       string
	RequiredQuantity int
	FreeQuantity     int
	DiscountedPrice  float64
	IsRequired       bool
	MaxQuantity      int // 参与优惠的数量上限，0 表示不限
}

// TargetsItems 判断该促销是否需要解析 PromotionItem 目标。
func (p *Promotion) TargetsItems() bool {
	switch p.Type {
	case TypeItemDiscount, TypeBOGO, TypeComboDeal:
		return true
	}
	return false
}

// Validate 是目录加载时的完整性校验：畸形的规则在这里被拒绝，
// 永远不会进入求值流程。
func (p *Promotion) Validate() error {
	if p.Name == "" {
		return NewError(ReasonNotFound, "promotion has no name")
	}
	if p.TargetsItems() && len(p.Items) == 0 {
		return NewError(ReasonNotFound, "item-targeted promotion has no targets")
	}
	for _, it := range p.Items {
		if it.MenuItemID == "" && it.CategoryID == "" {
			return NewError(ReasonNotFound, "promotion item has neither menu item nor category target")
		}
	}
	if p.DiscountValue < 0 || p.FixedPrice < 0 || p.MaxDiscountAmount < 0 {
		return NewError(ReasonNotFound, "promotion has negative monetary fields")
	}
	if p.DiscountType == DiscountPercentage && (p.DiscountValue <= 0 || p.DiscountValue > 100) {
		return NewError(ReasonNotFound, "percentage discount outside (0,100]")
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return NewError(ReasonNotFound, "promotion end date before start date")
	}
	if p.RequiresCode && p.PromoCode == "" {
		return NewError(ReasonNotFound, "code-triggered promotion has no code")
	}
	for _, d := range p.DaysOfWeek {
		if d < 1 || d > 7 {
			return NewError(ReasonNotFound, "day of week outside ISO range 1-7")
		}
	}
	if (p.TimeRangeStart == "") != (p.TimeRangeEnd == "") {
		return NewError(ReasonNotFound, "time range must set both ends or neither")
	}
	if p.TimeRangeStart != "" {
		if _, err := parseClock(p.TimeRangeStart); err != nil {
			return NewError(ReasonNotFound, "invalid time range start")
		}
		if _, err := parseClock(p.TimeRangeEnd); err != nil {
			return NewError(ReasonNotFound, "invalid time range end")
		}
	}
	return nil
}
