package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// PromotionModel 对应 promotions 表。集合型字段（星期、客群）存为逗号
// 分隔文本，由 mapper 负责与领域切片互转。
type PromotionModel struct {
	gorm.Model
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	Type        string `gorm:"size:32;index"`

	DiscountType      string  `gorm:"size:32"`
	DiscountValue     float64 `gorm:"type:decimal(10,2)"`
	FixedPrice        float64 `gorm:"type:decimal(10,2)"`
	MaxDiscountAmount float64 `gorm:"type:decimal(10,2)"`

	MinCartValue float64 `gorm:"type:decimal(10,2)"`
	MinItems     int
	MaxItems     int

	UsageLimit       int64
	UsageCount       int64
	PerCustomerLimit int64

	StartDate      time.Time
	EndDate        time.Time
	TimeRangeStart string `gorm:"size:5"`
	TimeRangeEnd   string `gorm:"size:5"`
	DaysOfWeek     string `gorm:"size:16"`

	RequiresCode bool
	PromoCode    string `gorm:"size:64;index"`
	AutoApply    bool

	CustomerSegments string `gorm:"type:text"`
	CustomerTypes    string `gorm:"type:text"`

	Priority             int
	CanCombineWithOthers bool
	IsActive             bool `gorm:"index"`

	Items []PromotionItemModel `gorm:"foreignKey:PromotionID"`
}

func (PromotionModel) TableName() string { return "promotions" }

// PromotionItemModel 对应 promotion_items 表。
type PromotionItemModel struct {
	gorm.Model
	PromotionID      uint   `gorm:"index"`
	MenuItemID       string `gorm:"size:64"`
	CategoryID       string `gorm:"size:64"`
	RequiredQuantity int
	FreeQuantity     int
	DiscountedPrice  float64 `gorm:"type:decimal(10,2)"`
	IsRequired       bool
	MaxQuantity      int
}

func (PromotionItemModel) TableName() string { return "promotion_items" }

// RedemptionModel 是账本的逐笔核销记录，回滚凭 receipt_id 定位。
type RedemptionModel struct {
	ID          uint   `gorm:"primaryKey"`
	PromotionID int64  `gorm:"index:idx_redemption_promo_receipt"`
	ReceiptID   string `gorm:"size:36;index:idx_redemption_promo_receipt"`
	CustomerID  string `gorm:"size:64;index"`
	RedeemedAt  time.Time
	RolledBack  bool
}

func (RedemptionModel) TableName() string { return "promotion_redemptions" }

// UsageCounterModel 是账本的计数行：全局行 customer_id 为空串，
// 单客行带 customer_id。(promotion_id, customer_id) 唯一。
type UsageCounterModel struct {
	ID          uint   `gorm:"primaryKey"`
	PromotionID int64  `gorm:"uniqueIndex:idx_usage_promo_customer"`
	CustomerID  string `gorm:"size:64;uniqueIndex:idx_usage_promo_customer"`
	Count       int64
}

func (UsageCounterModel) TableName() string { return "promotion_usage_counters" }
