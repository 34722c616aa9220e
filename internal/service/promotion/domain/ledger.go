package domain

import (
	"context"
	"time"
)

// UsageView 是一次求值用到的核销计数快照。
// Global/ByCustomer 缺某个促销的条目时，表示账本中尚无记录。
type UsageView struct {
	Global     map[int64]int64
	ByCustomer map[int64]int64
}

// GlobalCount 返回全局核销数，账本无记录时回退到目录快照值。
func (v UsageView) GlobalCount(p *Promotion) int64 {
	if v.Global != nil {
		if n, ok := v.Global[p.ID]; ok {
			return n
		}
	}
	return p.UsageCount
}

// CustomerCount 返回指定促销的单客核销数。
func (v UsageView) CustomerCount(promotionID int64) int64 {
	if v.ByCustomer == nil {
		return 0
	}
	return v.ByCustomer[promotionID]
}

// UsageLedger 是核销计数的唯一变更入口。
// usageCount 不允许成为游离的共享可变状态：除 Redeem/Rollback 之外，
// 任何组件都不得写它。
type UsageLedger interface {
	// Redeem 原子地执行"检查并占用"：仅当全局与单客限额都未达到时，
	// 两个计数各加一，并以 receiptID 记账以备回滚。检查与递增是对单个
	// 促销 ID 的单一不可分步骤；计数竞争时返回 ErrConcurrentModification，
	// 由编排器做有限次重试。
	Redeem(ctx context.Context, p *Promotion, customerID, receiptID string, at time.Time) error

	// Rollback 是 Redeem 的补偿操作，仅在宽限期内有效；超过宽限期核销
	// 永久生效（防薅羊毛的刻意策略），返回 ErrPromotionNotFound。
	Rollback(ctx context.Context, promotionID int64, receiptID string, at time.Time) error

	// Usage 读取一批促销的计数快照，customerID 为空时不取单客计数。
	Usage(ctx context.Context, promotionIDs []int64, customerID string) (UsageView, error)
}
