package domain

import "context"

// PromotionRepository 是目录的只读端口，是领域层与基础设施层之间的"插座"。
// 实现方必须保证返回顺序与目录插入序一致：裁决器把它用作稳定排序的最后一级。
type PromotionRepository interface {
	// ListActive 返回当前生效的促销快照（已通过 Validate 的规则）。
	ListActive(ctx context.Context) ([]*Promotion, error)
	// FindByCode 按券码查找促销，未找到时返回 ErrPromotionNotFound。
	FindByCode(ctx context.Context, code string) (*Promotion, error)
}
