package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"gusto/internal/pkg/logger"
	"gusto/internal/service/promotion/domain"
)

// GormPromotionRepository 是 PromotionRepository 的 GORM 实现。
// 畸形的规则在这里被拦下并记日志，绝不流入求值管线。
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewGormPromotionRepository 创建一个新的 GORM 仓储实例。
func NewGormPromotionRepository(db *gorm.DB) *GormPromotionRepository {
	return &GormPromotionRepository{db: db}
}

// ListActive 返回生效中的促销快照，按主键升序即目录插入序。
func (r *GormPromotionRepository) ListActive(ctx context.Context) ([]*domain.Promotion, error) {
	var models []*PromotionModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active promotions")
	}

	promotions := make([]*domain.Promotion, 0, len(models))
	for _, m := range models {
		p := ToDomainPromotion(m)
		if err := p.Validate(); err != nil {
			// 目录完整性错误：拒绝加载，不影响其余规则
			logger.Ctx(ctx).Warn().Err(err).Int64("promotion_id", p.ID).Msg("skipping malformed promotion definition")
			continue
		}
		promotions = append(promotions, p)
	}
	return promotions, nil
}

// FindByCode 按券码查找启用中的促销。
func (r *GormPromotionRepository) FindByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	var model PromotionModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("promo_code = ? AND is_active = ?", code, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPromotionNotFound
		}
		return nil, errors.Wrap(err, "failed to find promotion by code")
	}

	p := ToDomainPromotion(&model)
	if err := p.Validate(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("promotion_id", p.ID).Msg("promotion definition failed integrity check")
		return nil, domain.ErrPromotionNotFound
	}
	return p, nil
}

// Save 供管理面写入/更新规则；引擎自身不调用它。
func (r *GormPromotionRepository) Save(ctx context.Context, p *domain.Promotion) error {
	if err := p.Validate(); err != nil {
		return err
	}
	model := FromDomainPromotion(p)
	return errors.Wrap(r.db.WithContext(ctx).Save(model).Error, "failed to save promotion")
}
