package infrastructure

import (
	"strconv"
	"strings"

	"gusto/internal/service/promotion/domain"
)

// ToDomainPromotion 将数据库模型转换为领域模型。
func ToDomainPromotion(model *PromotionModel) *domain.Promotion {
	if model == nil {
		return nil
	}
	p := &domain.Promotion{
		ID:          int64(model.ID),
		Name:        model.Name,
		Description: model.Description,
		Type:        domain.PromotionType(model.Type),

		DiscountType:      domain.DiscountType(model.DiscountType),
		DiscountValue:     model.DiscountValue,
		FixedPrice:        model.FixedPrice,
		MaxDiscountAmount: model.MaxDiscountAmount,

		MinCartValue: model.MinCartValue,
		MinItems:     model.MinItems,
		MaxItems:     model.MaxItems,

		UsageLimit:       model.UsageLimit,
		UsageCount:       model.UsageCount,
		PerCustomerLimit: model.PerCustomerLimit,

		StartDate:      model.StartDate,
		EndDate:        model.EndDate,
		TimeRangeStart: model.TimeRangeStart,
		TimeRangeEnd:   model.TimeRangeEnd,
		DaysOfWeek:     splitInts(model.DaysOfWeek),

		RequiresCode: model.RequiresCode,
		PromoCode:    model.PromoCode,
		AutoApply:    model.AutoApply,

		CustomerSegments: splitStrings(model.CustomerSegments),
		CustomerTypes:    splitStrings(model.CustomerTypes),

		Priority:             model.Priority,
		CanCombineWithOthers: model.CanCombineWithOthers,
		IsActive:             model.IsActive,
	}
	for _, it := range model.Items {
		p.Items = append(p.Items, domain.PromotionItem{
			MenuItemID:       it.MenuItemID,
			CategoryID:       it.CategoryID,
			RequiredQuantity: it.RequiredQuantity,
			FreeQuantity:     it.FreeQuantity,
			DiscountedPrice:  it.DiscountedPrice,
			IsRequired:       it.IsRequired,
			MaxQuantity:      it.MaxQuantity,
		})
	}
	return p
}

// FromDomainPromotion 将领域模型转换为数据库模型（管理面写入用）。
func FromDomainPromotion(p *domain.Promotion) *PromotionModel {
	if p == nil {
		return nil
	}
	model := &PromotionModel{
		Name:        p.Name,
		Description: p.Description,
		Type:        string(p.Type),

		DiscountType:      string(p.DiscountType),
		DiscountValue:     p.DiscountValue,
		FixedPrice:        p.FixedPrice,
		MaxDiscountAmount: p.MaxDiscountAmount,

		MinCartValue: p.MinCartValue,
		MinItems:     p.MinItems,
		MaxItems:     p.MaxItems,

		UsageLimit:       p.UsageLimit,
		UsageCount:       p.UsageCount,
		PerCustomerLimit: p.PerCustomerLimit,

		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		TimeRangeStart: p.TimeRangeStart,
		TimeRangeEnd:   p.TimeRangeEnd,
		DaysOfWeek:     joinInts(p.DaysOfWeek),

		RequiresCode: p.RequiresCode,
		PromoCode:    p.PromoCode,
		AutoApply:    p.AutoApply,

		CustomerSegments: strings.Join(p.CustomerSegments, ","),
		CustomerTypes:    strings.Join(p.CustomerTypes, ","),

		Priority:             p.Priority,
		CanCombineWithOthers: p.CanCombineWithOthers,
		IsActive:             p.IsActive,
	}
	model.ID = uint(p.ID)
	for _, it := range p.Items {
		model.Items = append(model.Items, PromotionItemModel{
			PromotionID:      uint(p.ID),
			MenuItemID:       it.MenuItemID,
			CategoryID:       it.CategoryID,
			RequiredQuantity: it.RequiredQuantity,
			FreeQuantity:     it.FreeQuantity,
			DiscountedPrice:  it.DiscountedPrice,
			IsRequired:       it.IsRequired,
			MaxQuantity:      it.MaxQuantity,
		})
	}
	return model
}

func splitStrings(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(s string) []int {
	var out []int
	for _, p := range splitStrings(s) {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
