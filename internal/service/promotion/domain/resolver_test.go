package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resolveCatalog(t *testing.T, catalog []*Promotion, cart *Cart, ectx *EvaluationContext) []*Candidate {
	t.Helper()
	cands := MatchCatalog(catalog, cart, ectx, UsageView{})
	return Resolve(cands, cart, ectx, UsageView{})
}

func TestResolveOrdersByPriority(t *testing.T) {
	low := autoPromotion(1)
	low.Priority = 5
	low.CanCombineWithOthers = true
	high := autoPromotion(2)
	high.Priority = 10
	high.CanCombineWithOthers = true

	accepted := resolveCatalog(t, []*Promotion{low, high}, simpleCart(), &EvaluationContext{Timestamp: monday})

	assert.Len(t, accepted, 2)
	assert.Equal(t, int64(2), accepted[0].Promotion.ID)
	assert.Equal(t, int64(1), accepted[1].Promotion.ID)
}

func TestResolveExclusiveWinnerRejectsRest(t *testing.T) {
	exclusive := autoPromotion(1)
	exclusive.Priority = 10
	other := autoPromotion(2)
	other.Priority = 5
	other.CanCombineWithOthers = true

	cands := MatchCatalog([]*Promotion{exclusive, other}, simpleCart(), &EvaluationContext{Timestamp: monday}, UsageView{})
	accepted := Resolve(cands, simpleCart(), &EvaluationContext{Timestamp: monday}, UsageView{})

	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(1), accepted[0].Promotion.ID)
	assert.Equal(t, StateRejected, cands[1].State)
	assert.Equal(t, ReasonExclusiveConflict, cands[1].Reason)
}

func TestResolveExclusiveCannotJoinExisting(t *testing.T) {
	combinable := autoPromotion(1)
	combinable.Priority = 10
	combinable.CanCombineWithOthers = true
	exclusive := autoPromotion(2)
	exclusive.Priority = 5

	cands := MatchCatalog([]*Promotion{combinable, exclusive}, simpleCart(), &EvaluationContext{Timestamp: monday}, UsageView{})
	accepted := Resolve(cands, simpleCart(), &EvaluationContext{Timestamp: monday}, UsageView{})

	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(1), accepted[0].Promotion.ID)
	assert.Equal(t, ReasonExclusiveConflict, cands[1].Reason)
}

func TestResolveCodeTriggerBeatsHigherPriorityAuto(t *testing.T) {
	auto := autoPromotion(1)
	auto.Priority = 10
	coupon := autoPromotion(2)
	coupon.Type = TypeCoupon
	coupon.AutoApply = false
	coupon.RequiresCode = true
	coupon.PromoCode = "WELCOME"
	coupon.Priority = 1

	ectx := &EvaluationContext{Timestamp: monday, Codes: []string{"WELCOME"}}
	cands := MatchCatalog([]*Promotion{auto, coupon}, simpleCart(), ectx, UsageView{})
	accepted := Resolve(cands, simpleCart(), ectx, UsageView{})

	// 顾客显式提交的券码优先于自动参与，即便其 priority 更低
	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(2), accepted[0].Promotion.ID)
}

func TestResolveCartDiscountAppliesLast(t *testing.T) {
	item := &Promotion{
		ID:                   1,
		Name:                 "burger deal",
		Type:                 TypeItemDiscount,
		DiscountType:         DiscountFixedAmount,
		DiscountValue:        2.00,
		AutoApply:            true,
		CanCombineWithOthers: true,
		Priority:             1,
		Items:                []PromotionItem{{MenuItemID: "burger"}},
	}
	cartWide := autoPromotion(2)
	cartWide.Priority = 10
	cartWide.CanCombineWithOthers = true

	accepted := resolveCatalog(t, []*Promotion{item, cartWide}, simpleCart(), &EvaluationContext{Timestamp: monday})

	assert.Len(t, accepted, 2)
	assert.Equal(t, TypeItemDiscount, accepted[0].Promotion.Type)
	assert.Equal(t, TypeCartDiscount, accepted[1].Promotion.Type)
}

func TestResolveLineClaimConflict(t *testing.T) {
	first := &Promotion{
		ID:                   1,
		Name:                 "half price burger",
		Type:                 TypeItemDiscount,
		DiscountType:         DiscountPercentage,
		DiscountValue:        50,
		AutoApply:            true,
		CanCombineWithOthers: true,
		Priority:             10,
		Items:                []PromotionItem{{MenuItemID: "burger"}},
	}
	second := &Promotion{
		ID:                   2,
		Name:                 "burger dollar off",
		Type:                 TypeItemDiscount,
		DiscountType:         DiscountFixedAmount,
		DiscountValue:        1.00,
		AutoApply:            true,
		CanCombineWithOthers: true,
		Priority:             5,
		Items:                []PromotionItem{{MenuItemID: "burger"}},
	}
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "burger", Quantity: 1, UnitPrice: 10.00},
	}}

	ectx := &EvaluationContext{Timestamp: monday}
	cands := MatchCatalog([]*Promotion{first, second}, cart, ectx, UsageView{})
	accepted := Resolve(cands, cart, ectx, UsageView{})

	// 一行一主：burger 行被高优先促销认领，第二个促销无行可用
	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(1), accepted[0].Promotion.ID)
	assert.Equal(t, StateRejected, cands[1].State)
	assert.Equal(t, ReasonExclusiveConflict, cands[1].Reason)
}

func TestResolveLineClaimRematchOnOtherLines(t *testing.T) {
	first := &Promotion{
		ID:                   1,
		Name:                 "cheap drink",
		Type:                 TypeItemDiscount,
		DiscountType:         DiscountPercentage,
		DiscountValue:        50,
		AutoApply:            true,
		CanCombineWithOthers: true,
		Priority:             10,
		Items:                []PromotionItem{{CategoryID: "drinks", RequiredQuantity: 1}},
	}
	second := &Promotion{
		ID:                   2,
		Name:                 "drink dollar off",
		Type:                 TypeItemDiscount,
		DiscountType:         DiscountFixedAmount,
		DiscountValue:        1.00,
		AutoApply:            true,
		CanCombineWithOthers: true,
		Priority:             5,
		Items:                []PromotionItem{{CategoryID: "drinks", RequiredQuantity: 1}},
	}
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "espresso", CategoryID: "drinks", Quantity: 1, UnitPrice: 3.00},
		{MenuItemID: "latte", CategoryID: "drinks", Quantity: 1, UnitPrice: 5.00},
	}}

	ectx := &EvaluationContext{Timestamp: monday}
	cands := MatchCatalog([]*Promotion{first, second}, cart, ectx, UsageView{})
	accepted := Resolve(cands, cart, ectx, UsageView{})

	// 两个促销各自认领一行：先者拿走便宜的 espresso，后者重匹配到 latte
	assert.Len(t, accepted, 2)
	assert.Equal(t, 0, accepted[0].Matched[0].LineIndex)
	assert.Equal(t, 1, accepted[1].Matched[0].LineIndex)
}

func TestResolveSkipsIneligibleCandidates(t *testing.T) {
	expired := autoPromotion(1)
	expired.EndDate = monday.Add(-time.Hour)
	valid := autoPromotion(2)

	cands := MatchCatalog([]*Promotion{expired, valid}, simpleCart(), &EvaluationContext{Timestamp: monday}, UsageView{})
	accepted := Resolve(cands, simpleCart(), &EvaluationContext{Timestamp: monday}, UsageView{})

	assert.Len(t, accepted, 1)
	assert.Equal(t, int64(2), accepted[0].Promotion.ID)
	assert.Equal(t, StateIneligible, cands[0].State)
}
