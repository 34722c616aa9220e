package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 3.33, Round2(3.333))
	assert.Equal(t, 0.13, Round2(0.125)) // half rounds up
	assert.Equal(t, 10.0, Round2(9.999))
	assert.Equal(t, 0.0, Round2(0))
}

func TestPercentageDiscount(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "burger", Quantity: 1, UnitPrice: 10.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:          TypeItemDiscount,
			DiscountType:  DiscountPercentage,
			DiscountValue: 33.33,
			Items:         []PromotionItem{{MenuItemID: "burger"}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 1, UnitPrice: 10.00}},
	}

	assert.Equal(t, 3.33, EstimateDiscount(cand, cart))
}

func TestPercentageDiscountWithCap(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "steak", Quantity: 2, UnitPrice: 30.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:              TypeCartDiscount,
			DiscountType:      DiscountPercentage,
			DiscountValue:     10,
			MaxDiscountAmount: 5.00,
			MinCartValue:      50.00,
		},
	}

	// 10% of 60 is 6, capped at 5
	assert.Equal(t, 5.00, EstimateDiscount(cand, cart))
}

func TestFixedAmountNeverExceedsBase(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "coffee", Quantity: 1, UnitPrice: 3.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:          TypeItemDiscount,
			DiscountType:  DiscountFixedAmount,
			DiscountValue: 5.00,
			Items:         []PromotionItem{{MenuItemID: "coffee"}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 1, UnitPrice: 3.00}},
	}

	assert.Equal(t, 3.00, EstimateDiscount(cand, cart))
}

func TestBogoBuyTwoGetOne(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "pizza", Quantity: 3, UnitPrice: 8.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeBOGO,
			DiscountType: DiscountFreeItem,
			Items:        []PromotionItem{{MenuItemID: "pizza", RequiredQuantity: 2, FreeQuantity: 1}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 3, UnitPrice: 8.00}},
	}

	assert.Equal(t, 8.00, EstimateDiscount(cand, cart))
}

func TestBogoFreesCheapestUnits(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "latte", CategoryID: "drinks", Quantity: 1, UnitPrice: 5.00},
		{MenuItemID: "espresso", CategoryID: "drinks", Quantity: 1, UnitPrice: 3.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeBOGO,
			DiscountType: DiscountFreeItem,
			Items:        []PromotionItem{{CategoryID: "drinks", RequiredQuantity: 1, FreeQuantity: 1}},
		},
		Matched: []MatchedLine{
			{LineIndex: 0, Quantity: 1, UnitPrice: 5.00},
			{LineIndex: 1, Quantity: 1, UnitPrice: 3.00},
		},
	}

	assert.Equal(t, 3.00, EstimateDiscount(cand, cart))
}

func TestBogoIncompleteSetIsFree(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "pizza", Quantity: 2, UnitPrice: 8.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeBOGO,
			DiscountType: DiscountFreeItem,
			Items:        []PromotionItem{{MenuItemID: "pizza", RequiredQuantity: 2, FreeQuantity: 1}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 2, UnitPrice: 8.00}},
	}

	// 两件不足一组(2+1)，无赠品
	assert.Equal(t, 0.00, EstimateDiscount(cand, cart))
}

func TestFixedPriceCombo(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "burger", Quantity: 1, UnitPrice: 12.00},
		{MenuItemID: "fries", Quantity: 1, UnitPrice: 5.00},
		{MenuItemID: "soda", Quantity: 1, UnitPrice: 3.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeComboDeal,
			DiscountType: DiscountFixedPrice,
			FixedPrice:   15.00,
			Items: []PromotionItem{
				{MenuItemID: "burger", RequiredQuantity: 1, IsRequired: true},
				{MenuItemID: "fries", RequiredQuantity: 1, IsRequired: true},
				{MenuItemID: "soda", RequiredQuantity: 1, IsRequired: true},
			},
		},
		Matched: []MatchedLine{
			{LineIndex: 0, Quantity: 1, UnitPrice: 12.00},
			{LineIndex: 1, Quantity: 1, UnitPrice: 5.00},
			{LineIndex: 2, Quantity: 1, UnitPrice: 3.00},
		},
	}

	// 组合原价 20，一口价 15
	assert.Equal(t, 5.00, EstimateDiscount(cand, cart))
}

func TestFixedPricePerUnit(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "wings", Quantity: 2, UnitPrice: 9.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeItemDiscount,
			DiscountType: DiscountFixedPrice,
			Items:        []PromotionItem{{MenuItemID: "wings", RequiredQuantity: 2, DiscountedPrice: 6.00}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 2, UnitPrice: 9.00, MenuItemID: "wings"}},
	}

	// 每件 9 降到 6，两件省 6
	assert.Equal(t, 6.00, EstimateDiscount(cand, cart))
}

func TestFixedPricePerTargetLine(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "wings", Quantity: 1, UnitPrice: 9.00},
		{MenuItemID: "soda", Quantity: 1, UnitPrice: 2.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeItemDiscount,
			DiscountType: DiscountFixedPrice,
			Items: []PromotionItem{
				{MenuItemID: "wings", RequiredQuantity: 1, DiscountedPrice: 6.00},
				{MenuItemID: "soda", RequiredQuantity: 1, DiscountedPrice: 1.00},
			},
		},
		Matched: []MatchedLine{
			{LineIndex: 0, Quantity: 1, UnitPrice: 9.00, MenuItemID: "wings"},
			{LineIndex: 1, Quantity: 1, UnitPrice: 2.00, MenuItemID: "soda"},
		},
	}

	// 每行按自己命中的目标计价：9→6 省 3，2→1 省 1
	assert.Equal(t, 4.00, EstimateDiscount(cand, cart))
}

func TestFixedPriceAboveBaseGivesNothing(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "soup", Quantity: 1, UnitPrice: 4.00},
	}}
	cand := &Candidate{
		Promotion: &Promotion{
			Type:         TypeItemDiscount,
			DiscountType: DiscountFixedPrice,
			Items:        []PromotionItem{{MenuItemID: "soup", DiscountedPrice: 6.00}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 1, UnitPrice: 4.00, MenuItemID: "soup"}},
	}

	assert.Equal(t, 0.00, EstimateDiscount(cand, cart))
}

func TestApplySequencesCartDiscountAfterItemDiscounts(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "burger", Quantity: 2, UnitPrice: 10.00},
		{MenuItemID: "soda", Quantity: 2, UnitPrice: 10.00},
	}}
	itemCand := &Candidate{
		Promotion: &Promotion{
			Type:          TypeItemDiscount,
			DiscountType:  DiscountFixedAmount,
			DiscountValue: 2.00,
			Items:         []PromotionItem{{MenuItemID: "burger"}},
		},
		Matched: []MatchedLine{{LineIndex: 0, Quantity: 1, UnitPrice: 10.00}},
	}
	cartCand := &Candidate{
		Promotion: &Promotion{
			Type:          TypeCartDiscount,
			DiscountType:  DiscountPercentage,
			DiscountValue: 10,
		},
	}

	total := Apply([]*Candidate{itemCand, cartCand}, cart)

	assert.Equal(t, 2.00, itemCand.Discount)
	// 整单 10% 作用在 40-2=38 上
	assert.Equal(t, 3.80, cartCand.Discount)
	assert.Equal(t, 5.80, total)
}

func TestApplyTotalNeverExceedsSubtotal(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{MenuItemID: "candy", Quantity: 1, UnitPrice: 1.00},
	}}
	a := &Candidate{
		Promotion: &Promotion{Type: TypeCartDiscount, DiscountType: DiscountFixedAmount, DiscountValue: 0.80},
	}
	b := &Candidate{
		Promotion: &Promotion{Type: TypeCartDiscount, DiscountType: DiscountFixedAmount, DiscountValue: 0.80},
	}

	total := Apply([]*Candidate{a, b}, cart)

	assert.Equal(t, 1.00, total)
	assert.Equal(t, 0.80, a.Discount)
	assert.Equal(t, 0.20, b.Discount)
}
