package domain

import (
	"math"
	"sort"
)

// Round2 按"四舍五入"保留两位小数。引擎内所有金额出口都经过它，
// 保证审计口径一致。
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// Apply 依次计算已接受集合中每个促销的最终折扣，返回总折扣。
// 商品级折扣各自针对原始行金额独立计算；CART_DISCOUNT 的匹配基数是
// 扣除所有商品级折扣之后的小计——裁决器已把整单级排到末尾，这里按序
// 扣减 remaining 即可避免同一分钱被折两次。
func Apply(accepted []*Candidate, cart *Cart) float64 {
	remaining := cart.Subtotal()
	var total float64
	for _, cand := range accepted {
		base := matchedBase(cand, remaining)
		amount := calculateOne(cand, base)
		// 累计折扣永远不超过原始小计，最终金额不为负
		if amount > remaining {
			amount = remaining
		}
		cand.Discount = amount
		total += amount
		remaining = Round2(remaining - amount)
	}
	return Round2(total)
}

// EstimateDiscount 是裁决排序用的试算：对原始小计独立计算，不考虑
// 其他促销的扣减。
func EstimateDiscount(cand *Candidate, cart *Cart) float64 {
	return calculateOne(cand, matchedBase(cand, cart.Subtotal()))
}

// matchedBase 返回促销的匹配基数：商品级取命中行的参与金额，
// 整单级取当前剩余小计。
func matchedBase(cand *Candidate, remaining float64) float64 {
	if cand.Promotion.TargetsItems() && len(cand.Matched) > 0 {
		var sum float64
		for _, m := range cand.Matched {
			sum += float64(m.Quantity) * m.UnitPrice
		}
		return Round2(sum)
	}
	return remaining
}

// calculateOne 对封闭的 DiscountType 集合做穷举分发。
func calculateOne(cand *Candidate, base float64) float64 {
	p := cand.Promotion
	var amount float64
	switch p.DiscountType {
	case DiscountPercentage:
		amount = Round2(base * p.DiscountValue / 100)
	case DiscountFixedAmount:
		amount = p.DiscountValue
	case DiscountFixedPrice:
		amount = fixedPriceDiscount(cand, base)
	case DiscountFreeItem:
		amount = freeItemDiscount(cand)
	default:
		amount = 0
	}
	// 封顶：先不超过匹配基数（余额永不为负），再应用 maxDiscountAmount
	if amount > base {
		amount = base
	}
	if p.MaxDiscountAmount > 0 && amount > p.MaxDiscountAmount {
		amount = p.MaxDiscountAmount
	}
	if amount < 0 {
		amount = 0
	}
	return Round2(amount)
}

// fixedPriceDiscount 计算一口价折扣 max(base - fixedPrice, 0)。
// 促销级 FixedPrice 针对整个命中组合；未设置时回退到目标上的
// discountedPrice：每行按它命中的那个目标计价，没有一口价的目标按原价。
func fixedPriceDiscount(cand *Candidate, base float64) float64 {
	p := cand.Promotion
	if p.FixedPrice > 0 {
		return base - p.FixedPrice
	}
	var discounted float64
	for _, m := range cand.Matched {
		price := m.UnitPrice
		for _, target := range p.Items {
			if target.DiscountedPrice > 0 && lineMatchesTarget(target, m) {
				price = target.DiscountedPrice
				break
			}
		}
		discounted += float64(m.Quantity) * price
	}
	return base - discounted
}

// lineMatchesTarget 与匹配器的目标判定同口径：MenuItemID 优先。
func lineMatchesTarget(target PromotionItem, m MatchedLine) bool {
	if target.MenuItemID != "" {
		return target.MenuItemID == m.MenuItemID
	}
	return target.CategoryID != "" && target.CategoryID == m.CategoryID
}

// freeItemDiscount 计算买赠折扣：每满 required+free 件成一组，
// 每组赠 free 件；多价位命中时，赠出的永远是最便宜的那几件。
func freeItemDiscount(cand *Candidate) float64 {
	p := cand.Promotion
	required, free := bogoQuantities(p)
	if free == 0 {
		return 0
	}

	var totalQty int
	for _, m := range cand.Matched {
		totalQty += m.Quantity
	}
	sets := totalQty / (required + free)
	if sets == 0 {
		return 0
	}
	freeUnits := sets * free

	// 逐件展开并按单价升序取最便宜的 freeUnits 件
	units := make([]float64, 0, totalQty)
	for _, m := range cand.Matched {
		for i := 0; i < m.Quantity; i++ {
			units = append(units, m.UnitPrice)
		}
	}
	sort.Float64s(units)
	var amount float64
	for i := 0; i < freeUnits && i < len(units); i++ {
		amount += units[i]
	}
	return amount
}

// bogoQuantities 汇总买赠促销的 required/free 件数，缺省买一赠一。
func bogoQuantities(p *Promotion) (required, free int) {
	for _, target := range p.Items {
		required += target.RequiredQuantity
		free += target.FreeQuantity
	}
	if required <= 0 {
		required = 1
	}
	return required, free
}
