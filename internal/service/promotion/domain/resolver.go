package domain

import "sort"

// Resolve 从合格候选中裁决出一个无冲突的已接受集合。
//
// 排序键依次为：券码触发先于自动参与、priority 降序、试算折扣降序、
// 目录插入序（稳定）。沿排序结果向下走：可叠加（或集合尚空）则接受；
// 一旦接受了不可叠加的促销，后续候选全部以 EXCLUSIVE_CONFLICT 出局。
//
// 商品级促销接受时会认领其命中的购物车行（一行一主）；后来者命中行
// 已被占用时基于剩余行重匹配，仍不满足则同样按冲突出局。
//
// 返回的已接受集合中 CART_DISCOUNT 永远排在末尾：整单折扣的匹配基数
// 依赖扣除商品级折扣后的小计。
func Resolve(candidates []*Candidate, cart *Cart, ectx *EvaluationContext, usage UsageView) []*Candidate {
	eligible := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.State == StateEligible {
			c.Estimate = EstimateDiscount(c, cart)
			eligible = append(eligible, c)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Trigger != b.Trigger {
			return a.Trigger == TriggerCode
		}
		if a.Promotion.Priority != b.Promotion.Priority {
			return a.Promotion.Priority > b.Promotion.Priority
		}
		if a.Estimate != b.Estimate {
			return a.Estimate > b.Estimate
		}
		return a.CatalogIndex < b.CatalogIndex
	})

	claimed := make(map[int]bool)
	var accepted []*Candidate
	exclusiveTaken := false

	for _, c := range eligible {
		if exclusiveTaken {
			c.Reject(ReasonExclusiveConflict, "an exclusive promotion is already applied")
			continue
		}
		if !c.Promotion.CanCombineWithOthers && len(accepted) > 0 {
			c.Reject(ReasonExclusiveConflict, "promotion cannot combine with already accepted promotions")
			continue
		}

		if c.Promotion.TargetsItems() && linesOverlap(c.Matched, claimed) {
			// 命中行已被先接受的促销认领，基于未占用的行重新匹配
			matchOne(c, cart, ectx, usage, claimed)
			if c.State != StateEligible {
				c.Reject(ReasonExclusiveConflict, "cart lines already claimed by another promotion")
				continue
			}
			c.Estimate = EstimateDiscount(c, cart)
		}

		c.State = StateAccepted
		if c.Promotion.TargetsItems() {
			for _, m := range c.Matched {
				claimed[m.LineIndex] = true
			}
		}
		accepted = append(accepted, c)
		if !c.Promotion.CanCombineWithOthers {
			exclusiveTaken = true
		}
	}

	// 稳定地把整单折扣挪到末尾
	sort.SliceStable(accepted, func(i, j int) bool {
		ai := accepted[i].Promotion.Type == TypeCartDiscount
		aj := accepted[j].Promotion.Type == TypeCartDiscount
		return !ai && aj
	})
	return accepted
}

func linesOverlap(matched []MatchedLine, claimed map[int]bool) bool {
	for _, m := range matched {
		if claimed[m.LineIndex] {
			return true
		}
	}
	return false
}
