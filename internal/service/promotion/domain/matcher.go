package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MatchCatalog 对目录中的每个促销独立求值，产出带标注的候选列表。
// 求值是 (cart, context, 目录快照, 计数快照) 的纯函数：相同输入永远得到相同输出。
//
// requiresCode 的促销在未提交对应券码时被直接排除，不进入自动候选；
// autoApply=false 且不要求券码的促销同样不参与（无法被触发）。
func MatchCatalog(catalog []*Promotion, cart *Cart, ectx *EvaluationContext, usage UsageView) []*Candidate {
	candidates := make([]*Candidate, 0, len(catalog))
	for i, p := range catalog {
		cand := &Candidate{
			Promotion:    p,
			CatalogIndex: i,
			Trigger:      TriggerAuto,
			State:        StateCandidate,
		}
		if p.RequiresCode {
			if !ectx.HasCode(p.PromoCode) {
				continue
			}
			cand.Trigger = TriggerCode
		} else if !p.AutoApply {
			continue
		}
		matchOne(cand, cart, ectx, usage, nil)
		candidates = append(candidates, cand)
	}
	return candidates
}

// matchOne 执行单个候选的全部独立检查，excluded 是本次求值中已被占用的行下标
// （裁决器在行被先接受的促销认领后重匹配时传入）。
func matchOne(cand *Candidate, cart *Cart, ectx *EvaluationContext, usage UsageView, excluded map[int]bool) {
	p := cand.Promotion

	// 生效日期窗口（含端点）
	if !p.StartDate.IsZero() && ectx.Timestamp.Before(p.StartDate) {
		cand.Ineligible(ReasonExpired, "promotion not started yet")
		return
	}
	if !p.EndDate.IsZero() && ectx.Timestamp.After(p.EndDate) {
		cand.Ineligible(ReasonExpired, "promotion already ended")
		return
	}

	// ISO 星期限定
	if len(p.DaysOfWeek) > 0 && !containsInt(p.DaysOfWeek, isoWeekday(ectx)) {
		cand.Ineligible(ReasonOutsideDayWindow, "not valid on this day of week")
		return
	}

	// 时段窗口，允许跨午夜（如 22:00-02:00）
	if p.TimeRangeStart != "" {
		start, _ := parseClock(p.TimeRangeStart)
		end, _ := parseClock(p.TimeRangeEnd)
		minute := ectx.Timestamp.Hour()*60 + ectx.Timestamp.Minute()
		var inWindow bool
		if start <= end {
			inWindow = minute >= start && minute <= end
		} else {
			inWindow = minute >= start || minute <= end
		}
		if !inWindow {
			cand.Ineligible(ReasonOutsideTimeWindow, fmt.Sprintf("valid only between %s and %s", p.TimeRangeStart, p.TimeRangeEnd))
			return
		}
	}

	// 购物车聚合门槛
	if p.MinCartValue > 0 && cart.Subtotal() < p.MinCartValue {
		cand.Ineligible(ReasonMinCartNotMet, fmt.Sprintf("cart subtotal below minimum %.2f", p.MinCartValue))
		return
	}
	qty := cart.TotalQuantity()
	if p.MinItems > 0 && qty < p.MinItems {
		cand.Ineligible(ReasonMinItemsNotMet, fmt.Sprintf("cart has fewer than %d items", p.MinItems))
		return
	}
	if p.MaxItems > 0 && qty > p.MaxItems {
		cand.Ineligible(ReasonMinItemsNotMet, fmt.Sprintf("cart has more than %d items", p.MaxItems))
		return
	}

	// 客群限定
	if len(p.CustomerSegments) > 0 && !containsFold(p.CustomerSegments, ectx.CustomerSegment) {
		cand.Ineligible(ReasonSegmentMismatch, "customer segment not covered")
		return
	}
	if len(p.CustomerTypes) > 0 && !containsFold(p.CustomerTypes, ectx.CustomerType) {
		cand.Ineligible(ReasonSegmentMismatch, "customer type not covered")
		return
	}

	// 核销限额：全局与单客
	if p.UsageLimit > 0 && usage.GlobalCount(p) >= p.UsageLimit {
		cand.Ineligible(ReasonUsageLimitReached, "usage limit reached")
		return
	}
	if p.PerCustomerLimit > 0 && usage.CustomerCount(p.ID) >= p.PerCustomerLimit {
		cand.Ineligible(ReasonPerCustomerLimitReached, "per-customer limit reached")
		return
	}

	// 商品目标解析
	if p.TargetsItems() {
		matched, ok := resolveTargets(p, cart, excluded)
		if !ok {
			cand.Ineligible(ReasonMinItemsNotMet, "required items not present in sufficient quantity")
			return
		}
		cand.Matched = matched
	}

	cand.State = StateEligible
	cand.Reason = ""
	cand.ReasonMessage = ""
}

// resolveTargets 把每个 PromotionItem 解析到具体购物车行。
// 品类目标命中多行时，按单价从低到高优先选取——这是刻意的让利于客策略，
// 不是实现巧合。返回 false 表示某个必选目标的 requiredQuantity 无法满足。
func resolveTargets(p *Promotion, cart *Cart, excluded map[int]bool) ([]MatchedLine, bool) {
	var all []MatchedLine
	for _, target := range p.Items {
		required := target.RequiredQuantity
		if required <= 0 {
			required = 1
		}
		// 买赠需要整组在场（买 N 赠 M 即至少 N+M 件），且命中行全量参与，
		// 计算器才能按组数和最低价挑出赠品件。
		takeAll := false
		if p.DiscountType == DiscountFreeItem {
			required += target.FreeQuantity
			takeAll = true
		}

		// 收集命中行，单价低者在前；同价保持行序，结果确定。
		var lines []int
		for i, item := range cart.Items {
			if excluded[i] {
				continue
			}
			if matchesTarget(target, item) {
				lines = append(lines, i)
			}
		}
		sort.SliceStable(lines, func(a, b int) bool {
			return cart.Items[lines[a]].EffectiveUnitPrice() < cart.Items[lines[b]].EffectiveUnitPrice()
		})

		remaining := required
		var picked []MatchedLine
		for _, idx := range lines {
			if remaining <= 0 && !takeAll {
				break
			}
			take := cart.Items[idx].Quantity
			if !takeAll && take > remaining {
				take = remaining
			}
			picked = append(picked, MatchedLine{
				LineIndex:  idx,
				Quantity:   take,
				UnitPrice:  cart.Items[idx].EffectiveUnitPrice(),
				MenuItemID: cart.Items[idx].MenuItemID,
				CategoryID: cart.Items[idx].CategoryID,
			})
			remaining -= take
		}

		if remaining > 0 {
			if target.IsRequired || len(p.Items) == 1 {
				return nil, false
			}
			continue // 可选目标未满足，跳过即可
		}

		// maxQuantity 限制参与优惠的总件数
		if target.MaxQuantity > 0 {
			picked = capQuantity(picked, target.MaxQuantity)
		}
		all = append(all, picked...)
	}
	if len(all) == 0 {
		return nil, false
	}
	return all, true
}

func matchesTarget(target PromotionItem, item CartItem) bool {
	if target.MenuItemID != "" {
		return target.MenuItemID == item.MenuItemID
	}
	return target.CategoryID != "" && target.CategoryID == item.CategoryID
}

func capQuantity(lines []MatchedLine, max int) []MatchedLine {
	remaining := max
	var out []MatchedLine
	for _, l := range lines {
		if remaining <= 0 {
			break
		}
		if l.Quantity > remaining {
			l.Quantity = remaining
		}
		remaining -= l.Quantity
		out = append(out, l)
	}
	return out
}

// parseClock 解析 "HH:MM" 为自午夜起的分钟数。
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// isoWeekday 返回 ISO 星期（1=周一 ... 7=周日）。
func isoWeekday(ectx *EvaluationContext) int {
	wd := int(ectx.Timestamp.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsFold(xs []string, x string) bool {
	for _, v := range xs {
		if strings.EqualFold(v, x) {
			return true
		}
	}
	return false
}
