package domain

import "time"

// CartItem 是一条待结算的订单行。
// TotalPrice 由调用方（点单面）给出；为防御脏数据，聚合计算时若它为零
// 则回退为 Quantity × UnitPrice。
type CartItem struct {
	MenuItemID string  `json:"menuItemId"`
	CategoryID string  `json:"categoryId"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

// LineTotal 返回该行的应计金额。
func (ci CartItem) LineTotal() float64 {
	if ci.TotalPrice > 0 {
		return ci.TotalPrice
	}
	return float64(ci.Quantity) * ci.UnitPrice
}

// EffectiveUnitPrice 返回与 LineTotal 同口径的单价。点单面已在行上
// 改价（TotalPrice 与 Quantity×UnitPrice 不一致）时，折扣基数以行金额
// 为准，保证单行折扣不会超过它对小计的贡献。
func (ci CartItem) EffectiveUnitPrice() float64 {
	if ci.TotalPrice > 0 && ci.Quantity > 0 {
		return ci.TotalPrice / float64(ci.Quantity)
	}
	return ci.UnitPrice
}

// Cart 是一次求值的输入购物车。引擎不拥有它，也从不修改它。
type Cart struct {
	Items []CartItem `json:"items"`
}

// Subtotal 返回折前小计。
func (c *Cart) Subtotal() float64 {
	var sum float64
	for _, it := range c.Items {
		sum += it.LineTotal()
	}
	return Round2(sum)
}

// TotalQuantity 返回购物车中的总件数。
func (c *Cart) TotalQuantity() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// EvaluationContext 携带一次求值所需的环境信息。
// Timestamp 由编排器用可注入的 Clock 填充，引擎内部绝不直接读墙钟。
type EvaluationContext struct {
	Timestamp       time.Time `json:"timestamp"`
	CustomerID      string    `json:"customerId"`
	CustomerSegment string    `json:"customerSegment"`
	CustomerType    string    `json:"customerType"`
	Codes           []string  `json:"codes"`
}

// HasCode 判断客户是否提交了指定券码（大小写不敏感由调用方规范化）。
func (ec *EvaluationContext) HasCode(code string) bool {
	for _, c := range ec.Codes {
		if c == code {
			return true
		}
	}
	return false
}
