package infrastructure

import (
	"context"
	"strconv"
	"sync"
	"time"

	"gusto/internal/service/promotion/domain"
)

type memoryRedemption struct {
	promotionID int64
	customerID  string
	redeemedAt  time.Time
	rolledBack  bool
}

// MemoryUsageLedger 是 UsageLedger 的进程内实现，用于单机部署和测试。
// 互斥锁保证检查与递增之间没有并发写入。
type MemoryUsageLedger struct {
	mu          sync.Mutex
	graceWindow time.Duration
	global      map[int64]int64
	byCustomer  map[int64]map[string]int64
	redemptions map[string]*memoryRedemption // receiptID -> record
}

func NewMemoryUsageLedger(graceWindow time.Duration) *MemoryUsageLedger {
	return &MemoryUsageLedger{
		graceWindow: graceWindow,
		global:      make(map[int64]int64),
		byCustomer:  make(map[int64]map[string]int64),
		redemptions: make(map[string]*memoryRedemption),
	}
}

func receiptIndex(promotionID int64, receiptID string) string {
	return receiptID + "#" + strconv.FormatInt(promotionID, 10)
}

func (l *MemoryUsageLedger) Redeem(_ context.Context, p *domain.Promotion, customerID, receiptID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p.UsageLimit > 0 && l.global[p.ID] >= p.UsageLimit {
		return domain.ErrUsageLimitReached
	}
	if p.PerCustomerLimit > 0 && customerID != "" {
		if l.byCustomer[p.ID][customerID] >= p.PerCustomerLimit {
			return domain.ErrPerCustomerLimit
		}
	}

	l.global[p.ID]++
	if customerID != "" {
		if l.byCustomer[p.ID] == nil {
			l.byCustomer[p.ID] = make(map[string]int64)
		}
		l.byCustomer[p.ID][customerID]++
	}
	l.redemptions[receiptIndex(p.ID, receiptID)] = &memoryRedemption{
		promotionID: p.ID,
		customerID:  customerID,
		redeemedAt:  at,
	}
	return nil
}

func (l *MemoryUsageLedger) Rollback(_ context.Context, promotionID int64, receiptID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.redemptions[receiptIndex(promotionID, receiptID)]
	if !ok || record.rolledBack {
		return domain.ErrPromotionNotFound
	}
	if at.Sub(record.redeemedAt) > l.graceWindow {
		return domain.ErrPromotionNotFound
	}

	record.rolledBack = true
	if l.global[promotionID] > 0 {
		l.global[promotionID]--
	}
	if record.customerID != "" && l.byCustomer[promotionID][record.customerID] > 0 {
		l.byCustomer[promotionID][record.customerID]--
	}
	return nil
}

func (l *MemoryUsageLedger) Usage(_ context.Context, promotionIDs []int64, customerID string) (domain.UsageView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	view := domain.UsageView{
		Global:     make(map[int64]int64, len(promotionIDs)),
		ByCustomer: make(map[int64]int64, len(promotionIDs)),
	}
	for _, id := range promotionIDs {
		if n, ok := l.global[id]; ok {
			view.Global[id] = n
		}
		if customerID != "" {
			if n, ok := l.byCustomer[id][customerID]; ok {
				view.ByCustomer[id] = n
			}
		}
	}
	return view, nil
}
