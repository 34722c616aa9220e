package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"gusto/internal/pkg/logger"
	"gusto/internal/service/promotion/domain"
	"gusto/internal/zookeeper"
)

// GormUsageLedger 是 UsageLedger 的 MySQL 实现。数据库本身没有
// "检查并递增"的单条原子指令，这里借 ZooKeeper 分布式锁把同一促销的
// 核销串行化：锁粒度是促销 ID，不同促销的核销互不阻塞。
type GormUsageLedger struct {
	db          *gorm.DB
	zkConn      *zookeeper.Conn
	graceWindow time.Duration
	lockTimeout time.Duration
}

func NewGormUsageLedger(db *gorm.DB, zkConn *zookeeper.Conn, graceWindow time.Duration) *GormUsageLedger {
	return &GormUsageLedger{
		db:          db,
		zkConn:      zkConn,
		graceWindow: graceWindow,
		lockTimeout: 5 * time.Second,
	}
}

// Redeem 在锁内做限额检查与计数递增。拿不到锁按并发冲突上报，
// 调用方会带退避重试。
func (l *GormUsageLedger) Redeem(ctx context.Context, p *domain.Promotion, customerID, receiptID string, at time.Time) error {
	lock, err := zookeeper.NewDistributedLock(l.zkConn, fmt.Sprintf("promo-%d", p.ID), l.lockTimeout)
	if err != nil {
		return errors.Wrap(err, "failed to prepare redeem lock")
	}
	if err := lock.Lock(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("promotion_id", p.ID).Msg("failed to acquire redeem lock")
		return domain.ErrConcurrentModification
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("promotion_id", p.ID).Msg("failed to release redeem lock")
		}
	}()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		globalCount, err := counterValue(tx, p.ID, "")
		if err != nil {
			return err
		}
		if p.UsageLimit > 0 && globalCount >= p.UsageLimit {
			return domain.ErrUsageLimitReached
		}
		if p.PerCustomerLimit > 0 && customerID != "" {
			customerCount, err := counterValue(tx, p.ID, customerID)
			if err != nil {
				return err
			}
			if customerCount >= p.PerCustomerLimit {
				return domain.ErrPerCustomerLimit
			}
		}

		record := RedemptionModel{
			PromotionID: p.ID,
			ReceiptID:   receiptID,
			CustomerID:  customerID,
			RedeemedAt:  at,
		}
		if err := tx.Create(&record).Error; err != nil {
			return errors.Wrap(err, "failed to record redemption")
		}
		if err := bumpCounter(tx, p.ID, "", 1); err != nil {
			return err
		}
		if customerID != "" {
			if err := bumpCounter(tx, p.ID, customerID, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rollback 撤销宽限期内的核销。超窗或凭据不存在都按"找不到"处理，
// 已生效的核销不可逆。
func (l *GormUsageLedger) Rollback(ctx context.Context, promotionID int64, receiptID string, at time.Time) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record RedemptionModel
		err := tx.Where("promotion_id = ? AND receipt_id = ? AND rolled_back = ?", promotionID, receiptID, false).
			First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrPromotionNotFound
		}
		if err != nil {
			return errors.Wrap(err, "failed to load redemption")
		}
		if at.Sub(record.RedeemedAt) > l.graceWindow {
			return domain.ErrPromotionNotFound
		}

		// 条件翻转：并发回滚同一凭据时只有一方能命中这行，
		// 失败方不得再去递减计数
		result := tx.Model(&RedemptionModel{}).
			Where("id = ? AND rolled_back = ?", record.ID, false).
			Update("rolled_back", true)
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to mark redemption rolled back")
		}
		if result.RowsAffected == 0 {
			return domain.ErrPromotionNotFound
		}
		if err := bumpCounter(tx, promotionID, "", -1); err != nil {
			return err
		}
		if record.CustomerID != "" {
			if err := bumpCounter(tx, promotionID, record.CustomerID, -1); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *GormUsageLedger) Usage(ctx context.Context, promotionIDs []int64, customerID string) (domain.UsageView, error) {
	view := domain.UsageView{
		Global:     make(map[int64]int64, len(promotionIDs)),
		ByCustomer: make(map[int64]int64, len(promotionIDs)),
	}
	if len(promotionIDs) == 0 {
		return view, nil
	}

	var counters []UsageCounterModel
	query := l.db.WithContext(ctx).Where("promotion_id IN ?", promotionIDs)
	if customerID != "" {
		query = query.Where("customer_id IN ?", []string{"", customerID})
	} else {
		query = query.Where("customer_id = ?", "")
	}
	if err := query.Find(&counters).Error; err != nil {
		return domain.UsageView{}, errors.Wrap(err, "failed to load usage counters")
	}

	for _, c := range counters {
		if c.CustomerID == "" {
			view.Global[c.PromotionID] = c.Count
		} else {
			view.ByCustomer[c.PromotionID] = c.Count
		}
	}
	return view, nil
}

func counterValue(tx *gorm.DB, promotionID int64, customerID string) (int64, error) {
	var counter UsageCounterModel
	err := tx.Where("promotion_id = ? AND customer_id = ?", promotionID, customerID).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read usage counter")
	}
	return counter.Count, nil
}

func bumpCounter(tx *gorm.DB, promotionID int64, customerID string, delta int64) error {
	result := tx.Model(&UsageCounterModel{}).
		Where("promotion_id = ? AND customer_id = ?", promotionID, customerID).
		Update("count", gorm.Expr("count + ?", delta))
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update usage counter")
	}
	if result.RowsAffected == 0 && delta > 0 {
		counter := UsageCounterModel{PromotionID: promotionID, CustomerID: customerID, Count: delta}
		if err := tx.Create(&counter).Error; err != nil {
			return errors.Wrap(err, "failed to create usage counter")
		}
	}
	return nil
}
