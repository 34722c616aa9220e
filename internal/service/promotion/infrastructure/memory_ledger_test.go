package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gusto/internal/service/promotion/domain"
)

var ledgerEpoch = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func limitedPromotion(limit int64) *domain.Promotion {
	return &domain.Promotion{
		ID:         1,
		Name:       "limited offer",
		UsageLimit: limit,
	}
}

func TestMemoryLedgerRedeemAndUsage(t *testing.T) {
	ledger := NewMemoryUsageLedger(30 * time.Minute)
	p := limitedPromotion(0)

	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-1", "r1", ledgerEpoch))
	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-1", "r2", ledgerEpoch))
	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-2", "r3", ledgerEpoch))

	view, err := ledger.Usage(context.Background(), []int64{1}, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Global[1])
	assert.Equal(t, int64(2), view.ByCustomer[1])
}

func TestMemoryLedgerGlobalLimit(t *testing.T) {
	ledger := NewMemoryUsageLedger(30 * time.Minute)
	p := limitedPromotion(2)

	require.NoError(t, ledger.Redeem(context.Background(), p, "", "r1", ledgerEpoch))
	require.NoError(t, ledger.Redeem(context.Background(), p, "", "r2", ledgerEpoch))

	err := ledger.Redeem(context.Background(), p, "", "r3", ledgerEpoch)
	assert.ErrorIs(t, err, domain.ErrUsageLimitReached)
}

func TestMemoryLedgerPerCustomerLimit(t *testing.T) {
	ledger := NewMemoryUsageLedger(30 * time.Minute)
	p := limitedPromotion(0)
	p.PerCustomerLimit = 1

	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-1", "r1", ledgerEpoch))

	err := ledger.Redeem(context.Background(), p, "cust-1", "r2", ledgerEpoch)
	assert.ErrorIs(t, err, domain.ErrPerCustomerLimit)

	// 其他客户不受影响
	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-2", "r3", ledgerEpoch))
}

func TestMemoryLedgerConcurrentRedeemNeverExceedsLimit(t *testing.T) {
	const limit = 5
	const workers = 20
	ledger := NewMemoryUsageLedger(30 * time.Minute)
	p := limitedPromotion(limit)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- ledger.Redeem(context.Background(), p, "", fmt.Sprintf("r%d", n), ledgerEpoch)
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, limited int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			assert.ErrorIs(t, err, domain.ErrUsageLimitReached)
			limited++
		}
	}
	assert.Equal(t, limit, ok)
	assert.Equal(t, workers-limit, limited)

	view, err := ledger.Usage(context.Background(), []int64{1}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(limit), view.Global[1])
}

func TestMemoryLedgerRollbackWithinWindow(t *testing.T) {
	ledger := NewMemoryUsageLedger(30 * time.Minute)
	p := limitedPromotion(0)

	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-1", "r1", ledgerEpoch))
	require.NoError(t, ledger.Rollback(context.Background(), 1, "r1", ledgerEpoch.Add(15*time.Minute)))

	view, err := ledger.Usage(context.Background(), []int64{1}, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), view.Global[1])
	assert.Equal(t, int64(0), view.ByCustomer[1])

	// 同一凭据不可重复回滚
	err = ledger.Rollback(context.Background(), 1, "r1", ledgerEpoch.Add(16*time.Minute))
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}

func TestMemoryLedgerRollbackAfterWindowFails(t *testing.T) {
	ledger := NewMemoryUsageLedger(30 * time.Minute)
	p := limitedPromotion(0)

	require.NoError(t, ledger.Redeem(context.Background(), p, "cust-1", "r1", ledgerEpoch))

	err := ledger.Rollback(context.Background(), 1, "r1", ledgerEpoch.Add(31*time.Minute))
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)

	view, err := ledger.Usage(context.Background(), []int64{1}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Global[1])
}

func TestMemoryLedgerRollbackUnknownReceipt(t *testing.T) {
	ledger := NewMemoryUsageLedger(30 * time.Minute)

	err := ledger.Rollback(context.Background(), 1, "missing", ledgerEpoch)
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}
