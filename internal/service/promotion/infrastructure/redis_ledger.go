package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"gusto/internal/pkg/redis"
	"gusto/internal/service/promotion/domain"
)

const (
	redeemScriptName   = "promotion_redeem"
	rollbackScriptName = "promotion_rollback"
)

// RedisUsageLedger 是 UsageLedger 的 Redis 实现。"检查并递增"用 Lua 脚本
// 完成：脚本在 Redis 内单线程执行，限额检查与两个计数的递增天然是单一
// 不可分步骤，并发的订单完成永远不可能把 usageCount 推过 usageLimit。
type RedisUsageLedger struct {
	client      *redis.Client
	graceWindow time.Duration
}

// NewRedisUsageLedger 创建账本实例并预加载 Lua 脚本。
func NewRedisUsageLedger(client *redis.Client, graceWindow time.Duration) (*RedisUsageLedger, error) {
	if err := client.LoadScriptFromContent(redeemScriptName, redeemScript); err != nil {
		return nil, errors.Wrap(err, "failed to load redeem script")
	}
	if err := client.LoadScriptFromContent(rollbackScriptName, rollbackScript); err != nil {
		return nil, errors.Wrap(err, "failed to load rollback script")
	}
	return &RedisUsageLedger{client: client, graceWindow: graceWindow}, nil
}

func globalKey(promotionID int64) string {
	return fmt.Sprintf("promo:usage:{%d}", promotionID)
}

func customerKey(promotionID int64) string {
	return fmt.Sprintf("promo:usage:{%d}:customers", promotionID)
}

func receiptKey(promotionID int64, receiptID string) string {
	return fmt.Sprintf("promo:redemption:{%d}:%s", promotionID, receiptID)
}

// Redeem 实现条件原子递增。
func (l *RedisUsageLedger) Redeem(ctx context.Context, p *domain.Promotion, customerID, receiptID string, at time.Time) error {
	keys := []string{globalKey(p.ID), customerKey(p.ID), receiptKey(p.ID, receiptID)}
	args := []interface{}{
		p.UsageLimit,
		p.PerCustomerLimit,
		customerID,
		int64(l.graceWindow.Seconds()),
		at.Unix(),
	}
	result, err := l.client.RunScript(ctx, redeemScriptName, keys, args...)
	if err != nil {
		return errors.Wrap(err, "redeem script failed")
	}
	code, ok := result.(int64)
	if !ok {
		return errors.Errorf("unexpected result type from redeem script: %T", result)
	}
	switch code {
	case 1:
		return nil
	case 0:
		return domain.ErrUsageLimitReached
	case 2:
		return domain.ErrPerCustomerLimit
	default:
		return errors.Errorf("unknown result code from redeem script: %d", code)
	}
}

// Rollback 在宽限期内撤销核销。凭据键带 TTL，超窗后键已过期，
// 脚本返回 0，核销永久生效。
func (l *RedisUsageLedger) Rollback(ctx context.Context, promotionID int64, receiptID string, at time.Time) error {
	keys := []string{globalKey(promotionID), customerKey(promotionID), receiptKey(promotionID, receiptID)}
	result, err := l.client.RunScript(ctx, rollbackScriptName, keys)
	if err != nil {
		return errors.Wrap(err, "rollback script failed")
	}
	if code, ok := result.(int64); !ok || code != 1 {
		return domain.ErrPromotionNotFound
	}
	return nil
}

// Usage 用 pipeline 读一批计数快照。
func (l *RedisUsageLedger) Usage(ctx context.Context, promotionIDs []int64, customerID string) (domain.UsageView, error) {
	view := domain.UsageView{
		Global:     make(map[int64]int64, len(promotionIDs)),
		ByCustomer: make(map[int64]int64, len(promotionIDs)),
	}
	if len(promotionIDs) == 0 {
		return view, nil
	}

	pipe := l.client.GetClient().Pipeline()
	globals := make(map[int64]*goredis.StringCmd, len(promotionIDs))
	customers := make(map[int64]*goredis.StringCmd, len(promotionIDs))
	for _, id := range promotionIDs {
		globals[id] = pipe.Get(ctx, globalKey(id))
		if customerID != "" {
			customers[id] = pipe.HGet(ctx, customerKey(id), customerID)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return domain.UsageView{}, errors.Wrap(err, "failed to read usage counters")
	}

	for id, cmd := range globals {
		if n, err := strconv.ParseInt(cmd.Val(), 10, 64); err == nil {
			view.Global[id] = n
		}
	}
	for id, cmd := range customers {
		if n, err := strconv.ParseInt(cmd.Val(), 10, 64); err == nil {
			view.ByCustomer[id] = n
		}
	}
	return view, nil
}

// redeemScript 的约定：
//   KEYS[1] 全局计数  KEYS[2] 单客计数哈希  KEYS[3] 回滚凭据
//   ARGV[1] 全局限额(0=不限)  ARGV[2] 单客限额(0=不限)
//   ARGV[3] 客户ID  ARGV[4] 宽限期秒数  ARGV[5] 核销时刻
// 返回 1=成功 0=全局限额已满 2=单客限额已满
var redeemScript = `
local global_limit = tonumber(ARGV[1])
local customer_limit = tonumber(ARGV[2])
local customer_id = ARGV[3]
local grace_seconds = tonumber(ARGV[4])

local global_count = tonumber(redis.call('get', KEYS[1]) or '0')
if global_limit > 0 and global_count >= global_limit then
    return 0
end

local customer_count = 0
if customer_id ~= '' then
    customer_count = tonumber(redis.call('hget', KEYS[2], customer_id) or '0')
end
if customer_limit > 0 and customer_count >= customer_limit then
    return 2
end

redis.call('incr', KEYS[1])
if customer_id ~= '' then
    redis.call('hincrby', KEYS[2], customer_id, 1)
end

-- 回滚凭据：记下客户与时刻，TTL 即宽限期
redis.call('hset', KEYS[3], 'customer', customer_id, 'redeemed_at', ARGV[5])
if grace_seconds > 0 then
    redis.call('expire', KEYS[3], grace_seconds)
end
return 1
`

// rollbackScript 返回 1=已回滚 0=凭据不存在或已超宽限期
var rollbackScript = `
if redis.call('exists', KEYS[3]) == 0 then
    return 0
end
local customer_id = redis.call('hget', KEYS[3], 'customer')

local global_count = tonumber(redis.call('get', KEYS[1]) or '0')
if global_count > 0 then
    redis.call('decr', KEYS[1])
end
if customer_id and customer_id ~= '' then
    local c = tonumber(redis.call('hget', KEYS[2], customer_id) or '0')
    if c > 0 then
        redis.call('hincrby', KEYS[2], customer_id, -1)
    end
end
redis.call('del', KEYS[3])
return 1
`
