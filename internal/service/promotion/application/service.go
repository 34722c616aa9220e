package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gusto/internal/pkg/logger"
	"gusto/internal/pkg/metrics"
	"gusto/internal/service/promotion/domain"
)

// RedemptionPublisher 是核销事件的出口端口，commit 成功后异步通知下游（分析、通知等）。
type RedemptionPublisher interface {
	PublishReceipt(ctx context.Context, receipt *domain.CommitReceipt) error
}

// Options 控制 commit 的竞争重试策略。
type Options struct {
	CommitRetries int           // 限额竞争时的最大尝试次数
	CommitBackoff time.Duration // 首次退避时长，逐次翻倍
}

func (o Options) withDefaults() Options {
	if o.CommitRetries <= 0 {
		o.CommitRetries = 3
	}
	if o.CommitBackoff <= 0 {
		o.CommitBackoff = 50 * time.Millisecond
	}
	return o
}

// PromotionService 是求值编排器：组合匹配、裁决、计算与核销账本，
// 对外提供 preview / validateCode / commit / listApplicable 四个用例。
type PromotionService struct {
	catalog   domain.PromotionRepository
	ledger    domain.UsageLedger
	clock     domain.Clock
	tracer    trace.Tracer
	publisher RedemptionPublisher // 可为空
	opts      Options
}

// NewPromotionService 创建求值编排器实例。
func NewPromotionService(catalog domain.PromotionRepository, ledger domain.UsageLedger, clock domain.Clock, tracer trace.Tracer, publisher RedemptionPublisher, opts Options) *PromotionService {
	return &PromotionService{
		catalog:   catalog,
		ledger:    ledger,
		clock:     clock,
		tracer:    tracer,
		publisher: publisher,
		opts:      opts.withDefaults(),
	}
}

// evaluate 执行一趟完整的 匹配 → 裁决 → 计算。没有任何副作用，
// 相同的 (cart, context, 目录快照) 永远得到相同结果。
func (s *PromotionService) evaluate(ctx context.Context, cart *domain.Cart, ectx *domain.EvaluationContext) ([]*domain.Candidate, error) {
	catalog, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(catalog))
	for _, p := range catalog {
		ids = append(ids, p.ID)
	}
	usage, err := s.ledger.Usage(ctx, ids, ectx.CustomerID)
	if err != nil {
		return nil, err
	}

	candidates := domain.MatchCatalog(catalog, cart, ectx, usage)
	accepted := domain.Resolve(candidates, cart, ectx, usage)
	domain.Apply(accepted, cart)
	return candidates, nil
}

// Preview 只读试算：返回小计、总折扣、预估应付与完整的候选标注
// （含被拒绝者及原因）。幂等，可任意并发调用。
func (s *PromotionService) Preview(ctx context.Context, cart *domain.Cart, ectx *domain.EvaluationContext) (*domain.PromotionPreview, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.Preview")
	defer span.End()
	defer s.observe("preview", s.clock.Now())

	s.stampContext(ectx)
	span.SetAttributes(
		attribute.String("customer.id", ectx.CustomerID),
		attribute.Int("cart.lines", len(cart.Items)),
	)

	candidates, err := s.evaluate(ctx, cart, ectx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		metrics.EvaluationsTotal.WithLabelValues("preview", "error").Inc()
		return nil, err
	}

	preview := buildPreview(cart, candidates)
	span.SetAttributes(attribute.Float64("discount.total", preview.TotalDiscount))
	metrics.EvaluationsTotal.WithLabelValues("preview", "ok").Inc()
	return preview, nil
}

// ListApplicable 是渲染"可用优惠"用的便捷只读操作，仅返回会被应用的促销。
func (s *PromotionService) ListApplicable(ctx context.Context, cart *domain.Cart, ectx *domain.EvaluationContext) ([]domain.ApplicablePromotion, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.ListApplicable")
	defer span.End()

	preview, err := s.Preview(ctx, cart, ectx)
	if err != nil {
		return nil, err
	}
	applicable := make([]domain.ApplicablePromotion, 0, len(preview.Promotions))
	for _, p := range preview.Promotions {
		if p.Applied {
			applicable = append(applicable, p)
		}
	}
	return applicable, nil
}

// ValidateCode 孤立校验单个券码。业务性失败（码不存在、过期、额度耗尽……）
// 不会以 error 形式穿出边界，而是 Valid=false 加稳定错误码，调用方可以
// 在第三个码失败时照常渲染前两个有效优惠。
func (s *PromotionService) ValidateCode(ctx context.Context, code string, cart *domain.Cart, ectx *domain.EvaluationContext) (*domain.PromotionValidation, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.ValidateCode")
	defer span.End()
	defer s.observe("validate_code", s.clock.Now())

	s.stampContext(ectx)
	span.SetAttributes(attribute.String("promo.code", code))

	invalid := func(e *domain.Error) *domain.PromotionValidation {
		metrics.EvaluationsTotal.WithLabelValues("validate_code", string(e.Code)).Inc()
		return &domain.PromotionValidation{Valid: false, Error: e}
	}

	if ectx.HasCode(code) {
		return invalid(domain.ErrAlreadyApplied), nil
	}

	p, err := s.catalog.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrPromotionNotFound) {
			return invalid(domain.ErrPromotionNotFound), nil
		}
		span.RecordError(err)
		return nil, err
	}

	usage, err := s.ledger.Usage(ctx, []int64{p.ID}, ectx.CustomerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// 孤立求值：只让这一个促销过一遍匹配器
	trial := *ectx
	trial.Codes = append(append([]string{}, ectx.Codes...), code)
	candidates := domain.MatchCatalog([]*domain.Promotion{p}, cart, &trial, usage)
	if len(candidates) == 0 {
		return invalid(domain.ErrPromotionNotFound), nil
	}
	cand := candidates[0]
	if cand.State != domain.StateEligible {
		return invalid(domain.NewError(cand.Reason, cand.ReasonMessage)), nil
	}

	estimate := domain.EstimateDiscount(cand, cart)
	metrics.EvaluationsTotal.WithLabelValues("validate_code", "ok").Inc()
	return &domain.PromotionValidation{
		Valid:             true,
		PromotionID:       p.ID,
		EstimatedDiscount: estimate,
	}, nil
}

// Commit 是引擎唯一的变更操作。为抵御 preview 与 commit 之间的竞态，
// 它先按当前目录状态重新跑一遍 匹配/裁决，要求先前接受的每个促销仍然
// 在接受集合里；然后逐个做账本核销。核销是全有或全无的：任何一笔失败，
// 已核销的部分立即补偿回滚。
func (s *PromotionService) Commit(ctx context.Context, cart *domain.Cart, ectx *domain.EvaluationContext, promotionIDs []int64, orderID string) (*domain.CommitReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "promotion.Commit")
	defer span.End()
	defer s.observe("commit", s.clock.Now())

	s.stampContext(ectx)
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("customer.id", ectx.CustomerID),
		attribute.Int("promotions.requested", len(promotionIDs)),
	)

	if len(promotionIDs) == 0 {
		return nil, domain.NewError(domain.ReasonNotFound, "no promotions to commit")
	}

	candidates, err := s.evaluate(ctx, cart, ectx)
	if err != nil {
		span.RecordError(err)
		metrics.EvaluationsTotal.WithLabelValues("commit", "error").Inc()
		return nil, err
	}

	// 1. 守卫：先前接受的必须仍然全部被接受，否则整单失败。
	// 请求中的重复 ID 折叠成一次：同一促销在一张回执下只核销一笔，
	// 否则第二笔核销无法随回执回滚。
	byID := make(map[int64]*domain.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.Promotion.ID] = c
	}
	seen := make(map[int64]bool, len(promotionIDs))
	toCommit := make([]*domain.Candidate, 0, len(promotionIDs))
	for _, id := range promotionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		cand, ok := byID[id]
		if !ok {
			metrics.EvaluationsTotal.WithLabelValues("commit", "stale").Inc()
			return nil, domain.NewError(domain.ReasonNotFound, "promotion no longer in catalog")
		}
		if cand.State != domain.StateAccepted {
			reason := cand.Reason
			if reason == "" {
				reason = domain.ReasonExclusiveConflict
			}
			metrics.EvaluationsTotal.WithLabelValues("commit", "stale").Inc()
			return nil, domain.NewError(reason, "promotion no longer eligible: "+cand.ReasonMessage)
		}
		toCommit = append(toCommit, cand)
	}

	// 2. 逐促销核销，失败即补偿
	receiptID := uuid.NewString()
	now := s.clock.Now()
	committed := make([]*domain.Candidate, 0, len(toCommit))
	for _, cand := range toCommit {
		if err := s.redeemWithRetry(ctx, cand.Promotion, ectx.CustomerID, receiptID, now); err != nil {
			cand.State = domain.StateCommitFailed
			s.compensate(ctx, committed, receiptID, now)
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit failed, compensation triggered")
			metrics.EvaluationsTotal.WithLabelValues("commit", "failed").Inc()
			return nil, err
		}
		cand.State = domain.StateCommitted
		committed = append(committed, cand)
	}

	receipt := &domain.CommitReceipt{
		ReceiptID:   receiptID,
		OrderID:     orderID,
		CustomerID:  ectx.CustomerID,
		CommittedAt: now,
	}
	for _, cand := range committed {
		receipt.Committed = append(receipt.Committed, domain.CommittedPromotion{
			PromotionID:    cand.Promotion.ID,
			Name:           cand.Promotion.Name,
			DiscountAmount: cand.Discount,
		})
		receipt.TotalDiscount = domain.Round2(receipt.TotalDiscount + cand.Discount)
		metrics.PromotionsAccepted.Inc()
	}

	// 3. 通知下游。事件丢失不影响核销结果，只记日志。
	if s.publisher != nil {
		if err := s.publisher.PublishReceipt(ctx, receipt); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("receipt_id", receiptID).Msg("failed to publish redemption receipt")
		}
	}

	span.AddEvent("all promotions committed")
	metrics.EvaluationsTotal.WithLabelValues("commit", "ok").Inc()
	return receipt, nil
}

// Cancel 在宽限期内补偿回滚一张回执对应的核销；超窗的核销不可逆。
func (s *PromotionService) Cancel(ctx context.Context, receiptID string, promotionIDs []int64) error {
	ctx, span := s.tracer.Start(ctx, "promotion.Cancel")
	defer span.End()

	now := s.clock.Now()
	seen := make(map[int64]bool, len(promotionIDs))
	for _, id := range promotionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.ledger.Rollback(ctx, id, receiptID, now); err != nil {
			span.RecordError(err)
			return err
		}
	}
	logger.Ctx(ctx).Info().Str("receipt_id", receiptID).Ints64("promotions", promotionIDs).Msg("redemption rolled back")
	return nil
}

// redeemWithRetry 对限额竞争做有限次退避重试；其他错误立即失败。
func (s *PromotionService) redeemWithRetry(ctx context.Context, p *domain.Promotion, customerID, receiptID string, at time.Time) error {
	backoff := s.opts.CommitBackoff
	var lastErr error
	for attempt := 0; attempt < s.opts.CommitRetries; attempt++ {
		lastErr = s.ledger.Redeem(ctx, p, customerID, receiptID, at)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domain.ErrConcurrentModification) {
			return lastErr
		}
		metrics.CommitConflicts.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

// compensate 回滚本次 commit 中已成功的核销（SAGA 补偿）。
func (s *PromotionService) compensate(ctx context.Context, committed []*domain.Candidate, receiptID string, at time.Time) {
	for _, cand := range committed {
		if err := s.ledger.Rollback(ctx, cand.Promotion.ID, receiptID, at); err != nil {
			// 补偿失败不能中断其余补偿，但必须留下痕迹
			logger.Ctx(ctx).Error().Err(err).
				Int64("promotion_id", cand.Promotion.ID).
				Str("receipt_id", receiptID).
				Msg("CRITICAL: failed to compensate redemption")
		}
	}
}

// stampContext 用注入的时钟补齐求值时间戳。
func (s *PromotionService) stampContext(ectx *domain.EvaluationContext) {
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = s.clock.Now()
	}
}

func (s *PromotionService) observe(operation string, start time.Time) {
	metrics.EvaluationDuration.WithLabelValues(operation).Observe(s.clock.Now().Sub(start).Seconds())
}

// buildPreview 把候选标注折叠成对外的预览结果。
func buildPreview(cart *domain.Cart, candidates []*domain.Candidate) *domain.PromotionPreview {
	subtotal := cart.Subtotal()
	preview := &domain.PromotionPreview{
		OriginalSubtotal: subtotal,
		Promotions:       make([]domain.ApplicablePromotion, 0, len(candidates)),
	}
	for _, cand := range candidates {
		entry := domain.ApplicablePromotion{
			PromotionID: cand.Promotion.ID,
			Name:        cand.Promotion.Name,
			Type:        cand.Promotion.Type,
		}
		switch cand.State {
		case domain.StateAccepted:
			entry.Applied = true
			entry.DiscountAmount = cand.Discount
			preview.TotalDiscount = domain.Round2(preview.TotalDiscount + cand.Discount)
		default:
			entry.Reason = string(cand.Reason)
		}
		preview.Promotions = append(preview.Promotions, entry)
	}
	preview.EstimatedFinalAmount = domain.Round2(subtotal - preview.TotalDiscount)
	return preview
}
