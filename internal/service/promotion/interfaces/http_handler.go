package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"gusto/internal/service/promotion/application"
	"gusto/internal/service/promotion/domain"
)

// PromotionHandler 封装了 promotion-engine 的 HTTP 处理器
type PromotionHandler struct {
	service *application.PromotionService
}

// NewPromotionHandler 创建一个新的 HTTP 处理器实例
func NewPromotionHandler(service *application.PromotionService) *PromotionHandler {
	return &PromotionHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PromotionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/preview", h.handlePreview)
	mux.HandleFunc("/validate_code", h.handleValidateCode)
	mux.HandleFunc("/commit", h.handleCommit)
	mux.HandleFunc("/list_applicable", h.handleListApplicable)
	mux.HandleFunc("/cancel", h.handleCancel)
}

func (h *PromotionHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	preview, err := h.service.Preview(ctx, &req.Cart, &req.Context)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, preview)
}

func (h *PromotionHandler) handleValidateCode(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.ValidateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		http.Error(w, "Missing promo code", http.StatusBadRequest)
		return
	}

	// 业务上的"码无效"不是传输错误：校验结果连同失败原因一律 200 返回，
	// 由收银终端决定如何提示。
	validation, err := h.service.ValidateCode(ctx, req.Code, &req.Cart, &req.Context)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, validation)
}

func (h *PromotionHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		http.Error(w, "Missing order id", http.StatusBadRequest)
		return
	}

	receipt, err := h.service.Commit(ctx, &req.Cart, &req.Context, req.PromotionIDs, req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, receipt)
}

func (h *PromotionHandler) handleListApplicable(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	applicable, err := h.service.ListApplicable(ctx, &req.Cart, &req.Context)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, applicable)
}

// handleCancel 是宽限期撤销接口的处理器
func (h *PromotionHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Cancel(ctx, req.ReceiptID, req.PromotionIDs); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"success": true,
		"message": "Promotion usage successfully cancelled.",
	})
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// writeDomainError 根据错误类型返回不同的 HTTP 状态码
func writeDomainError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrPromotionNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrPromotionExpired),
		errors.Is(err, domain.ErrUsageLimitReached),
		errors.Is(err, domain.ErrPerCustomerLimit),
		errors.Is(err, domain.ErrExclusiveConflict),
		errors.Is(err, domain.ErrAlreadyApplied),
		errors.Is(err, domain.ErrMinCartNotMet),
		errors.Is(err, domain.ErrMinItemsNotMet),
		errors.Is(err, domain.ErrOutsideTimeWindow),
		errors.Is(err, domain.ErrOutsideDayWindow),
		errors.Is(err, domain.ErrSegmentMismatch):
		statusCode = http.StatusForbidden // 客户端请求有效，但服务器拒绝执行
	case errors.Is(err, domain.ErrConcurrentModification):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
