package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"gusto/internal/pkg/logger"
	"gusto/internal/service/promotion/application"
	"gusto/internal/service/promotion/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

// OffersHandler 是实时优惠推送的 WebSocket 处理器。收银终端每次购物车
// 变化时推一份快照，服务端回推当前可用的促销列表，顾客屏实时刷新。
type OffersHandler struct {
	service *application.PromotionService
}

func NewOffersHandler(service *application.PromotionService) *OffersHandler {
	return &OffersHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册 WebSocket 路由
func (h *OffersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/offers/ws", h.serveWs)
}

// offersPush 是回推给终端的消息体
type offersPush struct {
	CustomerID string                       `json:"customerId,omitempty"`
	Offers     []domain.ApplicablePromotion `json:"offers"`
	Error      string                       `json:"error,omitempty"`
}

func (h *OffersHandler) serveWs(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := &offersSession{
		handler:    h,
		conn:       conn,
		customerID: customerID,
		push:       make(chan *offersPush, 8),
	}
	session.run(r.Context())
}

// offersSession 代表一条活跃的终端连接
type offersSession struct {
	handler    *OffersHandler
	conn       *websocket.Conn
	customerID string
	push       chan *offersPush
}

func (s *offersSession) run(ctx context.Context) {
	defer s.conn.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readPump(ctx) })
	g.Go(func() error { return s.writePump(ctx) })

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Ctx(ctx).Debug().Err(err).Str("customer_id", s.customerID).Msg("offers session closed")
	}
}

// readPump 读取购物车快照，逐条求值后排入推送队列
func (s *offersSession) readPump(ctx context.Context) error {
	defer close(s.push)

	s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var req application.PreviewRequest
		if err := s.conn.ReadJSON(&req); err != nil {
			return err
		}
		if req.Context.CustomerID == "" {
			req.Context.CustomerID = s.customerID
		}

		result := &offersPush{CustomerID: req.Context.CustomerID}
		offers, err := s.handler.service.ListApplicable(ctx, &req.Cart, &req.Context)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Offers = offers
		}

		select {
		case s.push <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writePump 把求值结果和心跳写回连接
func (s *offersSession) writePump(ctx context.Context) error {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case result, ok := <-s.push:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			payload, err := json.Marshal(result)
			if err != nil {
				return err
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
