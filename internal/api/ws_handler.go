package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"wafiPortal/internal/api/middleware"
	"wafiPortal/internal/database"
	"wafiPortal/internal/errcode"
	"wafiPortal/internal/worker"
)

const wsPingInterval = 30 * time.Second

// Subscriber opens pub/sub subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// WsHandler forwards receipt notifications to the confirmation page.
type WsHandler struct {
	receipts       ReceiptStore
	subscriber     Subscriber
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler builds the handler. With no allowed origins only same-host
// pages may connect.
func NewWsHandler(receipts ReceiptStore, subscriber Subscriber, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		receipts:       receipts,
		subscriber:     subscriber,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// HandleConnection upgrades the request and streams the notifications of
// one receipt owned by the calling session.
func (h *WsHandler) HandleConnection(c *gin.Context) {
	ref := c.Param("ref")
	log := middleware.LoggerFromContext(c).With(slog.String("reference_code", ref))

	r, err := h.receipts.FindByReference(c.Request.Context(), ref)
	if err != nil || r.SessionID != middleware.GetSessionID(c) {
		if err != nil && !errors.Is(err, database.ErrReceiptNotFound) {
			log.Error("load receipt failed", slog.Any("error", err))
		}
		NotFound(c, "receipt not found")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	channel := worker.NotifyChannel(ref)
	pubsub := h.subscriber.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("subscribe failed", slog.Any("error", err))
		writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}

	// The worker may have finished before the subscription was in place.
	if r, err = h.receipts.FindByReference(ctx, ref); err == nil {
		if msg, done := terminalNotify(r); done {
			_ = conn.WriteJSON(msg)
			writeClose(conn, websocket.CloseNormalClosure, "done")
			return
		}
	}

	errCh := make(chan error, 2)
	go readLoop(ctx, conn, errCh, cancel)
	go subscribeLoop(ctx, conn, pubsub, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Info("websocket connection closed", slog.Any("error", err))
		} else {
			log.Info("websocket connection closed")
		}
	}
}

func terminalNotify(r *database.Receipt) (worker.ReceiptNotifyMessage, bool) {
	switch r.Status {
	case database.ReceiptReady:
		return worker.ReceiptNotifyMessage{Status: worker.NotifyReady, ReferenceCode: r.ReferenceCode, ErrorCode: errcode.OK}, true
	case database.ReceiptFailed:
		return worker.ReceiptNotifyMessage{
			Status:        worker.NotifyError,
			ReferenceCode: r.ReferenceCode,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  "تعذر إنشاء الإيصال. يمكنك الاحتفاظ برقم المرجع.",
		}, true
	default:
		return worker.ReceiptNotifyMessage{}, false
	}
}

// readLoop drains client frames so that a disconnect is noticed.
func readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	pubsub *redis.PubSub,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- errors.New("pubsub channel closed")
				cancel()
				return
			}

			log.Info("forwarding receipt notification", slog.String("channel", msg.Channel))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
			var notify worker.ReceiptNotifyMessage
			if json.Unmarshal([]byte(msg.Payload), &notify) == nil &&
				(notify.Status == worker.NotifyReady || notify.Status == worker.NotifyError) {
				writeClose(conn, websocket.CloseNormalClosure, "done")
				errCh <- nil
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
