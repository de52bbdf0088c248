package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/0xtaosu/meme-memos/internal/stream"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

type StreamHandler struct {
	Hub            *stream.Hub
	Logger         *zap.Logger
	OriginPatterns []string
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/memos/stream", h.serve)
}

// @Summary Memo change feed (websocket)
// @Description Pushes memo.upserted, memo.deleted, event.appended and event.deleted messages.
// @Tags memos
// @Success 101
// @Router /api/memos/stream [get]
func (h *StreamHandler) serve(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.log().Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := h.Hub.Subscribe()
	defer sub.Close()

	// Inbound frames are ignored; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, msg); err != nil {
				h.log().Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, msg stream.Message) error {
	wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, msg)
}

func (h *StreamHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
