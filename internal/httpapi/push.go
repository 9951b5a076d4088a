package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/petrel-labs/liveboard/internal/live"
	"github.com/petrel-labs/liveboard/internal/obslog"
	"github.com/petrel-labs/liveboard/internal/session"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

const wsWriteTimeout = 10 * time.Second

// PushServer serves the live event stream over websockets on its own
// listener. The contract mirrors the SSE stream: a full snapshot first, then
// every commit in order, and an explicit gap event before the connection is
// closed when the subscriber falls behind.
type PushServer struct {
	coord *session.Coordinator
	srv   *http.Server
}

func NewPushServer(coord *session.Coordinator) *PushServer {
	p := &PushServer{coord: coord}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/games/", p.handleGame)
	p.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return p
}

func (p *PushServer) Listen(addr string) error {
	p.srv.Addr = addr
	err := p.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (p *PushServer) Shutdown(ctx context.Context) error { return p.srv.Shutdown(ctx) }

func (p *PushServer) handleGame(w http.ResponseWriter, r *http.Request) {
	gameID := strings.TrimPrefix(r.URL.Path, "/ws/games/")
	if gameID == "" || strings.Contains(gameID, "/") {
		http.NotFound(w, r)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}

	snapshot, sub, err := p.coord.Subscribe(r.Context(), gameID)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "unknown game")
		return
	}
	defer p.coord.Unsubscribe(sub)

	// CloseRead gives us a ctx that ends when the client goes away.
	ctx := conn.CloseRead(r.Context())

	if err := writeEvent(ctx, conn, snapshot); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				if errors.Is(sub.Err(), live.ErrBroadcastGap) {
					gap := livedto.Event{GameID: gameID, Type: livedto.EventGap}
					_ = writeEvent(ctx, conn, gap)
					conn.Close(websocket.StatusTryAgainLater, "event gap, resync from snapshot")
					obslog.L().Warn("ws_stream_gapped", zap.String("game_id", gameID))
					return
				}
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev livedto.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}
