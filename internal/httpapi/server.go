// Package httpapi exposes the game service over HTTP: JSON endpoints for the
// command surface and an SSE stream for live spectating. A second listener
// (push.go) serves the same stream over websockets.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/petrel-labs/liveboard/internal/analysis"
	"github.com/petrel-labs/liveboard/internal/engine"
	"github.com/petrel-labs/liveboard/internal/live"
	"github.com/petrel-labs/liveboard/internal/match"
	"github.com/petrel-labs/liveboard/internal/obslog"
	"github.com/petrel-labs/liveboard/internal/session"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

const sseKeepAlive = 15 * time.Second

type Server struct {
	coord    *session.Coordinator
	analyzer *analysis.Manager
	srv      *fasthttp.Server
}

func NewServer(coord *session.Coordinator, analyzer *analysis.Manager) *Server {
	s := &Server{coord: coord, analyzer: analyzer}
	s.srv = &fasthttp.Server{
		Handler:            s.route,
		Name:               "liveboard",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       0, // SSE streams stay open
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

func (s *Server) Listen(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// route dispatches on method and path. Paths are /games, /games/{id} and
// /games/{id}/{action}.
func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	if path == "/healthz" && method == fasthttp.MethodGet {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] != "games" {
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch {
	case len(parts) == 1 && method == fasthttp.MethodPost:
		s.handleCreate(ctx)
	case len(parts) == 2 && method == fasthttp.MethodGet:
		s.handleState(ctx, parts[1])
	case len(parts) == 3 && method == fasthttp.MethodPost && parts[2] == "join":
		s.handleJoin(ctx, parts[1])
	case len(parts) == 3 && method == fasthttp.MethodPost && parts[2] == "moves":
		s.handleMove(ctx, parts[1])
	case len(parts) == 3 && method == fasthttp.MethodGet && parts[2] == "history":
		s.handleHistory(ctx, parts[1])
	case len(parts) == 3 && method == fasthttp.MethodGet && parts[2] == "events":
		s.handleEvents(ctx, parts[1])
	case len(parts) == 3 && method == fasthttp.MethodGet && parts[2] == "analysis":
		s.handleAnalysis(ctx, parts[1])
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Server) handleCreate(ctx *fasthttp.RequestCtx) {
	var req livedto.CreateGameRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "player_id is required")
		return
	}
	ev, err := s.coord.Create(ctx, req.PlayerID, req.PlayAs)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, ev)
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx, gameID string) {
	ev, err := s.coord.State(ctx, gameID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, ev)
}

func (s *Server) handleJoin(ctx *fasthttp.RequestCtx, gameID string) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || strings.TrimSpace(req.PlayerID) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "player_id is required")
		return
	}
	ev, err := s.coord.Join(ctx, gameID, req.PlayerID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, ev)
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, gameID string) {
	var req livedto.MoveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "player_id is required")
		return
	}

	var (
		ev  livedto.Event
		err error
	)
	switch {
	case req.Resign:
		ev, err = s.coord.Resign(ctx, gameID, req.PlayerID, req.ExpectedVersion)
	case req.OfferDraw:
		ev, err = s.coord.AgreeDraw(ctx, gameID, req.PlayerID, req.ExpectedVersion)
	default:
		ev, err = s.coord.Submit(ctx, gameID, req.PlayerID, req.Move, req.ExpectedVersion)
	}
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, ev)
}

func (s *Server) handleHistory(ctx *fasthttp.RequestCtx, gameID string) {
	moves, err := s.coord.History(ctx, gameID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string][]string{"moves": moves})
}

func (s *Server) handleAnalysis(ctx *fasthttp.RequestCtx, gameID string) {
	viewerID := string(ctx.QueryArgs().Peek("viewer_id"))
	if strings.TrimSpace(viewerID) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "viewer_id is required")
		return
	}
	depth, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("depth")))

	fen, err := s.coord.FEN(ctx, gameID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	res, err := s.analyzer.Request(ctx, viewerID, fen, depth)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, res)
}

// handleEvents streams snapshot-then-commits as SSE. The snapshot and the
// subscription are taken atomically so the client misses nothing in between.
func (s *Server) handleEvents(ctx *fasthttp.RequestCtx, gameID string) {
	snapshot, sub, err := s.coord.Subscribe(ctx, gameID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.coord.Unsubscribe(sub)

		if err := writeSSE(w, snapshot); err != nil {
			return
		}
		keepAlive := time.NewTicker(sseKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					if errors.Is(sub.Err(), live.ErrBroadcastGap) {
						gap := livedto.Event{GameID: gameID, Type: livedto.EventGap}
						_ = writeSSE(w, gap)
						obslog.L().Warn("sse_stream_gapped", zap.String("game_id", gameID))
					}
					return
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
			case <-keepAlive.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

func writeSSE(w *bufio.Writer, ev livedto.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("event: " + ev.Type + "\ndata: " + string(payload) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "internal", "encode response")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	payload, _ := json.Marshal(livedto.ErrorResponse{Error: msg, Code: code})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

// writeDomainError maps domain sentinels onto HTTP statuses and stable codes.
func writeDomainError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, session.ErrGameNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "game_not_found", err.Error())
	case errors.Is(err, match.ErrVersionConflict):
		writeError(ctx, fasthttp.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, match.ErrNotYourTurn):
		writeError(ctx, fasthttp.StatusConflict, "not_your_turn", err.Error())
	case errors.Is(err, match.ErrGameFinished):
		writeError(ctx, fasthttp.StatusConflict, "game_finished", err.Error())
	case errors.Is(err, match.ErrNotStarted):
		writeError(ctx, fasthttp.StatusConflict, "not_started", err.Error())
	case errors.Is(err, match.ErrSeatTaken):
		writeError(ctx, fasthttp.StatusConflict, "seat_taken", err.Error())
	case errors.Is(err, match.ErrNotInGame):
		writeError(ctx, fasthttp.StatusForbidden, "not_in_game", err.Error())
	case errors.Is(err, engine.ErrIllegalMove):
		writeError(ctx, fasthttp.StatusBadRequest, "illegal_move", err.Error())
	case errors.Is(err, engine.ErrInvalidPosition):
		writeError(ctx, fasthttp.StatusBadRequest, "invalid_position", err.Error())
	case errors.Is(err, analysis.ErrTimeout):
		writeError(ctx, fasthttp.StatusGatewayTimeout, "analysis_timeout", err.Error())
	case errors.Is(err, analysis.ErrCancelled):
		writeError(ctx, fasthttp.StatusConflict, "analysis_superseded", err.Error())
	case errors.Is(err, session.ErrPersistence):
		writeError(ctx, fasthttp.StatusServiceUnavailable, "persistence", err.Error())
	default:
		obslog.L().Error("unhandled_api_error", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, "internal", "internal error")
	}
}
