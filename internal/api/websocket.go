package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// Stream message types.
const (
	MessageEquity = "equity"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage is one frame of GET /ws/backtest. Every candle produces an
// equity frame; the stream ends with a single result or error frame.
type StreamMessage struct {
	Type    string                     `json:"type"`
	Point   *domain.EquityPoint        `json:"point,omitempty"`
	Trade   *domain.Trade              `json:"trade,omitempty"`
	RunID   string                     `json:"run_id,omitempty"`
	Metrics *domain.PerformanceMetrics `json:"metrics,omitempty"`
	Open    *domain.Position           `json:"open_position,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// handleBacktestStream runs a backtest over stored candles and streams the
// equity curve as it is simulated.
// Query: strategy, symbol, start, end, initial_capital, p.<param>=<value>.
func (s *Server) handleBacktestStream(w http.ResponseWriter, r *http.Request) {
	// Validate before upgrading so bad requests get a plain HTTP error.
	req, err := backtestRequestFromQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	in, err := req.validate()
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer observability.TrackWSStream()()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: detect client disconnects so the simulation stops early.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg StreamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			cancel()
			return false
		}
		return true
	}

	candles, err := s.svc.LoadCandles(ctx, in.symbol, in.start, in.end)
	if err != nil {
		send(StreamMessage{Type: MessageError, Error: err.Error()})
		return
	}

	result, err := s.svc.StreamBacktest(ctx, in.kind, in.symbol, candles, in.params, in.initialCapital,
		func(point domain.EquityPoint, trade *domain.Trade) {
			if ctx.Err() != nil {
				return
			}
			send(StreamMessage{Type: MessageEquity, Point: &point, Trade: trade})
		})
	if err != nil {
		if ctx.Err() == nil {
			send(StreamMessage{Type: MessageError, Error: err.Error()})
		}
		return
	}

	if send(StreamMessage{
		Type:    MessageResult,
		RunID:   result.RunID,
		Metrics: &result.Metrics,
		Open:    result.OpenPosition,
	}) {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
