package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SupplierQuote é a mensagem crua do fornecedor de cotações.
type SupplierQuote struct {
	MatchID string  `json:"matchId"`
	Home    float64 `json:"home"`
	Draw    float64 `json:"draw"`
	Away    float64 `json:"away"`
}

// QuoteHandler recebe cada cotação validada do feed.
type QuoteHandler func(ctx context.Context, matchID string, home, draw, away float64) error

// Client consome cotações do fornecedor via WebSocket e repassa ao handler
// (normalmente Registry.PublishQuote). Reconecta com backoff em desconexão.
type Client struct {
	URL     string
	Log     *zap.Logger
	Handler QuoteHandler

	// OnQuote e OnError são callbacks de métricas; nil é permitido.
	OnQuote func()
	OnError func(stage string)
}

// Start roda o loop de conexão até o contexto encerrar.
func (c *Client) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping feed client")
			return
		default:
			if err := c.connectAndListen(ctx); err != nil {
				c.Log.Warn("feed connection closed", zap.Error(err))
				time.Sleep(3 * time.Second)
			}
		}
	}
}

func (c *Client) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to supplier WS", zap.String("url", c.URL))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Log.Error("read message failed", zap.Error(err))
			return err
		}

		var q SupplierQuote
		if err := json.Unmarshal(message, &q); err != nil {
			c.Log.Warn("invalid feed message", zap.Error(err))
			if c.OnError != nil {
				c.OnError("decode")
			}
			continue
		}
		if q.MatchID == "" {
			continue
		}

		if err := c.Handler(ctx, q.MatchID, q.Home, q.Draw, q.Away); err != nil {
			// Cotação recusada (piso, partida encerrada) não derruba o feed.
			c.Log.Warn("quote rejected",
				zap.String("matchId", q.MatchID),
				zap.Error(err))
			if c.OnError != nil {
				c.OnError("publish")
			}
			continue
		}
		if c.OnQuote != nil {
			c.OnQuote()
		}
	}
}
