package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/pkg/contracts/events"
)

// chave de assinatura para "todos os eventos"
const subAll = "*"

// Hub gerencia conexões WebSocket e assinaturas por conta.
// subs: mapeia accountID (ou "*") para o conjunto de conexões inscritas.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*websocket.Conn]struct{}
}

// NewHub cria um Hub com política customizada de origem (CORS).
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*websocket.Conn]struct{}),
	}
}

type clientMsg struct {
	Type      string `json:"type"` // subscribe | unsubscribe | ping
	AccountID string `json:"accountId,omitempty"`
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Permite subscribe/unsubscribe por conta e responde a pings; assinatura sem
// accountId recebe todos os eventos.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg clientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		key := msg.AccountID
		if key == "" {
			key = subAll
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[key]; !ok {
				h.subs[key] = make(map[*websocket.Conn]struct{})
			}
			h.subs[key][conn] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[key]; ok {
				delete(m, conn)
				if len(m) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, conn)
	}
	h.mu.Unlock()
}

// Broadcast entrega o envelope aos inscritos na conta do evento e aos
// inscritos em tudo. Evento sem conta vai só para os inscritos em tudo.
func (h *Hub) Broadcast(ev events.Envelope) {
	h.mu.RLock()
	var conns []*websocket.Conn
	for c := range h.subs[subAll] {
		conns = append(conns, c)
	}
	if ev.AccountID != "" {
		for c := range h.subs[ev.AccountID] {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(ev)
	for _, c := range conns {
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

// Emit implementa Sink entregando direto ao hub local.
func (h *Hub) Emit(_ context.Context, ev events.Envelope) error {
	h.Broadcast(ev)
	return nil
}

// StartRedisSubscriber escuta o canal Pub/Sub e repassa cada envelope ao hub,
// para que eventos emitidos por outra instância cheguem aos clientes locais.
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var ev events.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(ev)
			}
		}
	}()
}
