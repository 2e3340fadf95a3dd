package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/feed"
	"github.com/radieske/bet-core/internal/shared/config"
	"github.com/radieske/bet-core/internal/shared/kafka"
	"github.com/radieske/bet-core/internal/shared/logger"
	"github.com/radieske/bet-core/internal/shared/metrics"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Catálogo fixo de partidas simuladas para geração de cotações
	matchCatalog = []string{"MATCH_001", "MATCH_002", "MATCH_003", "MATCH_004"}

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	resultsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_results_published_total",
		Help: "Resultados publicados no Kafka",
	})
)

type clientConn struct {
	id   string
	conn *websocket.Conn
}

// hub gerencia os clientes conectados e o broadcast de cotações.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[string]*clientConn), log: log}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

func rnd(min, max float64) float64 {
	return (rand.Float64() * (max - min)) + min
}

func main() {
	cfg := config.Load()
	log, err := logger.New("feed-simulator", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, resultsPublished)

	h := newHub(log)

	resultsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchResults)
	defer resultsWriter.Close()

	// Gera e envia cotações simuladas a cada 3 segundos
	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, matchID := range matchCatalog {
				h.broadcast(feed.SupplierQuote{
					MatchID: matchID,
					Home:    rnd(1.40, 3.50),
					Draw:    rnd(2.50, 4.50),
					Away:    rnd(2.00, 5.00),
				})
			}
		}
	}()

	appMux := http.NewServeMux()

	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// Injeta um resultado final no tópico match_results; útil para testar a
	// liquidação ponta a ponta sem um feed real.
	appMux.HandleFunc("/simulate/result", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var res events.MatchResult
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil || res.MatchID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		res.Source = "feed-simulator"
		res.Ts = time.Now().UTC()

		b, _ := json.Marshal(res)
		if err := kafka.WriteJSON(r.Context(), resultsWriter, res.MatchID, b); err != nil {
			log.Error("result publish failed", zap.Error(err))
			http.Error(w, "kafka", http.StatusBadGateway)
			return
		}
		resultsPublished.Inc()
		w.WriteHeader(http.StatusAccepted)
	})

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("feed simulator (metrics) running", zap.String("addr", metricsSrv.Addr))

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("feed simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws,/simulate/result"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
