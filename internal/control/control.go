package control

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/netpulse/netpulse/internal/config"
	"github.com/netpulse/netpulse/internal/measure"
	"github.com/netpulse/netpulse/internal/record"
	"github.com/netpulse/netpulse/internal/util"
	"github.com/netpulse/netpulse/internal/version"
)

const (
	wsTokenPrefix     = "netpulse-token."
	wsPrimaryProtocol = "netpulse"
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingInterval    = 30 * time.Second
)

// Server exposes a read-only status endpoint and a WebSocket stream of
// cycle events on the local control port.
type Server struct {
	cfg    config.ControlConfig
	kind   record.Kind
	logger util.Logger
	server *http.Server

	mu        sync.Mutex
	clients   map[*client]struct{}
	startedAt time.Time
	counts    map[measure.Outcome]uint64
	last      *measure.CycleEvent
}

type client struct {
	send chan []byte
}

func NewServer(cfg config.ControlConfig, kind record.Kind, logger util.Logger) *Server {
	return &Server{
		cfg:       cfg,
		kind:      kind,
		logger:    logger,
		clients:   make(map[*client]struct{}),
		startedAt: time.Now().UTC(),
		counts:    make(map[measure.Outcome]uint64),
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/events", s.handleEvents)

	addr := util.NetJoin(s.cfg.BindAddr, s.cfg.BindPort)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()
	s.logger.Info("control server started", "addr", addr)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HandleCycleEvent records counters and fans the event out to connected
// stream clients. Called from the measurement loop.
func (s *Server) HandleCycleEvent(ev measure.CycleEvent) {
	s.mu.Lock()
	s.counts[ev.Outcome]++
	s.last = &ev
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(eventMessage{
		SchemaVersion: 1,
		Type:          "cycle",
		CycleID:       ev.ID,
		Kind:          string(ev.Kind),
		StartedAt:     ev.StartedAt.UnixMilli(),
		Outcome:       string(ev.Outcome),
		Detail:        ev.Detail,
	})
	if err != nil {
		return
	}
	for _, c := range targets {
		select {
		case c.send <- data:
		default:
		}
	}
}

type eventMessage struct {
	SchemaVersion int    `json:"schema_version"`
	Type          string `json:"type"`
	CycleID       string `json:"cycle_id"`
	Kind          string `json:"kind"`
	StartedAt     int64  `json:"started_at"`
	Outcome       string `json:"outcome"`
	Detail        string `json:"detail,omitempty"`
}

type statusResponse struct {
	Version       string            `json:"version"`
	Kind          string            `json:"kind"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Cycles        map[string]uint64 `json:"cycles"`
	LastCycle     *eventMessage     `json:"last_cycle,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.checkAuth(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	counts := make(map[string]uint64, len(s.counts))
	for outcome, n := range s.counts {
		counts[string(outcome)] = n
	}
	var last *eventMessage
	if s.last != nil {
		last = &eventMessage{
			SchemaVersion: 1,
			Type:          "cycle",
			CycleID:       s.last.ID,
			Kind:          string(s.last.Kind),
			StartedAt:     s.last.StartedAt.UnixMilli(),
			Outcome:       string(s.last.Outcome),
			Detail:        s.last.Detail,
		}
	}
	uptime := int64(time.Since(s.startedAt).Seconds())
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Version:       version.Version,
		Kind:          string(s.kind),
		UptimeSeconds: uptime,
		Cycles:        counts,
		LastCycle:     last,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.checkStreamAuth(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin:  func(r *http.Request) bool { return true },
		Subprotocols: []string{wsPrimaryProtocol},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c := &client{send: make(chan []byte, 32)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	var closeOnce sync.Once
	cleanup := func() {
		closeOnce.Do(func() {
			close(done)
			_ = conn.Close()
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
		})
	}

	go func() {
		defer cleanup()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer cleanup()
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case data := <-c.send:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}
	}()
}

func (s *Server) checkAuth(r *http.Request) bool {
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	return secureTokenEqual(token, s.cfg.AuthToken)
}

func (s *Server) checkStreamAuth(r *http.Request) bool {
	if token, ok := bearerToken(r); ok {
		return secureTokenEqual(token, s.cfg.AuthToken)
	}
	if token, ok := tokenFromWebSocketProtocols(r); ok {
		return secureTokenEqual(token, s.cfg.AuthToken)
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func tokenFromWebSocketProtocols(r *http.Request) (string, bool) {
	for _, proto := range websocket.Subprotocols(r) {
		if !strings.HasPrefix(proto, wsTokenPrefix) {
			continue
		}
		encoded := strings.TrimPrefix(proto, wsTokenPrefix)
		if encoded == "" {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil || len(decoded) == 0 {
			continue
		}
		return string(decoded), true
	}
	return "", false
}

func secureTokenEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
