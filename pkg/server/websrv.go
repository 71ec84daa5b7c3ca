package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebConfig holds configuration for the web server.
type WebConfig struct {
	Port         int
	Host         string
	Domain       string
	CertFile     string
	KeyFile      string
	CertDir      string
	PingInterval time.Duration
	ConnectLimit int // per address per minute, 0 disables
	// TrustedProxies lists the addresses or networks allowed to set
	// X-Forwarded-For and X-Real-IP.
	TrustedProxies []string
}

// WebConfigFrom extracts the web settings from conf.
func WebConfigFrom(conf *GameConf) WebConfig {
	return WebConfig{
		Port:         conf.WebPort,
		Host:         conf.WebHost,
		Domain:       conf.WebDomain,
		CertFile:     conf.TLSCert,
		KeyFile:      conf.TLSKey,
		CertDir:      conf.CertDir,
		PingInterval: conf.PingInterval(),
		ConnectLimit: conf.WSConnectLimit,

		TrustedProxies: conf.WebTrustedProxies,
	}
}

// WebServer provides HTTP/WebSocket transport alongside the TCP game server.
type WebServer struct {
	game      *Game
	cfg       WebConfig
	httpSrv   *http.Server
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	proxies   proxySet
	startTime time.Time
}

// NewWebServer creates a web server bound to the game.
func NewWebServer(game *Game, cfg WebConfig) *WebServer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	ws := &WebServer{
		game:      game,
		cfg:       cfg,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	proxies, err := parseProxies(cfg.TrustedProxies)
	if err != nil {
		log.Printf("web: ignoring trusted proxies: %v", err)
	}
	ws.proxies = proxies
	upgrade := ws.handleWebSocket
	if cfg.ConnectLimit > 0 {
		upgrade = limitConnections(newConnLimiter(cfg.ConnectLimit), proxies, upgrade)
	}
	ws.mux.HandleFunc("GET /ws", upgrade)
	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	ws.mux.Handle("GET /metrics", game.Metrics.Handler())

	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: ws.mux,
	}
	return ws
}

// Handler exposes the routes, mainly for tests.
func (ws *WebServer) Handler() http.Handler { return ws.mux }

// Start begins listening. Uses HTTPS when TLS is configured, falling back
// to plain HTTP when the certificates cannot be set up.
func (ws *WebServer) Start() error {
	if ws.cfg.HasTLS() {
		result, err := SetupTLS(ws.cfg)
		if err != nil {
			log.Printf("web: TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = result.Config
			if result.AutocertMgr != nil {
				go ws.serveACME(result.AutocertMgr.HTTPHandler(nil))
			}
			log.Printf("Web server listening on %s (HTTPS)", ws.httpSrv.Addr)
			return ignoreClosed(ws.httpSrv.ListenAndServeTLS("", ""))
		}
	}
	log.Printf("Web server listening on %s (HTTP)", ws.httpSrv.Addr)
	return ignoreClosed(ws.httpSrv.ListenAndServe())
}

// serveACME answers Let's Encrypt HTTP challenges on port 80.
func (ws *WebServer) serveACME(h http.Handler) {
	srv := &http.Server{Addr: ":80", Handler: h}
	log.Printf("ACME HTTP challenge listener on :80")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("ACME HTTP listener error: %v", err)
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the web server.
func (ws *WebServer) Stop(ctx context.Context) error {
	return ws.httpSrv.Shutdown(ctx)
}

// --- WebSocket Handler ---

// WSMessage is the JSON frame exchanged over /ws. Clients send
// {"type":"command","command":"..."}; the server sends "welcome", "text"
// and "error" frames.
type WSMessage struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Command string         `json:"command,omitempty"`
}

// wsConn holds the WebSocket connection and its write mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return wc.conn.WriteJSON(msg)
}

func (wc *wsConn) ping() error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

// handleWebSocket upgrades an HTTP connection to a WebSocket and creates
// a game Descriptor for the client.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	d, wc := newWSDescriptor(conn, remoteAddr(r, ws.proxies))
	ws.game.Metrics.connectionsTotal.WithLabelValues(d.Transport.String()).Inc()
	log.Printf("[ws:%d] New connection from %s", d.ID, d.Addr)

	wc.sendJSON(WSMessage{
		Type: "welcome",
		Data: map[string]any{"session_id": d.SessionID.String()},
	})
	ws.game.Splash(d)

	go ws.readLoop(d, wc)
}

// newWSDescriptor creates a Descriptor whose output is written as JSON
// text frames.
func newWSDescriptor(conn *websocket.Conn, addr string) (*Descriptor, *wsConn) {
	wc := &wsConn{conn: conn}
	d := newDescriptor(TransportWebSocket, addr)
	d.CloseFunc = func() { conn.Close() }
	d.startWriter(func(f frame) error {
		kind := f.kind
		if kind == "" {
			kind = "text"
		}
		return wc.sendJSON(WSMessage{Type: kind, Text: f.text})
	})
	return d, wc
}

func (ws *WebServer) readLoop(d *Descriptor, wc *wsConn) {
	// Upgraded connections outlive the request context.
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		ws.game.Disconnect(d)
		d.Close()
		log.Printf("[ws:%d] WebSocket closed from %s", d.ID, d.Addr)
	}()

	pongWait := 2 * ws.cfg.PingInterval
	wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go ws.pingLoop(ctx, d, wc)

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws:%d] read error: %v", d.ID, err)
			}
			return
		}
		wc.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			d.enqueue(frame{kind: "error", text: "Invalid JSON message"})
			continue
		}
		switch msg.Type {
		case "command":
			if err := ws.game.DispatchCommand(ctx, d, msg.Command); err != nil {
				log.Printf("[ws:%d] %v", d.ID, err)
				return
			}
			if d.IsClosed() {
				return
			}
		default:
			d.enqueue(frame{kind: "error", text: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
	}
}

func (ws *WebServer) pingLoop(ctx context.Context, d *Descriptor, wc *wsConn) {
	ticker := time.NewTicker(ws.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				d.Close()
				return
			}
		}
	}
}

// --- Health Handler ---

func (ws *WebServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"players":        ws.game.Sessions.Len(),
	})
}
