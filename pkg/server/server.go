package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/tinymud/pkg/gamedb"
)

// maxLineLength caps a single input line from a TCP client.
const maxLineLength = 8192

// Server is the main TCP game server.
type Server struct {
	Game *Game

	mu        sync.Mutex
	listener  net.Listener
	webServer *WebServer
}

// NewServer creates a server for store using conf.
func NewServer(store gamedb.Store, conf *GameConf) *Server {
	return &Server{Game: NewGame(store, conf)}
}

// Start prepares the world and serves until every listener stops.
func (s *Server) Start(ctx context.Context) error {
	conf := s.Game.Conf
	if !conf.IsCleartext() && !conf.WebEnabled {
		return fmt.Errorf("both the telnet and web listeners are disabled; nothing to listen on")
	}
	if err := s.Game.Init(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if conf.IsCleartext() {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", conf.Port))
		if err != nil {
			return fmt.Errorf("cleartext listener: %w", err)
		}
		s.mu.Lock()
		s.listener = ln
		s.mu.Unlock()
		log.Printf("Listening (cleartext) on port %d", conf.Port)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.acceptLoop(ctx, ln)
		}()
	}

	if conf.WebEnabled {
		ws := NewWebServer(s.Game, WebConfigFrom(conf))
		s.mu.Lock()
		s.webServer = ws
		s.mu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
	}
	return nil
}

// acceptLoop accepts connections on ln until it is closed.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// Stop closes all active listeners.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	if s.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.webServer.Stop(ctx)
		s.webServer = nil
	}
}

// handleConnection manages a single client connection lifecycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	d := NewDescriptor(conn)
	s.Game.Metrics.connectionsTotal.WithLabelValues(d.Transport.String()).Inc()
	log.Printf("[%d] New connection from %s", d.ID, d.Addr)

	defer func() {
		s.Game.Disconnect(d)
		d.Close()
		log.Printf("[%d] Connection closed from %s", d.ID, d.Addr)
	}()

	s.Game.Splash(d)

	scanner := bufio.NewScanner(d.Conn)
	scanner.Buffer(make([]byte, maxLineLength), maxLineLength)

	for scanner.Scan() {
		if d.IsClosed() {
			return
		}
		line := strings.TrimRight(stripTelnet(scanner.Text()), "\r\n")

		if err := s.Game.DispatchCommand(ctx, d, line); err != nil {
			log.Printf("[%d] %v", d.ID, err)
			return
		}
		if d.IsClosed() {
			return
		}
	}
}

// stripTelnet removes telnet IAC command sequences from input.
func stripTelnet(s string) string {
	var buf strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == 0xFF && i+2 < len(s) {
			// IAC command: skip 3 bytes (IAC + cmd + option)
			i += 3
			continue
		}
		if s[i] == 0xFF && i+1 < len(s) {
			i += 2
			continue
		}
		// Skip other control chars except tab and standard whitespace
		if s[i] < 32 && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			i++
			continue
		}
		buf.WriteByte(s[i])
		i++
	}
	return buf.String()
}
