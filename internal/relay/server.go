// Package relay is the credential-isolating websocket relay. Local
// clients connect without the backend key; the relay holds the key,
// dials the backend on their behalf, and forwards frames verbatim in
// both directions.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/repcoach/internal/config"
	"github.com/soyeahso/repcoach/internal/logging"
)

// ErrNoUpstreamKey means the relay was started without a backend key.
var ErrNoUpstreamKey = errors.New("relay: no upstream key configured")

const maxFrameBytes = 4 * 1024 * 1024

// Server accepts local websocket connections and bridges each to its own
// upstream connection. The upstream credential never crosses the local leg.
type Server struct {
	cfg      config.RelayConfig
	upstream string
	key      string
	log      *logging.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
	dialer     *websocket.Dialer

	mu      sync.Mutex
	ln      net.Listener
	bridges map[string]*bridge

	startedAt time.Time
}

// New creates a relay server from config. The upstream key comes from the
// relay config section.
func New(cfg config.RelayConfig, log *logging.Logger) *Server {
	return &Server{
		cfg:      cfg,
		upstream: cfg.UpstreamURL,
		key:      cfg.APIKey,
		log:      log.Sub("relay"),
		dialer:   websocket.DefaultDialer,
		bridges:  make(map[string]*bridge),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Local clients only; the bind address is the access control.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.RelayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	if s.key == "" {
		return ErrNoUpstreamKey
	}

	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/realtime", func(w http.ResponseWriter, r *http.Request) {
		s.handleClient(ctx, w, r)
	})

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("upstream", s.upstream).
		Msg("relay server starting")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down relay server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	active := len(s.bridges)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","uptime":%d,"connections":%d}`,
		int(time.Since(s.startedAt).Seconds()), active)
}

// handleClient upgrades the local connection, dials a dedicated upstream
// connection with the injected credential, and pumps both directions
// until either leg closes.
func (s *Server) handleClient(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	client, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	client.SetReadLimit(maxFrameBytes)

	id := uuid.New().String()
	log := s.log.Sub("bridge")
	log.Info().Str("bridgeId", id).Str("remote", r.RemoteAddr).Msg("client connected")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.key)

	upstream, resp, err := s.dialer.DialContext(ctx, s.upstream, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		log.Error().Err(err).Str("bridgeId", id).Msg("upstream dial failed")
		client.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "upstream unavailable"))
		client.Close()
		return
	}
	upstream.SetReadLimit(maxFrameBytes)

	b := &bridge{id: id, client: client, upstream: upstream, log: log}
	s.mu.Lock()
	s.bridges[id] = b
	s.mu.Unlock()

	b.run()

	s.mu.Lock()
	delete(s.bridges, id)
	s.mu.Unlock()
	log.Info().Str("bridgeId", id).Msg("bridge closed")
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bridges {
		b.close()
	}
}

// bridge is one client/upstream connection pair.
type bridge struct {
	id       string
	client   *websocket.Conn
	upstream *websocket.Conn
	log      *logging.Logger

	closeOnce sync.Once
}

// run pumps frames both ways and blocks until both pumps exit. The first
// leg to fail closes the other.
func (b *bridge) run() {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.pump(b.client, b.upstream, "client->upstream")
	}()
	go func() {
		defer wg.Done()
		b.pump(b.upstream, b.client, "upstream->client")
	}()
	wg.Wait()
	b.close()
}

// pump copies frames from src to dst without inspecting payloads. Message
// type is preserved so binary frames pass through untouched.
func (b *bridge) pump(src, dst *websocket.Conn, direction string) {
	defer b.close()

	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				b.log.Debug().Err(err).Str("bridgeId", b.id).Str("direction", direction).Msg("read ended")
			}
			return
		}
		if err := dst.WriteMessage(msgType, data); err != nil {
			b.log.Debug().Err(err).Str("bridgeId", b.id).Str("direction", direction).Msg("write ended")
			return
		}
	}
}

func (b *bridge) close() {
	b.closeOnce.Do(func() {
		b.client.Close()
		b.upstream.Close()
	})
}
