package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"example.com/me/rawtap/internal/sink"
	"example.com/me/rawtap/internal/tap"
	"example.com/me/rawtap/internal/traffic"
	"nhooyr.io/websocket"
)

// subscriberBuffer строк в очереди одного наблюдателя /trace
const subscriberBuffer = 1024

// TapStatus состояние одного tap
type TapStatus struct {
	Prefix   string        `json:"prefix"`
	Enabled  bool          `json:"enabled"`
	Sessions int           `json:"sessions"`
	Stats    traffic.Stats `json:"stats"`
}

// Status ответ GET /taps
type Status struct {
	Whitespace bool        `json:"whitespace"`
	Taps       []TapStatus `json:"taps"`
}

// Server HTTP сервер управления отладчиком
type Server struct {
	debugger  *tap.Debugger
	broadcast *sink.Broadcast
	addr      string

	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
}

// NewServer создает admin сервер
func NewServer(host string, port int, debugger *tap.Debugger, broadcast *sink.Broadcast) *Server {
	return &Server{
		debugger:  debugger,
		broadcast: broadcast,
		addr:      net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// Handler возвращает маршруты admin API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /trace", s.handleTrace)
	mux.HandleFunc("GET /taps", s.handleStatus)
	mux.HandleFunc("PUT /taps/{prefix}", s.handleSetTap)
	mux.HandleFunc("PUT /whitespace", s.handleSetWhitespace)
	return mux
}

// Start запускает admin сервер
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start admin listener: %w", err)
	}
	s.listener = listener

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(constants.ComponentAdmin, "Admin server failed: %v", err)
		}
	}()

	logger.Info(constants.ComponentAdmin, "Admin server listening on %s", listener.Addr())
	return nil
}

// Addr возвращает адрес слушателя; nil до Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop останавливает admin сервер и закрывает потоки /trace
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) status() Status {
	status := Status{Whitespace: s.debugger.LoggingWhitespace()}
	for _, t := range s.debugger.Taps() {
		status.Taps = append(status.Taps, tapStatus(t))
	}
	return status
}

func tapStatus(t *tap.Tap) TapStatus {
	return TapStatus{
		Prefix:   t.Prefix(),
		Enabled:  t.IsEnabled(),
		Sessions: t.Sessions(),
		Stats:    t.Stats(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSetTap(w http.ResponseWriter, r *http.Request) {
	prefix := r.PathValue("prefix")
	t, ok := s.debugger.Tap(prefix)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown tap %q", prefix), http.StatusNotFound)
		return
	}
	enabled, ok := parseEnabled(w, r)
	if !ok {
		return
	}
	if err := t.SetEnabled(enabled); err != nil {
		logger.Error(constants.ComponentAdmin, "Failed to toggle tap %s: %v", prefix, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// новое значение применяется асинхронно, отвечаем запрошенным
	status := tapStatus(t)
	status.Enabled = enabled
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSetWhitespace(w http.ResponseWriter, r *http.Request) {
	enabled, ok := parseEnabled(w, r)
	if !ok {
		return
	}
	if err := s.debugger.SetLoggingWhitespace(enabled); err != nil {
		logger.Error(constants.ComponentAdmin, "Failed to toggle whitespace logging: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"whitespace": enabled})
}

// handleTrace отдает историю из кольца, затем новые строки
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error(constants.ComponentAdmin, "Failed to accept WebSocket connection: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	logger.Debug(constants.ComponentAdmin, "Trace watcher connected from %s", r.RemoteAddr)

	// подписка до повтора истории, чтобы не потерять строки между ними
	sub := s.broadcast.Subscribe(subscriberBuffer)
	defer sub.Close()

	ctx := conn.CloseRead(r.Context())

	replayed := since
	if ring := s.broadcast.Ring(); ring != nil {
		for _, entry := range ring.Since(since) {
			if err := s.sendEntry(ctx, conn, entry); err != nil {
				logger.Debug(constants.ComponentAdmin, "Trace watcher %s gone: %v", r.RemoteAddr, err)
				return
			}
			replayed = entry.Seq
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug(constants.ComponentAdmin, "Trace watcher %s disconnected, %d lines dropped", r.RemoteAddr, sub.Dropped())
			conn.Close(websocket.StatusNormalClosure, "closing")
			return
		case entry, ok := <-sub.C:
			if !ok {
				return
			}
			if entry.Seq <= replayed {
				continue
			}
			if err := s.sendEntry(ctx, conn, entry); err != nil {
				logger.Debug(constants.ComponentAdmin, "Trace watcher %s gone: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

func (s *Server) sendEntry(ctx context.Context, conn *websocket.Conn, entry sink.Entry) error {
	msg, err := EncodeEntry(entry)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.WriteTimeout)
	defer cancel()
	return SendMessage(ctx, conn, msg)
}

func parseEnabled(w http.ResponseWriter, r *http.Request) (bool, bool) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
		return false, false
	}
	return enabled, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug(constants.ComponentAdmin, "Failed to write response: %v", err)
	}
}
