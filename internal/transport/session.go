package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"example.com/me/rawtap/internal/buffer"
	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

var (
	// ErrNotEncoded до транспорта дошло сообщение, не преобразованное в буфер
	ErrNotEncoded = errors.New("message reached transport without encoding")
	// ErrSessionClosed запись в закрытую сессию
	ErrSessionClosed = errors.New("session closed")
)

var lastSessionID atomic.Uint64

// Conn поток байтов одной сессии: net.Conn или QUIC stream
type Conn interface {
	io.ReadWriteCloser
	SetWriteDeadline(t time.Time) error
}

// Session реализует chain.Session поверх Conn
type Session struct {
	id     uint64
	conn   Conn
	remote net.Addr
	chain  *chain.Chain
	attrs  sync.Map

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func(*Session)
}

// newSession создает сессию с копией шаблонной цепочки acceptor
func newSession(conn Conn, remote net.Addr, template *chain.Chain, onClose func(*Session)) *Session {
	s := &Session{
		id:      lastSessionID.Add(1),
		conn:    conn,
		remote:  remote,
		chain:   template.Clone(),
		onClose: onClose,
	}
	s.chain.SetWriter(headWriter{})
	return s
}

// ID возвращает идентификатор сессии
func (s *Session) ID() uint64 {
	return s.id
}

// RemoteAddr возвращает адрес клиента
func (s *Session) RemoteAddr() net.Addr {
	return s.remote
}

// FilterChain возвращает цепочку сессии
func (s *Session) FilterChain() *chain.Chain {
	return s.chain
}

// Write отправляет сообщение через цепочку
func (s *Session) Write(message any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.chain.FireFilterWrite(s, &chain.WriteRequest{Message: message})
}

// Close закрывает соединение и один раз уведомляет цепочку
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.conn.Close()
		if ferr := s.chain.FireSessionClosed(s); ferr != nil {
			logger.Debug(constants.ComponentTransport, "Session %d close handler failed: %v", s.id, ferr)
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	return err
}

// IsClosed сообщает, закрыта ли сессия
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func (s *Session) Attribute(key string) (any, bool) {
	return s.attrs.Load(key)
}

func (s *Session) SetAttribute(key string, value any) {
	s.attrs.Store(key, value)
}

func (s *Session) RemoveAttribute(key string) {
	s.attrs.Delete(key)
}

// serve читает соединение до EOF и передает каждый блок в цепочку
func (s *Session) serve() {
	defer s.Close()

	if err := s.chain.FireSessionCreated(s); err != nil {
		logger.Debug(constants.ComponentTransport, "Session %d rejected: %v", s.id, err)
		return
	}

	buf := make([]byte, constants.ReadBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if ferr := s.chain.FireMessageReceived(s, buffer.Wrap(data)); ferr != nil {
				logger.Debug(constants.ComponentTransport, "Session %d from %v closed on error: %v", s.id, s.remote, ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				logger.Debug(constants.ComponentTransport, "Session %d read failed: %v", s.id, err)
			}
			return
		}
	}
}

// headWriter пишет закодированные буферы в соединение сессии
type headWriter struct{}

func (headWriter) Write(session chain.Session, request *chain.WriteRequest) error {
	s, ok := session.(*Session)
	if !ok {
		return fmt.Errorf("unexpected session type %T", session)
	}
	buf, ok := request.Message.(*buffer.Buffer)
	if !ok {
		return fmt.Errorf("write %T: %w", request.Message, ErrNotEncoded)
	}

	s.writeMu.Lock()
	if s.closed.Load() {
		s.writeMu.Unlock()
		return ErrSessionClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout))
	n, err := s.conn.Write(buf.Bytes())
	buf.Skip(n)
	s.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to write to session %d: %w", s.id, err)
	}
	return s.chain.FireMessageSent(s, request)
}

// sessionSet открытые сессии acceptor
type sessionSet struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	closing  bool
}

func newSessionSet() *sessionSet {
	return &sessionSet{sessions: make(map[*Session]struct{})}
}

// add регистрирует сессию; после closeAll новые сессии не принимаются
func (set *sessionSet) add(s *Session) bool {
	set.mu.Lock()
	defer set.mu.Unlock()
	if set.closing {
		return false
	}
	set.sessions[s] = struct{}{}
	return true
}

func (set *sessionSet) remove(s *Session) {
	set.mu.Lock()
	defer set.mu.Unlock()
	delete(set.sessions, s)
}

func (set *sessionSet) len() int {
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.sessions)
}

// closeAll закрывает все сессии и запрещает регистрацию новых
func (set *sessionSet) closeAll() {
	set.mu.Lock()
	set.closing = true
	sessions := make([]*Session, 0, len(set.sessions))
	for s := range set.sessions {
		sessions = append(sessions, s)
	}
	set.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
