package tap

import (
	"net"
	"sync"

	"example.com/me/rawtap/internal/chain"
)

// fakeSession сессия с собственной цепочкой
type fakeSession struct {
	id    uint64
	addr  net.Addr
	chain *chain.Chain
	attrs sync.Map
}

func newFakeSession(id uint64, addr string, c *chain.Chain) *fakeSession {
	s := &fakeSession{id: id, chain: c}
	if addr != "" {
		s.addr, _ = net.ResolveTCPAddr("tcp", addr)
	}
	return s
}

func (s *fakeSession) ID() uint64                { return s.id }
func (s *fakeSession) RemoteAddr() net.Addr      { return s.addr }
func (s *fakeSession) FilterChain() *chain.Chain { return s.chain }
func (s *fakeSession) Write(message any) error {
	return s.chain.FireFilterWrite(s, &chain.WriteRequest{Message: message})
}
func (s *fakeSession) Close() error                       { return nil }
func (s *fakeSession) Attribute(key string) (any, bool)   { return s.attrs.Load(key) }
func (s *fakeSession) SetAttribute(key string, value any) { s.attrs.Store(key, value) }
func (s *fakeSession) RemoveAttribute(key string)         { s.attrs.Delete(key) }

// fakeSetting синхронно уведомляет слушателей
type fakeSetting struct {
	mu        sync.Mutex
	value     bool
	listeners []func(bool)
}

func (f *fakeSetting) Value() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *fakeSetting) Set(value bool) error {
	f.mu.Lock()
	f.value = value
	listeners := append([]func(bool){}, f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		l(value)
	}
	return nil
}

func (f *fakeSetting) AddListener(fn func(bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// memorySink собирает строки трассы
type memorySink struct {
	mu    sync.Mutex
	lines []string
}

func (m *memorySink) Log(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, line)
}

func (m *memorySink) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

// fakeAcceptor acceptor с шаблонной цепочкой
type fakeAcceptor struct {
	chain *chain.Chain
}

func (a *fakeAcceptor) FilterChain() *chain.Chain {
	if a == nil {
		return nil
	}
	return a.chain
}

// recordingHandler хвост цепочки
type recordingHandler struct {
	mu       sync.Mutex
	received []any
}

func (h *recordingHandler) SessionOpened(session chain.Session) error { return nil }
func (h *recordingHandler) SessionClosed(session chain.Session) error { return nil }
func (h *recordingHandler) MessageReceived(session chain.Session, message any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, message)
	return nil
}

// recordingWriter голова цепочки записи
type recordingWriter struct {
	requests []*chain.WriteRequest
}

func (w *recordingWriter) Write(session chain.Session, request *chain.WriteRequest) error {
	w.requests = append(w.requests, request)
	return nil
}

func newTestTap(enabled bool) (*Tap, *fakeSetting, *memorySink) {
	setting := &fakeSetting{value: enabled}
	out := &memorySink{}
	t := New(Config{Prefix: "C2S", Enabled: setting, Sink: out})
	return t, setting, out
}
