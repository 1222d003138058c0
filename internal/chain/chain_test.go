package chain

import (
	"errors"
	"net"
	"reflect"
	"sync"
	"testing"
)

// recordingFilter записывает порядок прохождения событий
type recordingFilter struct {
	Adapter
	name string
	log  *[]string
}

func (r *recordingFilter) MessageReceived(next NextFilter, session Session, message any) error {
	*r.log = append(*r.log, "recv:"+r.name)
	return next.MessageReceived(session, message)
}

func (r *recordingFilter) FilterWrite(next NextFilter, session Session, request *WriteRequest) error {
	*r.log = append(*r.log, "write:"+r.name)
	return next.FilterWrite(session, request)
}

type recordingHandler struct {
	received []any
	opened   int
	closed   int
}

func (h *recordingHandler) SessionOpened(session Session) error { h.opened++; return nil }
func (h *recordingHandler) SessionClosed(session Session) error { h.closed++; return nil }
func (h *recordingHandler) MessageReceived(session Session, message any) error {
	h.received = append(h.received, message)
	return nil
}

type recordingWriter struct {
	written []any
	err     error
}

func (w *recordingWriter) Write(session Session, request *WriteRequest) error {
	w.written = append(w.written, request.Message)
	return w.err
}

type stubSession struct {
	chain *Chain
	attrs sync.Map
}

func (s *stubSession) ID() uint64           { return 1 }
func (s *stubSession) RemoteAddr() net.Addr { return nil }
func (s *stubSession) FilterChain() *Chain  { return s.chain }
func (s *stubSession) Write(message any) error {
	return s.chain.FireFilterWrite(s, &WriteRequest{Message: message})
}
func (s *stubSession) Close() error { return nil }
func (s *stubSession) Attribute(key string) (any, bool) {
	return s.attrs.Load(key)
}
func (s *stubSession) SetAttribute(key string, value any) { s.attrs.Store(key, value) }
func (s *stubSession) RemoveAttribute(key string)         { s.attrs.Delete(key) }

func TestChain_AddOrder(t *testing.T) {
	c := New()
	if err := c.AddLast("codec", Adapter{}); err != nil {
		t.Fatalf("AddLast: %v", err)
	}
	if err := c.AddFirst("tls", Adapter{}); err != nil {
		t.Fatalf("AddFirst: %v", err)
	}
	if err := c.AddAfter("tls", "compression", Adapter{}); err != nil {
		t.Fatalf("AddAfter: %v", err)
	}
	if err := c.AddBefore("codec", "rawDebugger", Adapter{}); err != nil {
		t.Fatalf("AddBefore: %v", err)
	}

	want := []string{"tls", "compression", "rawDebugger", "codec"}
	if got := c.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Неверный порядок: ожидалось %v, получено %v", want, got)
	}
}

func TestChain_DuplicateName(t *testing.T) {
	c := New()
	c.AddLast("codec", Adapter{})

	err := c.AddLast("codec", Adapter{})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Ожидалась ErrDuplicateName, получено %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Ожидалась 1 стадия, получено %d", c.Len())
	}
}

func TestChain_AddAfterMissingBase(t *testing.T) {
	c := New()
	err := c.AddAfter("compression", "rawDebugger", Adapter{})
	if !errors.Is(err, ErrNoSuchFilter) {
		t.Errorf("Ожидалась ErrNoSuchFilter, получено %v", err)
	}
}

func TestChain_Remove(t *testing.T) {
	c := New()
	c.AddLast("a", Adapter{})
	c.AddLast("b", Adapter{})

	if !c.Remove("a") {
		t.Error("Remove существующей стадии должен вернуть true")
	}
	if c.Remove("a") {
		t.Error("Повторный Remove должен вернуть false")
	}
	if c.Contains("a") || !c.Contains("b") {
		t.Errorf("Неверное состояние цепочки: %v", c.Names())
	}
}

func TestChain_CloneIsIndependent(t *testing.T) {
	c := New()
	c.AddLast("a", Adapter{})

	clone := c.Clone()
	clone.AddLast("b", Adapter{})
	c.Remove("a")

	if !clone.Contains("a") || !clone.Contains("b") {
		t.Errorf("Копия изменилась вместе с оригиналом: %v", clone.Names())
	}
	if c.Contains("b") {
		t.Error("Оригинал изменился вместе с копией")
	}
}

func TestChain_DispatchOrder(t *testing.T) {
	var log []string
	handler := &recordingHandler{}
	writer := &recordingWriter{}

	c := New()
	c.AddLast("first", &recordingFilter{name: "first", log: &log})
	c.AddLast("second", &recordingFilter{name: "second", log: &log})
	c.SetHandler(handler)
	c.SetWriter(writer)

	session := &stubSession{chain: c}
	if err := c.FireMessageReceived(session, "hello"); err != nil {
		t.Fatalf("FireMessageReceived: %v", err)
	}
	if err := session.Write("bye"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := []string{"recv:first", "recv:second", "write:second", "write:first"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Неверный порядок событий: ожидалось %v, получено %v", want, log)
	}
	if len(handler.received) != 1 || handler.received[0] != "hello" {
		t.Errorf("Handler получил %v", handler.received)
	}
	if len(writer.written) != 1 || writer.written[0] != "bye" {
		t.Errorf("Writer получил %v", writer.written)
	}
}

func TestChain_SessionLifecycleReachesHandler(t *testing.T) {
	handler := &recordingHandler{}
	c := New()
	c.AddLast("a", Adapter{})
	c.SetHandler(handler)

	session := &stubSession{chain: c}
	c.FireSessionCreated(session)
	c.FireSessionClosed(session)

	if handler.opened != 1 || handler.closed != 1 {
		t.Errorf("Ожидалось opened=1 closed=1, получено opened=%d closed=%d", handler.opened, handler.closed)
	}
}

func TestChain_WriterErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := New()
	c.AddLast("a", Adapter{})
	c.SetWriter(&recordingWriter{err: boom})

	err := c.FireFilterWrite(&stubSession{chain: c}, &WriteRequest{Message: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("Ошибка транспорта должна пройти без изменений, получено %v", err)
	}
}

func TestChain_NoWriter(t *testing.T) {
	c := New()
	err := c.FireFilterWrite(&stubSession{chain: c}, &WriteRequest{Message: "x"})
	if !errors.Is(err, ErrNoWriter) {
		t.Errorf("Ожидалась ErrNoWriter, получено %v", err)
	}
}

func TestChain_ConcurrentMutationAndDispatch(t *testing.T) {
	c := New()
	session := &stubSession{chain: c}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.AddLast("dyn", Adapter{})
			c.Remove("dyn")
		}()
		go func() {
			defer wg.Done()
			c.FireSessionCreated(session)
		}()
	}
	wg.Wait()

	if c.Contains("dyn") {
		t.Errorf("Стадия dyn должна быть удалена, цепочка: %v", c.Names())
	}
}
