package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"

	"example.com/me/rawtap/internal/buffer"
	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
)

type stubSession struct {
	chain *chain.Chain
	attrs sync.Map
}

func (s *stubSession) ID() uint64                { return 1 }
func (s *stubSession) RemoteAddr() net.Addr      { return nil }
func (s *stubSession) FilterChain() *chain.Chain { return s.chain }
func (s *stubSession) Write(message any) error {
	return s.chain.FireFilterWrite(s, &chain.WriteRequest{Message: message})
}
func (s *stubSession) Close() error                       { return nil }
func (s *stubSession) Attribute(key string) (any, bool)   { return s.attrs.Load(key) }
func (s *stubSession) SetAttribute(key string, value any) { s.attrs.Store(key, value) }
func (s *stubSession) RemoveAttribute(key string)         { s.attrs.Delete(key) }

type bufferHandler struct {
	received [][]byte
}

func (h *bufferHandler) SessionOpened(session chain.Session) error { return nil }
func (h *bufferHandler) SessionClosed(session chain.Session) error { return nil }
func (h *bufferHandler) MessageReceived(session chain.Session, message any) error {
	h.received = append(h.received, message.(*buffer.Buffer).Bytes())
	return nil
}

type captureWriter struct {
	written [][]byte
}

func (w *captureWriter) Write(session chain.Session, request *chain.WriteRequest) error {
	w.written = append(w.written, request.Message.(*buffer.Buffer).Bytes())
	return nil
}

func newCompressedSession(t *testing.T, algorithm Algorithm) (*stubSession, *Filter, *bufferHandler, *captureWriter) {
	t.Helper()
	f, err := NewFilter(algorithm)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	handler := &bufferHandler{}
	writer := &captureWriter{}
	c := chain.New()
	c.AddLast(constants.CompressionFilterName, f)
	c.SetHandler(handler)
	c.SetWriter(writer)
	return &stubSession{chain: c}, f, handler, writer
}

func TestFilter_RoundTrip(t *testing.T) {
	for _, algorithm := range []Algorithm{Zstd, LZ4} {
		t.Run(algorithm.String(), func(t *testing.T) {
			testRoundTrip(t, algorithm)
		})
	}
}

func testRoundTrip(t *testing.T, algorithm Algorithm) {
	s, _, handler, writer := newCompressedSession(t, algorithm)
	payload := bytes.Repeat([]byte("<message>hello</message>"), 20)

	original := buffer.Wrap(payload)
	if err := s.Write(original); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if original.Position() != 0 {
		t.Error("Исходный буфер не должен меняться")
	}
	frame := writer.written[0]
	if int(binary.BigEndian.Uint32(frame)) != len(frame)-constants.FrameLengthSize {
		t.Fatalf("Неверный префикс длины фрейма")
	}

	// фрейм приходит двумя частями
	half := len(frame) / 2
	s.chain.FireMessageReceived(s, buffer.Wrap(frame[:half]))
	if len(handler.received) != 0 {
		t.Fatal("Неполный фрейм не должен передаваться дальше")
	}
	s.chain.FireMessageReceived(s, buffer.Wrap(frame[half:]))

	if len(handler.received) != 1 || !bytes.Equal(handler.received[0], payload) {
		t.Errorf("Распакованные данные не совпадают с исходными")
	}
}

func TestFilter_SeveralFramesInOneChunk(t *testing.T) {
	s, f, handler, _ := newCompressedSession(t, Zstd)

	data := append(f.Encode([]byte("one")), f.Encode([]byte("two"))...)
	s.chain.FireMessageReceived(s, buffer.Wrap(data))

	if len(handler.received) != 2 || string(handler.received[0]) != "one" || string(handler.received[1]) != "two" {
		t.Errorf("Ожидалось [one two], получено %q", handler.received)
	}
}

func TestFilter_FrameTooLarge(t *testing.T) {
	s, _, _, _ := newCompressedSession(t, Zstd)
	header := make([]byte, constants.FrameLengthSize)
	binary.BigEndian.PutUint32(header, constants.MaxFrameSize+1)

	err := s.chain.FireMessageReceived(s, buffer.Wrap(header))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Ожидалась ErrFrameTooLarge, получено %v", err)
	}
}

func TestFilter_CorruptFrame(t *testing.T) {
	s, _, _, _ := newCompressedSession(t, Zstd)
	frame := []byte{0, 0, 0, 3, 'b', 'a', 'd'}

	if err := s.chain.FireMessageReceived(s, buffer.Wrap(frame)); err == nil {
		t.Error("Ожидалась ошибка распаковки")
	}
}

func TestLZ4_IncompressiblePayload(t *testing.T) {
	s, f, handler, _ := newCompressedSession(t, LZ4)

	payload := []byte("x")
	frame := f.Encode(payload)
	if frame[constants.FrameLengthSize] != lz4Raw {
		t.Fatalf("Короткие данные должны передаваться без сжатия")
	}
	s.chain.FireMessageReceived(s, buffer.Wrap(frame))

	if len(handler.received) != 1 || string(handler.received[0]) != "x" {
		t.Errorf("Ожидалось [x], получено %q", handler.received)
	}
}

func TestLZ4_UnknownMode(t *testing.T) {
	s, _, _, _ := newCompressedSession(t, LZ4)
	frame := []byte{0, 0, 0, 2, 7, 'x'}

	if err := s.chain.FireMessageReceived(s, buffer.Wrap(frame)); err == nil {
		t.Error("Ожидалась ошибка для неизвестного режима")
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		want    Algorithm
		wantErr bool
	}{
		{"", Zstd, false},
		{"zstd", Zstd, false},
		{"lz4", LZ4, false},
		{"gzip", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %s, ожидалось %s", tt.name, got, tt.want)
		}
	}
}
