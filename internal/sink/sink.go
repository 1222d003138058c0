// Package sink содержит приемники строк трассы.
// Все реализации безопасны для конкурентного использования и не блокируют вызывающего
// дольше одной записи.
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink приемник строк трассы
type Sink interface {
	Log(line string)
}

// Func адаптер функции к Sink
type Func func(line string)

// Log вызывает f
func (f Func) Log(line string) { f(line) }

// Writer пишет каждую строку в io.Writer с переводом строки
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter создает Writer поверх w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewConsole создает приемник, пишущий в stdout
func NewConsole() *Writer {
	return NewWriter(os.Stdout)
}

// Log пишет строку; ошибки записи игнорируются, трасса не должна ломать соединение
func (s *Writer) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line+"\n")
}

// File добавляет строки в файл
type File struct {
	Writer
	f *os.File
}

// OpenFile открывает path на дозапись, создавая файл при необходимости
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &File{Writer: Writer{w: f}, f: f}, nil
}

// Close закрывает файл
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Multi дублирует строку во все приемники
type Multi []Sink

// Log передает строку каждому приемнику
func (m Multi) Log(line string) {
	for _, s := range m {
		s.Log(line)
	}
}

// Discard отбрасывает строки
var Discard Sink = Func(func(string) {})
