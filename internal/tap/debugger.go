package tap

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"example.com/me/rawtap/internal/plugin"
	"example.com/me/rawtap/internal/settings"
	"example.com/me/rawtap/internal/sink"
	"example.com/me/rawtap/internal/traffic"
)

// Debugger плагин, владеющий одним tap на канал
type Debugger struct {
	sink       sink.Sink
	whitespace *settings.BoolProperty
	logSpace   atomic.Bool
	counter    *traffic.Counter

	mu        sync.Mutex
	taps      []*Tap
	byPrefix  map[string]*Tap
	acceptors map[*Tap][]chain.Acceptor
}

// NewDebugger создает tap для каждого канала. Настройка включения канала
// хранится под ключом plugin.debugger.<канал в нижнем регистре>, по умолчанию true.
func NewDebugger(store *settings.Store, out sink.Sink, channels []string) *Debugger {
	d := &Debugger{
		sink:       out,
		whitespace: store.Bool(constants.PropertyLogWhitespace, false),
		counter:    traffic.NewCounter(),
		byPrefix:   make(map[string]*Tap),
		acceptors:  make(map[*Tap][]chain.Acceptor),
	}
	d.whitespace.AddListener(d.onWhitespaceChanged)
	d.logSpace.Store(d.whitespace.Value())

	for _, channel := range channels {
		if _, exists := d.byPrefix[channel]; exists {
			continue
		}
		t := New(Config{
			Prefix:            channel,
			Enabled:           store.Bool(PropertyKey(channel), true),
			Sink:              out,
			LoggingWhitespace: d.LoggingWhitespace,
			Counter:           d.counter,
		})
		d.taps = append(d.taps, t)
		d.byPrefix[channel] = t
	}
	return d
}

// PropertyKey возвращает ключ настройки включения канала
func PropertyKey(prefix string) string {
	return constants.PropertyPrefix + strings.ToLower(prefix)
}

// Name возвращает имя плагина
func (d *Debugger) Name() string {
	return constants.PluginName
}

// Init устанавливает каждый tap во все acceptor его канала
func (d *Debugger) Init(host plugin.Host) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.taps {
		for _, acceptor := range host.Acceptors(t.prefix) {
			t.AddFilterToChain(acceptor)
			d.acceptors[t] = append(d.acceptors[t], acceptor)
		}
	}
	logger.Debug(constants.ComponentPlugin, "Debugger initialized with %d taps", len(d.taps))
	return nil
}

// Close снимает tap со всех acceptor и сессий
func (d *Debugger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.taps {
		for _, acceptor := range d.acceptors[t] {
			t.RemoveFilterFromChain(acceptor)
		}
		delete(d.acceptors, t)
		t.Shutdown()
	}
	logger.Debug(constants.ComponentPlugin, "Debugger closed")
	return nil
}

// Tap возвращает tap канала
func (d *Debugger) Tap(prefix string) (*Tap, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.byPrefix[prefix]
	return t, ok
}

// Taps возвращает все tap в порядке каналов
func (d *Debugger) Taps() []*Tap {
	d.mu.Lock()
	defer d.mu.Unlock()
	taps := make([]*Tap, len(d.taps))
	copy(taps, d.taps)
	return taps
}

// Log пишет строку в приемник трассы
func (d *Debugger) Log(line string) {
	d.sink.Log(line)
}

// LoggingWhitespace сообщает, логируются ли пустые сообщения
func (d *Debugger) LoggingWhitespace() bool {
	return d.logSpace.Load()
}

// SetLoggingWhitespace сохраняет настройку логирования пустых сообщений
func (d *Debugger) SetLoggingWhitespace(enabled bool) error {
	if err := d.whitespace.Set(enabled); err != nil {
		return fmt.Errorf("failed to set whitespace logging: %w", err)
	}
	return nil
}

func (d *Debugger) onWhitespaceChanged(enabled bool) {
	d.logSpace.Store(enabled)
	logger.Info(constants.ComponentTap, "Whitespace logging set to %t", enabled)
}
