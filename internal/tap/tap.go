package tap

import (
	"fmt"
	"sync/atomic"

	"example.com/me/rawtap/internal/buffer"
	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"example.com/me/rawtap/internal/sink"
	"example.com/me/rawtap/internal/traffic"
)

// FilterName имя стадии tap в цепочке
const FilterName = "rawDebugger"

// Типы строк трассы
const (
	TypeReceived = "RECV"
	TypeSent     = "SENT"
	TypeOpened   = "OPEN"
	TypeClosed   = "CLSD"
)

// Setting динамическая булева настройка с уведомлением об изменениях
type Setting interface {
	Value() bool
	Set(value bool) error
	AddListener(fn func(bool))
}

// Config параметры Tap
type Config struct {
	// Prefix метка канала в строках трассы (например C2S)
	Prefix string
	// Enabled настройка включения; начальное состояние берется из нее
	Enabled Setting
	// Sink приемник строк трассы
	Sink sink.Sink
	// LoggingWhitespace логировать ли пустые сообщения; nil - не логировать
	LoggingWhitespace func() bool
	// Counter статистика трафика по префиксу; может быть nil
	Counter *traffic.Counter
}

// Tap стадия цепочки, которая пишет трассу трафика и пропускает
// все события дальше без изменений
type Tap struct {
	prefix     string
	setting    Setting
	sink       sink.Sink
	whitespace func() bool
	counter    *traffic.Counter

	enabled  atomic.Bool
	sessions *Registry
}

// New создает Tap и подписывает его на изменения настройки
func New(cfg Config) *Tap {
	t := &Tap{
		prefix:     cfg.Prefix,
		setting:    cfg.Enabled,
		sink:       cfg.Sink,
		whitespace: cfg.LoggingWhitespace,
		counter:    cfg.Counter,
		sessions:   NewRegistry(),
	}
	if t.sink == nil {
		t.sink = sink.Discard
	}
	if t.whitespace == nil {
		t.whitespace = func() bool { return false }
	}
	t.setting.AddListener(t.onEnabledChanged)
	t.onEnabledChanged(t.setting.Value())
	return t
}

// Prefix возвращает метку канала
func (t *Tap) Prefix() string {
	return t.prefix
}

// IsEnabled сообщает, пишет ли tap трассу
func (t *Tap) IsEnabled() bool {
	return t.enabled.Load()
}

// SetEnabled сохраняет значение в настройке. Поведение tap меняется,
// когда настройка доставит уведомление.
func (t *Tap) SetEnabled(enabled bool) error {
	if err := t.setting.Set(enabled); err != nil {
		return fmt.Errorf("failed to set %s logger: %w", t.prefix, err)
	}
	return nil
}

// Sessions возвращает количество отслеживаемых сессий
func (t *Tap) Sessions() int {
	return t.sessions.Len()
}

// Tracked сообщает, отслеживается ли сессия
func (t *Tap) Tracked(session chain.Session) bool {
	return t.sessions.Contains(session)
}

// Stats возвращает статистику трафика, прошедшего через tap во включенном состоянии
func (t *Tap) Stats() traffic.Stats {
	if t.counter == nil {
		return traffic.Stats{}
	}
	return t.counter.Get(t.prefix)
}

// Shutdown удаляет tap из цепочек всех отслеживаемых сессий и очищает registry.
// Повторный вызов безопасен.
func (t *Tap) Shutdown() {
	for _, session := range t.sessions.Drain() {
		if c := session.FilterChain(); c != nil {
			c.Remove(FilterName)
		}
	}
}

func (t *Tap) onEnabledChanged(enabled bool) {
	t.enabled.Store(enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	logger.Info(constants.ComponentTap, "%s logger %s", t.prefix, state)
}

// SessionCreated начинает отслеживать сессию
func (t *Tap) SessionCreated(next chain.NextFilter, session chain.Session) error {
	t.sessions.Add(session)
	if t.enabled.Load() {
		if t.counter != nil {
			t.counter.AddSession(t.prefix)
		}
		t.sink.Log(t.messagePrefix(session, TypeOpened))
	}
	return next.SessionCreated(session)
}

// SessionClosed прекращает отслеживать сессию
func (t *Tap) SessionClosed(next chain.NextFilter, session chain.Session) error {
	t.sessions.Remove(session)
	if t.enabled.Load() {
		t.sink.Log(t.messagePrefix(session, TypeClosed))
	}
	return next.SessionClosed(session)
}

// MessageReceived логирует входящее сообщение и передает его дальше
func (t *Tap) MessageReceived(next chain.NextFilter, session chain.Session, message any) error {
	if t.enabled.Load() {
		if text, ok := inboundText(message); ok {
			if t.counter != nil {
				t.counter.AddReceived(t.prefix, int64(len(text)))
			}
			if t.whitespace() || len(text) > 0 {
				t.sink.Log(t.messagePrefix(session, TypeReceived) + ": " + text)
			}
		}
	}
	return next.MessageReceived(session, message)
}

// FilterWrite логирует исходящий буфер и передает исходный запрос дальше
func (t *Tap) FilterWrite(next chain.NextFilter, session chain.Session, request *chain.WriteRequest) error {
	if t.enabled.Load() {
		if buf, ok := request.Message.(*buffer.Buffer); ok {
			t.logSentBuffer(session, buf)
		}
	}
	return next.FilterWrite(session, request)
}

// MessageSent пропускается без изменений
func (t *Tap) MessageSent(next chain.NextFilter, session chain.Session, request *chain.WriteRequest) error {
	return next.MessageSent(session, request)
}

func (t *Tap) logSentBuffer(session chain.Session, buf *buffer.Buffer) {
	text := Render(buf)
	if t.counter != nil {
		t.counter.AddSent(t.prefix, int64(buf.Remaining()))
	}
	if t.whitespace() || len(text) > 0 {
		t.sink.Log(t.messagePrefix(session, TypeSent) + ": " + text)
	}
}

func (t *Tap) messagePrefix(session chain.Session, messageType string) string {
	addr := ""
	if a := session.RemoteAddr(); a != nil {
		addr = a.String()
	}
	return fmt.Sprintf("%s %-16s - %s - (%11d)", t.prefix, addr, messageType, session.ID())
}
