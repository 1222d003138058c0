package chain

import "net"

// Session одно логическое соединение с собственной копией цепочки
type Session interface {
	// ID возвращает стабильный идентификатор сессии
	ID() uint64
	// RemoteAddr возвращает адрес клиента; nil если адрес еще не известен
	RemoteAddr() net.Addr
	// FilterChain возвращает цепочку этой сессии
	FilterChain() *Chain
	// Write отправляет сообщение через цепочку в сторону транспорта
	Write(message any) error
	// Close закрывает сессию
	Close() error
	// Attribute возвращает атрибут сессии
	Attribute(key string) (any, bool)
	// SetAttribute устанавливает атрибут сессии
	SetAttribute(key string, value any)
	// RemoveAttribute удаляет атрибут сессии
	RemoveAttribute(key string)
}

// WriteRequest запрос записи, проходящий по цепочке от хвоста к голове
type WriteRequest struct {
	Message any
}

// NextFilter передает событие следующей стадии цепочки
type NextFilter interface {
	SessionCreated(session Session) error
	SessionClosed(session Session) error
	MessageReceived(session Session, message any) error
	FilterWrite(session Session, request *WriteRequest) error
	MessageSent(session Session, request *WriteRequest) error
}

// Filter стадия цепочки.
// Входящие события идут от головы к хвосту, FilterWrite - от хвоста к голове.
type Filter interface {
	SessionCreated(next NextFilter, session Session) error
	SessionClosed(next NextFilter, session Session) error
	MessageReceived(next NextFilter, session Session, message any) error
	FilterWrite(next NextFilter, session Session, request *WriteRequest) error
	MessageSent(next NextFilter, session Session, request *WriteRequest) error
}

// Handler бизнес-логика в хвосте цепочки
type Handler interface {
	SessionOpened(session Session) error
	MessageReceived(session Session, message any) error
	SessionClosed(session Session) error
}

// Writer транспорт в голове цепочки записи
type Writer interface {
	Write(session Session, request *WriteRequest) error
}

// Adapter стадия, пропускающая все события без изменений.
// Встраивается в фильтры, которым нужны только часть хуков.
type Adapter struct{}

func (Adapter) SessionCreated(next NextFilter, session Session) error {
	return next.SessionCreated(session)
}

func (Adapter) SessionClosed(next NextFilter, session Session) error {
	return next.SessionClosed(session)
}

func (Adapter) MessageReceived(next NextFilter, session Session, message any) error {
	return next.MessageReceived(session, message)
}

func (Adapter) FilterWrite(next NextFilter, session Session, request *WriteRequest) error {
	return next.FilterWrite(session, request)
}

func (Adapter) MessageSent(next NextFilter, session Session, request *WriteRequest) error {
	return next.MessageSent(session, request)
}

// Acceptor владелец шаблонной цепочки, которую копирует каждая новая сессия.
// FilterChain возвращает nil, если acceptor еще не создан.
type Acceptor interface {
	FilterChain() *Chain
}
