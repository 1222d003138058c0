package chain

import "errors"

// ErrNoWriter у цепочки нет транспорта для записи
var ErrNoWriter = errors.New("chain has no writer")

// dispatch неизменяемый снимок цепочки на время одного события
type dispatch struct {
	entries []entry
	handler Handler
	writer  Writer
}

// next указывает на стадию с индексом index внутри снимка
type next struct {
	d     *dispatch
	index int
}

func (n next) SessionCreated(session Session) error {
	if n.index >= len(n.d.entries) {
		if n.d.handler == nil {
			return nil
		}
		return n.d.handler.SessionOpened(session)
	}
	return n.d.entries[n.index].filter.SessionCreated(next{n.d, n.index + 1}, session)
}

func (n next) SessionClosed(session Session) error {
	if n.index >= len(n.d.entries) {
		if n.d.handler == nil {
			return nil
		}
		return n.d.handler.SessionClosed(session)
	}
	return n.d.entries[n.index].filter.SessionClosed(next{n.d, n.index + 1}, session)
}

func (n next) MessageReceived(session Session, message any) error {
	if n.index >= len(n.d.entries) {
		if n.d.handler == nil {
			return nil
		}
		return n.d.handler.MessageReceived(session, message)
	}
	return n.d.entries[n.index].filter.MessageReceived(next{n.d, n.index + 1}, session, message)
}

// FilterWrite идет в обратную сторону: от хвоста к голове и затем в writer
func (n next) FilterWrite(session Session, request *WriteRequest) error {
	if n.index < 0 {
		if n.d.writer == nil {
			return ErrNoWriter
		}
		return n.d.writer.Write(session, request)
	}
	return n.d.entries[n.index].filter.FilterWrite(next{n.d, n.index - 1}, session, request)
}

func (n next) MessageSent(session Session, request *WriteRequest) error {
	if n.index >= len(n.d.entries) {
		return nil
	}
	return n.d.entries[n.index].filter.MessageSent(next{n.d, n.index + 1}, session, request)
}

// FireSessionCreated передает открытие сессии от головы цепочки
func (c *Chain) FireSessionCreated(session Session) error {
	return next{c.snapshot(), 0}.SessionCreated(session)
}

// FireSessionClosed передает закрытие сессии от головы цепочки
func (c *Chain) FireSessionClosed(session Session) error {
	return next{c.snapshot(), 0}.SessionClosed(session)
}

// FireMessageReceived передает входящее сообщение от головы цепочки
func (c *Chain) FireMessageReceived(session Session, message any) error {
	return next{c.snapshot(), 0}.MessageReceived(session, message)
}

// FireFilterWrite передает запрос записи от хвоста цепочки
func (c *Chain) FireFilterWrite(session Session, request *WriteRequest) error {
	d := c.snapshot()
	return next{d, len(d.entries) - 1}.FilterWrite(session, request)
}

// FireMessageSent уведомляет стадии о завершенной записи
func (c *Chain) FireMessageSent(session Session, request *WriteRequest) error {
	return next{c.snapshot(), 0}.MessageSent(session, request)
}
