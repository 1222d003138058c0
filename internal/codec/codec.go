package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"example.com/me/rawtap/internal/buffer"
	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
)

// ErrLineTooLong строка без перевода строки превысила лимит
var ErrLineTooLong = errors.New("line too long")

const attrPending = "codec.pending"

// Filter текстовый кодек: входящие буферы режутся на строки по '\n',
// исходящие строки кодируются в буфер с завершающим '\n'
type Filter struct {
	chain.Adapter
	maxLine int
}

// NewFilter создает кодек с лимитом строки по умолчанию
func NewFilter() *Filter {
	return &Filter{maxLine: constants.MaxLineLength}
}

// MessageReceived передает дальше каждую полную строку; неполный хвост
// хранится в атрибуте сессии до следующего блока
func (f *Filter) MessageReceived(next chain.NextFilter, session chain.Session, message any) error {
	buf, ok := message.(*buffer.Buffer)
	if !ok {
		return next.MessageReceived(session, message)
	}

	var data []byte
	if pending, ok := session.Attribute(attrPending); ok {
		data = pending.([]byte)
	}
	data = append(data, buf.Bytes()...)
	buf.Skip(buf.Remaining())

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(data[:i]), "\r")
		data = data[i+1:]
		if err := next.MessageReceived(session, line); err != nil {
			return err
		}
	}

	if len(data) > f.maxLine {
		session.RemoveAttribute(attrPending)
		return fmt.Errorf("%d bytes without newline: %w", len(data), ErrLineTooLong)
	}
	if len(data) == 0 {
		session.RemoveAttribute(attrPending)
	} else {
		session.SetAttribute(attrPending, bytes.Clone(data))
	}
	return nil
}

// FilterWrite кодирует строки; остальные сообщения проходят без изменений
func (f *Filter) FilterWrite(next chain.NextFilter, session chain.Session, request *chain.WriteRequest) error {
	line, ok := request.Message.(string)
	if !ok {
		return next.FilterWrite(session, request)
	}
	return next.FilterWrite(session, &chain.WriteRequest{Message: Encode(line)})
}

// Encode кодирует строку в буфер с завершающим '\n'
func Encode(line string) *buffer.Buffer {
	encoded := buffer.Allocate(len(line) + 1)
	encoded.Put([]byte(line))
	encoded.Put([]byte{'\n'})
	encoded.Flip()
	return encoded
}

// SessionClosed сбрасывает неполную строку
func (f *Filter) SessionClosed(next chain.NextFilter, session chain.Session) error {
	session.RemoveAttribute(attrPending)
	return next.SessionClosed(session)
}
