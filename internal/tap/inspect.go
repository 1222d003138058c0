package tap

import (
	"strings"
	"unicode/utf8"

	"example.com/me/rawtap/internal/buffer"
)

// Render декодирует непрочитанные байты буфера как UTF-8 для отображения.
// Работает с дубликатом, поэтому позиция исходного буфера не меняется.
// Невалидные последовательности заменяются на U+FFFD.
func Render(buf *buffer.Buffer) string {
	if buf == nil {
		return ""
	}
	view := buf.Duplicate().Bytes()
	if utf8.Valid(view) {
		return string(view)
	}
	return strings.ToValidUTF8(string(view), string(utf8.RuneError))
}

// inboundText возвращает текстовое представление входящего сообщения.
// Структурированные объекты не логируются.
func inboundText(message any) (string, bool) {
	switch m := message.(type) {
	case string:
		return m, true
	case *buffer.Buffer:
		return Render(m), true
	default:
		return "", false
	}
}
