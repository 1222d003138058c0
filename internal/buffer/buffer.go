package buffer

import "fmt"

// Buffer байтовый буфер с курсором чтения/записи.
// Инвариант: 0 <= position <= limit <= len(data).
// Buffer не потокобезопасен: им владеет одна стадия цепочки в каждый момент.
type Buffer struct {
	data     []byte
	position int
	limit    int
}

// Wrap создает буфер поверх data; непрочитанное окно - весь слайс
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data, limit: len(data)}
}

// Allocate создает пустой буфер для записи с начальной емкостью n
func Allocate(n int) *Buffer {
	return &Buffer{data: make([]byte, n), limit: n}
}

// Position возвращает текущую позицию курсора
func (b *Buffer) Position() int {
	return b.position
}

// SetPosition устанавливает позицию курсора
func (b *Buffer) SetPosition(p int) error {
	if p < 0 || p > b.limit {
		return fmt.Errorf("position %d out of range [0, %d]", p, b.limit)
	}
	b.position = p
	return nil
}

// Limit возвращает границу непрочитанных данных
func (b *Buffer) Limit() int {
	return b.limit
}

// Remaining возвращает количество непрочитанных байт
func (b *Buffer) Remaining() int {
	return b.limit - b.position
}

// HasRemaining сообщает, остались ли непрочитанные байты
func (b *Buffer) HasRemaining() bool {
	return b.position < b.limit
}

// Get читает до len(p) байт и сдвигает позицию
func (b *Buffer) Get(p []byte) int {
	n := copy(p, b.data[b.position:b.limit])
	b.position += n
	return n
}

// Skip сдвигает позицию на n байт (не дальше limit)
func (b *Buffer) Skip(n int) {
	if n > b.Remaining() {
		n = b.Remaining()
	}
	b.position += n
}

// Put записывает p в позицию курсора, расширяя буфер при необходимости
func (b *Buffer) Put(p []byte) {
	end := b.position + len(p)
	if end > len(b.data) {
		grown := make([]byte, end, max(end, 2*len(b.data)))
		copy(grown, b.data)
		b.data = grown[:cap(grown)]
	}
	copy(b.data[b.position:], p)
	b.position = end
	if b.limit < end {
		b.limit = end
	}
}

// Flip переключает буфер из режима записи в режим чтения
func (b *Buffer) Flip() {
	b.limit = b.position
	b.position = 0
}

// Duplicate возвращает буфер, разделяющий содержимое, но с независимым курсором
func (b *Buffer) Duplicate() *Buffer {
	return &Buffer{data: b.data, position: b.position, limit: b.limit}
}

// Bytes возвращает непрочитанное окно без копирования.
// Емкость слайса ограничена окном, поэтому append не затронет исходные данные.
// Вызывающий не должен изменять содержимое.
func (b *Buffer) Bytes() []byte {
	return b.data[b.position:b.limit:b.limit]
}

// String для отладки
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer[pos=%d lim=%d cap=%d]", b.position, b.limit, len(b.data))
}
