package sink

import (
	"sync"
	"time"
)

// Entry строка трассы с порядковым номером и временем записи
type Entry struct {
	Seq  uint64
	Line string
	At   time.Time
}

// Ring кольцевой буфер строк фиксированного размера.
// Номера строк растут монотонно, поэтому наблюдатель может запросить
// "все после N" при переподключении. Новые строки вытесняют самые старые.
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	// next номер, который получит следующая строка (начиная с 1)
	next uint64
}

// NewRing создает буфер на capacity строк
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		next:     1,
	}
}

// Log добавляет строку
func (r *Ring) Log(line string) {
	r.Append(line)
}

// Append добавляет строку и возвращает сохраненную запись
func (r *Ring) Append(line string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := Entry{Seq: r.next, Line: line, At: time.Now()}
	r.entries[entry.Seq%uint64(r.capacity)] = entry
	r.next++
	return entry
}

// Since возвращает строки с номером больше seq.
// Если часть строк уже вытеснена, возвращает все, что осталось.
func (r *Ring) Since(seq uint64) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := r.next - 1
	if seq >= last {
		return nil
	}
	oldest := uint64(1)
	if last > uint64(r.capacity) {
		oldest = last - uint64(r.capacity) + 1
	}
	from := seq + 1
	if from < oldest {
		from = oldest
	}

	entries := make([]Entry, 0, last-from+1)
	for s := from; s <= last; s++ {
		entries = append(entries, r.entries[s%uint64(r.capacity)])
	}
	return entries
}

// LastSeq возвращает номер последней строки (0 если строк не было)
func (r *Ring) LastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next - 1
}
