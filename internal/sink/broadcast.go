package sink

import (
	"sync"
	"sync/atomic"
	"time"
)

// Broadcast рассылает строки подписчикам.
// Медленный подписчик теряет строки, отправитель никогда не ждет.
type Broadcast struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	seq         atomic.Uint64
	ring        *Ring
}

// Subscription подписка на трассу
type Subscription struct {
	C       <-chan Entry
	ch      chan Entry
	dropped atomic.Uint64
	owner   *Broadcast
	once    sync.Once
}

// NewBroadcast создает рассылку; если ring не nil, строки нумеруются им
// и сохраняются для повтора истории
func NewBroadcast(ring *Ring) *Broadcast {
	return &Broadcast{
		subscribers: make(map[*Subscription]struct{}),
		ring:        ring,
	}
}

// Ring возвращает буфер истории (может быть nil)
func (b *Broadcast) Ring() *Ring {
	return b.ring
}

// Log нумерует строку и рассылает ее подписчикам
func (b *Broadcast) Log(line string) {
	var entry Entry
	if b.ring != nil {
		entry = b.ring.Append(line)
	} else {
		entry = Entry{Seq: b.seq.Add(1), Line: line, At: time.Now()}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub.ch <- entry:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Subscribe создает подписку с буфером на size строк
func (b *Broadcast) Subscribe(size int) *Subscription {
	ch := make(chan Entry, size)
	sub := &Subscription{C: ch, ch: ch, owner: b}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Subscribers возвращает количество подписчиков
func (b *Broadcast) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped возвращает количество потерянных строк
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close отписывается и закрывает канал; повторный вызов безопасен
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subscribers, s)
		s.owner.mu.Unlock()
		close(s.ch)
	})
}
