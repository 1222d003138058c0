package traffic

import (
	"sync"
	"time"
)

// Stats статистика трафика, увиденного одним tap
type Stats struct {
	Sessions         int64     `json:"sessions"`          // Количество открытых сессий
	MessagesReceived int64     `json:"messages_received"` // Входящих сообщений
	MessagesSent     int64     `json:"messages_sent"`     // Исходящих записей
	BytesReceived    int64     `json:"bytes_received"`    // Всего получено байт
	BytesSent        int64     `json:"bytes_sent"`        // Всего отправлено байт
	LastActivity     time.Time `json:"last_activity"`     // Время последней активности
}

// Counter счетчик трафика с thread-safe хранилищем
type Counter struct {
	mu    sync.RWMutex
	stats map[string]*Stats // ID -> Stats
}

// NewCounter создает новый счетчик
func NewCounter() *Counter {
	return &Counter{
		stats: make(map[string]*Stats),
	}
}

// Get возвращает копию статистики для указанного ID
func (c *Counter) Get(id string) Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats, exists := c.stats[id]
	if !exists {
		return Stats{}
	}
	return *stats
}

// AddSession увеличивает счетчик сессий
func (c *Counter) AddSession(id string) {
	c.update(id, func(s *Stats) {
		s.Sessions++
	})
}

// AddReceived учитывает входящее сообщение
func (c *Counter) AddReceived(id string, bytes int64) {
	c.update(id, func(s *Stats) {
		s.MessagesReceived++
		s.BytesReceived += bytes
	})
}

// AddSent учитывает исходящую запись
func (c *Counter) AddSent(id string, bytes int64) {
	c.update(id, func(s *Stats) {
		s.MessagesSent++
		s.BytesSent += bytes
	})
}

// All возвращает копии всех статистик
func (c *Counter) All() map[string]Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Stats, len(c.stats))
	for id, stats := range c.stats {
		result[id] = *stats
	}
	return result
}

func (c *Counter) update(id string, fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stats[id] == nil {
		c.stats[id] = &Stats{}
	}
	fn(c.stats[id])
	c.stats[id].LastActivity = time.Now()
}
