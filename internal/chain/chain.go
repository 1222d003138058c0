package chain

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateName стадия с таким именем уже есть в цепочке
	ErrDuplicateName = errors.New("filter name already in chain")
	// ErrNoSuchFilter базовая стадия не найдена
	ErrNoSuchFilter = errors.New("no such filter in chain")
)

type entry struct {
	name   string
	filter Filter
}

// Chain упорядоченный список именованных стадий.
// Все методы безопасны для конкурентного использования.
type Chain struct {
	mu      sync.RWMutex
	entries []entry
	handler Handler
	writer  Writer
}

// New создает пустую цепочку
func New() *Chain {
	return &Chain{}
}

// SetHandler устанавливает обработчик в хвосте цепочки
func (c *Chain) SetHandler(handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// SetWriter устанавливает транспорт в голове цепочки
func (c *Chain) SetWriter(writer Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = writer
}

// Contains сообщает, есть ли в цепочке стадия с именем name
func (c *Chain) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOf(name) >= 0
}

// Get возвращает стадию по имени
func (c *Chain) Get(name string) (Filter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(name); i >= 0 {
		return c.entries[i].filter, true
	}
	return nil, false
}

// Names возвращает имена стадий от головы к хвосту
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Len возвращает количество стадий
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// AddFirst добавляет стадию в голову цепочки
func (c *Chain) AddFirst(name string, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(0, name, filter)
}

// AddLast добавляет стадию в хвост цепочки
func (c *Chain) AddLast(name string, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(len(c.entries), name, filter)
}

// AddBefore добавляет стадию непосредственно перед baseName
func (c *Chain) AddBefore(baseName, name string, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(baseName)
	if i < 0 {
		return fmt.Errorf("add %q before %q: %w", name, baseName, ErrNoSuchFilter)
	}
	return c.insert(i, name, filter)
}

// AddAfter добавляет стадию непосредственно после baseName
func (c *Chain) AddAfter(baseName, name string, filter Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(baseName)
	if i < 0 {
		return fmt.Errorf("add %q after %q: %w", name, baseName, ErrNoSuchFilter)
	}
	return c.insert(i+1, name, filter)
}

// Remove удаляет стадию по имени. Отсутствие стадии не является ошибкой.
func (c *Chain) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(name)
	if i < 0 {
		return false
	}
	// Новый слайс: снимки, взятые событиями в полете, остаются нетронутыми
	entries := make([]entry, 0, len(c.entries)-1)
	entries = append(entries, c.entries[:i]...)
	entries = append(entries, c.entries[i+1:]...)
	c.entries = entries
	return true
}

// Clone копирует стадии, handler и writer в новую цепочку.
// Стадии разделяются между копиями, сам список - нет.
func (c *Chain) Clone() *Chain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]entry, len(c.entries))
	copy(entries, c.entries)
	return &Chain{entries: entries, handler: c.handler, writer: c.writer}
}

func (c *Chain) indexOf(name string) int {
	for i, e := range c.entries {
		if e.name == name {
			return i
		}
	}
	return -1
}

func (c *Chain) insert(at int, name string, filter Filter) error {
	if c.indexOf(name) >= 0 {
		return fmt.Errorf("add %q: %w", name, ErrDuplicateName)
	}
	entries := make([]entry, 0, len(c.entries)+1)
	entries = append(entries, c.entries[:at]...)
	entries = append(entries, entry{name: name, filter: filter})
	entries = append(entries, c.entries[at:]...)
	c.entries = entries
	return nil
}

func (c *Chain) snapshot() *dispatch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &dispatch{entries: c.entries, handler: c.handler, writer: c.writer}
}
