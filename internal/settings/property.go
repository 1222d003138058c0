package settings

import (
	"strconv"
	"sync"

	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

// BoolProperty динамическая булева настройка с уведомлением об изменении
type BoolProperty struct {
	store        *Store
	key          string
	defaultValue bool

	mu        sync.Mutex
	listeners []func(bool)
}

// Key возвращает ключ настройки
func (p *BoolProperty) Key() string {
	return p.key
}

// Default возвращает значение по умолчанию
func (p *BoolProperty) Default() bool {
	return p.defaultValue
}

// Value возвращает текущее значение или значение по умолчанию
func (p *BoolProperty) Value() bool {
	raw, ok := p.store.lookup(p.key)
	if !ok {
		return p.defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn(constants.ComponentSettings, "Invalid boolean %q for %s, using default %t", raw, p.key, p.defaultValue)
		return p.defaultValue
	}
	return v
}

// Set сохраняет значение и асинхронно уведомляет слушателей
func (p *BoolProperty) Set(value bool) error {
	return p.store.set(p, value)
}

// AddListener подписывает fn на изменения значения
func (p *BoolProperty) AddListener(fn func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *BoolProperty) snapshotListeners() []func(bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	listeners := make([]func(bool), len(p.listeners))
	copy(listeners, p.listeners)
	return listeners
}
