package plugin

import (
	"fmt"
	"sync"

	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

// Manager управляет жизненным циклом плагинов
type Manager struct {
	mu          sync.RWMutex
	plugins     []Plugin
	initialized []Plugin
}

// NewManager создает новый менеджер плагинов
func NewManager() *Manager {
	return &Manager{
		plugins: make([]Plugin, 0),
	}
}

// Register регистрирует плагин
func (m *Manager) Register(plugin Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = append(m.plugins, plugin)
}

// Plugins возвращает зарегистрированные плагины
func (m *Manager) Plugins() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plugins := make([]Plugin, len(m.plugins))
	copy(plugins, m.plugins)
	return plugins
}

// InitAll инициализирует плагины в порядке регистрации.
// При ошибке уже инициализированные плагины остаются и закрываются в Close.
func (m *Manager) InitAll(host Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, plugin := range m.plugins {
		if err := plugin.Init(host); err != nil {
			return fmt.Errorf("plugin %s init error: %w", plugin.Name(), err)
		}
		m.initialized = append(m.initialized, plugin)
		logger.Info(constants.ComponentPlugin, "Plugin %s initialized", plugin.Name())
	}
	return nil
}

// Close закрывает инициализированные плагины в обратном порядке
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.initialized) - 1; i >= 0; i-- {
		plugin := m.initialized[i]
		if err := plugin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s close error: %w", plugin.Name(), err))
		}
	}
	m.initialized = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors closing plugins: %v", errs)
	}

	return nil
}
