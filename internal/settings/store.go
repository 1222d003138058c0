package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"gopkg.in/yaml.v3"
)

// ErrClosed store уже закрыт
var ErrClosed = errors.New("settings store closed")

// change одно уведомление для dispatcher
type change struct {
	listeners []func(bool)
	value     bool
}

// Store хранилище динамических настроек, сохраняемое в YAML файл.
// Слушатели вызываются асинхронно одной горутиной в порядке изменений.
type Store struct {
	mu         sync.Mutex
	path       string
	values     map[string]string
	properties map[string]*BoolProperty

	queueMu sync.Mutex
	pending []change
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

// Open загружает настройки из path. Пустой path - хранилище только в памяти.
// Отсутствующий файл не является ошибкой.
func Open(path string) (*Store, error) {
	s := &Store{
		path:       path,
		values:     make(map[string]string),
		properties: make(map[string]*BoolProperty),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &s.values); err != nil {
				return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
			}
			if s.values == nil {
				s.values = make(map[string]string)
			}
		case errors.Is(err, os.ErrNotExist):
			logger.Debug(constants.ComponentSettings, "Settings file %s not found, using defaults", path)
		default:
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	go s.dispatchLoop()
	return s, nil
}

// Bool возвращает булеву настройку key; повторный вызов с тем же ключом
// возвращает тот же объект.
func (s *Store) Bool(key string, defaultValue bool) *BoolProperty {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.properties[key]; ok {
		return p
	}
	p := &BoolProperty{store: s, key: key, defaultValue: defaultValue}
	s.properties[key] = p
	return p
}

// Keys возвращает сохраненные ключи
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Close останавливает dispatcher после доставки уже поставленных уведомлений
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()

	<-s.done
	return nil
}

func (s *Store) lookup(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// set сохраняет значение и ставит уведомление в очередь под одной блокировкой,
// чтобы порядок уведомлений совпадал с порядком записей
func (s *Store) set(p *BoolProperty, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	old, had := s.values[p.key]
	s.values[p.key] = strconv.FormatBool(value)
	if err := s.persistLocked(); err != nil {
		if had {
			s.values[p.key] = old
		} else {
			delete(s.values, p.key)
		}
		return err
	}

	if listeners := p.snapshotListeners(); len(listeners) > 0 {
		s.queueMu.Lock()
		s.pending = append(s.pending, change{listeners: listeners, value: value})
		s.queueMu.Unlock()
		s.signal()
	}
	return nil
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

// dispatchLoop доставляет уведомления вне блокировок store,
// поэтому слушатель может читать настройки
func (s *Store) dispatchLoop() {
	defer close(s.done)
	for range s.wake {
		s.queueMu.Lock()
		batch := s.pending
		s.pending = nil
		s.queueMu.Unlock()

		for _, c := range batch {
			for _, l := range c.listeners {
				l(c.value)
			}
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			s.queueMu.Lock()
			empty := len(s.pending) == 0
			s.queueMu.Unlock()
			if empty {
				return
			}
			s.signal()
		}
	}
}
