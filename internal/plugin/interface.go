package plugin

import "example.com/me/rawtap/internal/chain"

// Host сервер, предоставляющий плагинам свои acceptor
type Host interface {
	// Acceptors возвращает acceptor указанного канала
	Acceptors(channel string) []chain.Acceptor
}

// Plugin базовый интерфейс для всех плагинов
type Plugin interface {
	// Name возвращает имя плагина
	Name() string
	// Init подключает плагин к серверу
	Init(host Host) error
	// Close отключает плагин и освобождает ресурсы
	Close() error
}
