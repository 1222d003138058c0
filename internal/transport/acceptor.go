package transport

import (
	"crypto/tls"
	"fmt"
	"net"

	"example.com/me/rawtap/internal/chain"
)

// Options параметры acceptor
type Options struct {
	// ID идентификатор acceptor из конфигурации
	ID string
	// Channel канал трафика (C2S, S2S, ...), по нему плагины находят acceptor
	Channel string
	// Host адрес прослушивания; пустой - все интерфейсы
	Host string
	// Port порт прослушивания; 0 - выбирается системой
	Port int
	// TLSConfig включает TLS на TCP acceptor; для QUIC обязателен
	TLSConfig *tls.Config
	// MaxConnections ограничивает число одновременных TCP соединений; 0 - без ограничения
	MaxConnections int
}

func (o Options) address() string {
	return net.JoinHostPort(o.Host, fmt.Sprint(o.Port))
}

// Acceptor принимает соединения и создает для каждого сессию
// с копией своей цепочки
type Acceptor interface {
	chain.Acceptor
	ID() string
	Channel() string
	Start() error
	Addr() net.Addr
	Sessions() int
	Stop() error
}
