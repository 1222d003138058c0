package constants

import "time"

// Network ports
const (
	// DefaultListenPort стандартный порт TCP acceptor
	DefaultListenPort = 5222
	// DefaultAdminPort стандартный порт admin HTTP/WebSocket сервера
	DefaultAdminPort = 9090
)

// Filter chain names
const (
	// TLSFilterName имя security стадии в цепочке
	TLSFilterName = "tls"
	// CompressionFilterName имя стадии сжатия в цепочке
	CompressionFilterName = "compression"
	// CodecFilterName имя стадии текстового кодека
	CodecFilterName = "codec"
)

// Protocol sizes
const (
	// FrameLengthSize размер префикса длины фрейма в байтах (compression, admin trace)
	FrameLengthSize = 4
	// MaxFrameSize максимальный размер сжатого фрейма
	MaxFrameSize = 4 * 1024 * 1024
	// MaxLineLength максимальная длина строки для codec
	MaxLineLength = 64 * 1024
	// ReadBufferSize размер буфера чтения сессии
	ReadBufferSize = 4096
	// DefaultRingSize количество строк трассы, хранимых в памяти
	DefaultRingSize = 4096
)

// Timeouts and intervals
const (
	// ShutdownTimeout таймаут остановки HTTP сервера
	ShutdownTimeout = 5 * time.Second
	// WriteTimeout таймаут записи одного кадра трассы в WebSocket и в сокет сессии
	WriteTimeout = 5 * time.Second
	// HandshakeTimeout таймаут TLS рукопожатия на TCP acceptor
	HandshakeTimeout = 10 * time.Second
)

// Transport
const (
	// QUICNextProto ALPN протокол QUIC acceptor
	QUICNextProto = "rawtap"
	// AttributeTLSState атрибут сессии с tls.ConnectionState, выставляется транспортом
	AttributeTLSState = "transport.tlsState"
)

// Settings keys
const (
	// PropertyPrefix префикс ключей настроек отладчика
	PropertyPrefix = "plugin.debugger."
	// PropertyLogWhitespace ключ настройки логирования пустых сообщений
	PropertyLogWhitespace = PropertyPrefix + "logWhitespace"
	// PluginName имя плагина отладчика
	PluginName = "debugger"
)

// Component names for logging
const (
	// ComponentTap имя компонента для логирования tap
	ComponentTap = "tap"
	// ComponentTransport имя компонента для логирования transport
	ComponentTransport = "transport"
	// ComponentSettings имя компонента для логирования settings
	ComponentSettings = "settings"
	// ComponentAdmin имя компонента для логирования admin
	ComponentAdmin = "admin"
	// ComponentServer имя компонента для логирования server
	ComponentServer = "server"
	// ComponentPlugin имя компонента для логирования plugin
	ComponentPlugin = "plugin"
)
