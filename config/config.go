package config

// TLSConfig представляет конфигурацию TLS
type TLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
}

// AcceptorConfig представляет конфигурацию acceptor
type AcceptorConfig struct {
	ID                   string     `json:"id"`
	Type                 string     `json:"type"` // "tcp" или "quic"
	Host                 string     `json:"host,omitempty"`
	Port                 int        `json:"port"`
	Channel              string     `json:"channel"` // метка канала для tap, например C2S
	TLS                  *TLSConfig `json:"tls,omitempty"`
	Compression          bool       `json:"compression"`
	CompressionAlgorithm string     `json:"compression_algorithm,omitempty"` // "zstd" (по умолчанию) или "lz4"
	MaxConnections       int        `json:"max_connections,omitempty"`
}

// DebuggerConfig представляет конфигурацию плагина отладчика
type DebuggerConfig struct {
	Enabled  bool     `json:"enabled"`
	Channels []string `json:"channels"`
	Console  bool     `json:"console"`            // писать трассу в stdout
	File     string   `json:"file,omitempty"`     // писать трассу в файл
	RingSize int      `json:"ring_size"`          // строк истории для /trace
	Settings string   `json:"settings,omitempty"` // YAML файл динамических настроек
}

// AdminConfig представляет конфигурацию admin сервера
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port"`
}

// Config представляет полную конфигурацию приложения
type Config struct {
	Acceptors []AcceptorConfig `json:"acceptors"`
	Debugger  DebuggerConfig   `json:"debugger"`
	Admin     AdminConfig      `json:"admin"`
}

// Acceptor types
const (
	AcceptorTCP  = "tcp"
	AcceptorQUIC = "quic"
)
