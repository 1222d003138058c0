package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"example.com/me/rawtap/internal/compression"
	"example.com/me/rawtap/internal/constants"
	"github.com/tidwall/jsonc"
)

// Default возвращает конфигурацию, используемую при отсутствии файла
func Default() *Config {
	return &Config{
		Debugger: DebuggerConfig{
			Enabled:  true,
			Channels: []string{"C2S", "S2S"},
			Console:  true,
			RingSize: constants.DefaultRingSize,
			Settings: "debugger.yaml",
		},
		Admin: AdminConfig{
			Enabled: true,
			Port:    constants.DefaultAdminPort,
		},
	}
}

// Load загружает конфигурацию из файла и переопределяет через CLI аргументы
func Load() (*Config, error) {
	var configFile string
	var port int
	var adminPort int
	var settingsFile string

	flag.StringVar(&configFile, "config", "config.json", "Path to configuration file")
	flag.IntVar(&port, "port", 0, "Port for the first acceptor (overrides config)")
	flag.IntVar(&adminPort, "admin-port", 0, "Port for admin server (overrides config)")
	flag.StringVar(&settingsFile, "settings", "", "Path to debugger settings file (overrides config)")
	flag.Parse()

	cfg := Default()

	// Load from file if exists
	if _, err := os.Stat(configFile); err == nil {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		// допускаются комментарии и висячие запятые
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if len(cfg.Acceptors) == 0 {
		cfg.Acceptors = []AcceptorConfig{{ID: "c2s", Type: AcceptorTCP, Port: constants.DefaultListenPort, Channel: "C2S"}}
	}

	// Override via CLI arguments
	if port > 0 {
		cfg.Acceptors[0].Port = port
	}
	if adminPort > 0 {
		cfg.Admin.Port = adminPort
	}
	if settingsFile != "" {
		cfg.Debugger.Settings = settingsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate заполняет значения по умолчанию и проверяет конфигурацию
func (c *Config) Validate() error {
	ids := make(map[string]bool)
	for i := range c.Acceptors {
		a := &c.Acceptors[i]
		if a.Type == "" {
			a.Type = AcceptorTCP
		}
		if a.Type != AcceptorTCP && a.Type != AcceptorQUIC {
			return fmt.Errorf("acceptor %d: unsupported type: %s", i, a.Type)
		}
		if a.ID == "" {
			a.ID = fmt.Sprintf("%s-%d", a.Type, i)
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate acceptor id: %s", a.ID)
		}
		ids[a.ID] = true
		if a.Port < 0 || a.Port > 65535 {
			return fmt.Errorf("acceptor %s: invalid port %d", a.ID, a.Port)
		}
		if a.Channel == "" {
			a.Channel = "C2S"
		}
		if _, err := compression.ParseAlgorithm(a.CompressionAlgorithm); err != nil {
			return fmt.Errorf("acceptor %s: %w", a.ID, err)
		}
		if a.MaxConnections < 0 {
			return fmt.Errorf("acceptor %s: max_connections must not be negative", a.ID)
		}
		if a.TLS != nil && a.TLS.Enabled && (a.TLS.CertFile == "") != (a.TLS.KeyFile == "") {
			return fmt.Errorf("acceptor %s: cert_file and key_file must be set together", a.ID)
		}
	}

	if c.Debugger.RingSize <= 0 {
		c.Debugger.RingSize = constants.DefaultRingSize
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port %d", c.Admin.Port)
	}
	return nil
}
