package server

import (
	"fmt"

	"example.com/me/rawtap/config"
	"example.com/me/rawtap/internal/admin"
	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/codec"
	"example.com/me/rawtap/internal/compression"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"example.com/me/rawtap/internal/plugin"
	"example.com/me/rawtap/internal/service"
	"example.com/me/rawtap/internal/settings"
	"example.com/me/rawtap/internal/sink"
	"example.com/me/rawtap/internal/tap"
	tlsconfig "example.com/me/rawtap/internal/tls"
	"example.com/me/rawtap/internal/transport"
)

// Server представляет сервер с acceptor, сервисом и отладчиком
type Server struct {
	cfg           *config.Config
	service       *service.Service
	acceptors     []transport.Acceptor
	compressors   []*compression.Filter
	pluginManager *plugin.Manager

	store       *settings.Store
	broadcast   *sink.Broadcast
	traceFile   *sink.File
	debugger    *tap.Debugger
	adminServer *admin.Server
}

// NewServer создает новый server
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

// Initialize инициализирует все компоненты server
func (s *Server) Initialize() error {
	s.service = service.New()

	// Initialize Plugin Manager
	s.pluginManager = plugin.NewManager()

	if err := s.initializeAcceptors(); err != nil {
		return fmt.Errorf("failed to initialize acceptors: %w", err)
	}

	if err := s.initializePlugins(); err != nil {
		return fmt.Errorf("failed to initialize plugins: %w", err)
	}

	if s.cfg.Admin.Enabled && s.debugger != nil {
		s.adminServer = admin.NewServer(s.cfg.Admin.Host, s.cfg.Admin.Port, s.debugger, s.broadcast)
	}

	return nil
}

// initializeAcceptors создает acceptor и их шаблонные цепочки
func (s *Server) initializeAcceptors() error {
	for _, acfg := range s.cfg.Acceptors {
		acceptor, err := s.newAcceptor(acfg)
		if err != nil {
			return fmt.Errorf("acceptor %s: %w", acfg.ID, err)
		}
		if err := s.buildChain(acceptor.FilterChain(), acfg); err != nil {
			return fmt.Errorf("acceptor %s: %w", acfg.ID, err)
		}
		s.acceptors = append(s.acceptors, acceptor)
	}
	return nil
}

func (s *Server) newAcceptor(acfg config.AcceptorConfig) (transport.Acceptor, error) {
	opts := transport.Options{
		ID:             acfg.ID,
		Channel:        acfg.Channel,
		Host:           acfg.Host,
		Port:           acfg.Port,
		MaxConnections: acfg.MaxConnections,
	}

	switch acfg.Type {
	case config.AcceptorTCP:
		tlsConf, err := tlsconfig.NewTLSConfig(acfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tlsConf
		a := transport.NewTCPAcceptor(opts)
		a.SetHandler(s.service)
		return a, nil
	case config.AcceptorQUIC:
		tlsConf, err := tlsconfig.NewTLSConfigForQUIC(acfg.TLS, []string{constants.QUICNextProto})
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tlsConf
		a := transport.NewQUICAcceptor(opts)
		a.SetHandler(s.service)
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported acceptor type: %s", acfg.Type)
	}
}

// buildChain собирает цепочку [tls] [compression] codec
func (s *Server) buildChain(c *chain.Chain, acfg config.AcceptorConfig) error {
	if secured(acfg) {
		if err := c.AddLast(constants.TLSFilterName, tlsconfig.NewFilter()); err != nil {
			return err
		}
	}
	if acfg.Compression {
		algorithm, err := compression.ParseAlgorithm(acfg.CompressionAlgorithm)
		if err != nil {
			return err
		}
		compressor, err := compression.NewFilter(algorithm)
		if err != nil {
			return err
		}
		s.compressors = append(s.compressors, compressor)
		if err := c.AddLast(constants.CompressionFilterName, compressor); err != nil {
			return err
		}
	}
	return c.AddLast(constants.CodecFilterName, codec.NewFilter())
}

// secured сообщает, шифрует ли транспорт acceptor
func secured(acfg config.AcceptorConfig) bool {
	return acfg.Type == config.AcceptorQUIC || (acfg.TLS != nil && acfg.TLS.Enabled)
}

// initializePlugins инициализирует плагины
func (s *Server) initializePlugins() error {
	dcfg := s.cfg.Debugger
	if !dcfg.Enabled {
		return nil
	}

	store, err := settings.Open(dcfg.Settings)
	if err != nil {
		return fmt.Errorf("failed to open debugger settings: %w", err)
	}
	s.store = store

	s.broadcast = sink.NewBroadcast(sink.NewRing(dcfg.RingSize))
	sinks := sink.Multi{s.broadcast}
	if dcfg.Console {
		sinks = append(sinks, sink.NewConsole())
	}
	if dcfg.File != "" {
		file, err := sink.OpenFile(dcfg.File)
		if err != nil {
			return err
		}
		s.traceFile = file
		sinks = append(sinks, file)
	}

	s.debugger = tap.NewDebugger(store, sinks, dcfg.Channels)
	s.pluginManager.Register(s.debugger)
	logger.Info(constants.ComponentServer, "Debugger plugin enabled for channels %v", dcfg.Channels)
	return nil
}

// Acceptors возвращает acceptor канала
func (s *Server) Acceptors(channel string) []chain.Acceptor {
	var result []chain.Acceptor
	for _, a := range s.acceptors {
		if a.Channel() == channel {
			result = append(result, a)
		}
	}
	return result
}

// Acceptor возвращает acceptor по ID
func (s *Server) Acceptor(id string) (transport.Acceptor, bool) {
	for _, a := range s.acceptors {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Debugger возвращает плагин отладчика; nil если он выключен
func (s *Server) Debugger() *tap.Debugger {
	return s.debugger
}

// Admin возвращает admin сервер; nil если он выключен
func (s *Server) Admin() *admin.Server {
	return s.adminServer
}

// Start запускает server
func (s *Server) Start() error {
	// tap устанавливаются до приема первых соединений
	if err := s.pluginManager.InitAll(s); err != nil {
		return fmt.Errorf("failed to initialize plugins: %w", err)
	}

	for _, a := range s.acceptors {
		if err := a.Start(); err != nil {
			return fmt.Errorf("failed to start acceptor %s: %w", a.ID(), err)
		}
	}

	if s.adminServer != nil {
		if err := s.adminServer.Start(); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	logger.Info(constants.ComponentServer, "Server started with %d acceptors", len(s.acceptors))
	return nil
}

// Stop останавливает server
func (s *Server) Stop() error {
	var errs []error

	if s.adminServer != nil {
		if err := s.adminServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("error stopping admin server: %w", err))
		}
	}

	for _, a := range s.acceptors {
		if err := a.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("error stopping acceptor %s: %w", a.ID(), err))
		}
	}

	if s.pluginManager != nil {
		if err := s.pluginManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing plugins: %w", err))
		}
	}

	for _, c := range s.compressors {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing compressor: %w", err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing settings: %w", err))
		}
	}

	if s.traceFile != nil {
		if err := s.traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing trace file: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors stopping server: %v", errs)
	}

	return nil
}

var _ plugin.Host = (*Server)(nil)
