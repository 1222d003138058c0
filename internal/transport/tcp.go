package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"golang.org/x/net/netutil"
)

// TCPAcceptor принимает TCP соединения, опционально поверх TLS
type TCPAcceptor struct {
	opts     Options
	chain    *chain.Chain
	listener net.Listener
	sessions *sessionSet
	wg       sync.WaitGroup
}

// NewTCPAcceptor создает TCP acceptor с пустой цепочкой
func NewTCPAcceptor(opts Options) *TCPAcceptor {
	return &TCPAcceptor{
		opts:     opts,
		chain:    chain.New(),
		sessions: newSessionSet(),
	}
}

// FilterChain возвращает шаблонную цепочку; для nil acceptor - nil
func (a *TCPAcceptor) FilterChain() *chain.Chain {
	if a == nil {
		return nil
	}
	return a.chain
}

// SetHandler устанавливает обработчик в хвост шаблонной цепочки
func (a *TCPAcceptor) SetHandler(handler chain.Handler) {
	a.chain.SetHandler(handler)
}

func (a *TCPAcceptor) ID() string {
	return a.opts.ID
}

func (a *TCPAcceptor) Channel() string {
	return a.opts.Channel
}

// Addr возвращает адрес слушателя; nil до Start
func (a *TCPAcceptor) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Sessions возвращает количество открытых сессий
func (a *TCPAcceptor) Sessions() int {
	return a.sessions.len()
}

// Start запускает TCP слушатель
func (a *TCPAcceptor) Start() error {
	listener, err := net.Listen("tcp", a.opts.address())
	if err != nil {
		return fmt.Errorf("failed to start TCP listener %s: %w", a.opts.ID, err)
	}
	if a.opts.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, a.opts.MaxConnections)
	}
	if a.opts.TLSConfig != nil {
		listener = tls.NewListener(listener, a.opts.TLSConfig)
	}
	a.listener = listener

	a.wg.Add(1)
	go a.acceptLoop()

	logger.Info(constants.ComponentTransport, "TCP acceptor %s (%s) listening on %s, tls=%t", a.opts.ID, a.opts.Channel, listener.Addr(), a.opts.TLSConfig != nil)
	return nil
}

// Stop закрывает слушатель и все сессии
func (a *TCPAcceptor) Stop() error {
	if a.listener == nil {
		return nil
	}
	err := a.listener.Close()
	a.sessions.closeAll()
	a.wg.Wait()
	return err
}

func (a *TCPAcceptor) acceptLoop() {
	defer a.wg.Done()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			// Listener closed
			return
		}

		logger.Debug(constants.ComponentTransport, "New connection from %s on %s", conn.RemoteAddr(), a.opts.ID)

		a.wg.Add(1)
		go func(c net.Conn) {
			defer a.wg.Done()
			a.handleConn(c)
		}(conn)
	}
}

func (a *TCPAcceptor) handleConn(conn net.Conn) {
	var state *tls.ConnectionState
	if tlsConn, ok := conn.(*tls.Conn); ok {
		ctx, cancel := context.WithTimeout(context.Background(), constants.HandshakeTimeout)
		err := tlsConn.HandshakeContext(ctx)
		cancel()
		if err != nil {
			logger.Debug(constants.ComponentTransport, "TLS handshake with %s failed: %v", conn.RemoteAddr(), err)
			conn.Close()
			return
		}
		cs := tlsConn.ConnectionState()
		state = &cs
	}

	s := newSession(conn, conn.RemoteAddr(), a.chain, a.sessions.remove)
	if state != nil {
		s.SetAttribute(constants.AttributeTLSState, *state)
	}
	if !a.sessions.add(s) {
		conn.Close()
		return
	}
	s.serve()
}
