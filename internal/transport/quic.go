package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
	"github.com/quic-go/quic-go"
)

// QUICAcceptor принимает QUIC соединения; каждый входящий
// двунаправленный stream становится отдельной сессией
type QUICAcceptor struct {
	opts     Options
	chain    *chain.Chain
	listener *quic.Listener
	sessions *sessionSet
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewQUICAcceptor создает QUIC acceptor с пустой цепочкой
func NewQUICAcceptor(opts Options) *QUICAcceptor {
	ctx, cancel := context.WithCancel(context.Background())
	return &QUICAcceptor{
		opts:     opts,
		chain:    chain.New(),
		sessions: newSessionSet(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// FilterChain возвращает шаблонную цепочку; для nil acceptor - nil
func (a *QUICAcceptor) FilterChain() *chain.Chain {
	if a == nil {
		return nil
	}
	return a.chain
}

// SetHandler устанавливает обработчик в хвост шаблонной цепочки
func (a *QUICAcceptor) SetHandler(handler chain.Handler) {
	a.chain.SetHandler(handler)
}

func (a *QUICAcceptor) ID() string {
	return a.opts.ID
}

func (a *QUICAcceptor) Channel() string {
	return a.opts.Channel
}

// Addr возвращает адрес слушателя; nil до Start
func (a *QUICAcceptor) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Sessions возвращает количество открытых сессий
func (a *QUICAcceptor) Sessions() int {
	return a.sessions.len()
}

// Start запускает QUIC слушатель
func (a *QUICAcceptor) Start() error {
	if a.opts.TLSConfig == nil {
		return fmt.Errorf("QUIC acceptor %s requires TLS config", a.opts.ID)
	}
	tlsConf := a.opts.TLSConfig.Clone()
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{constants.QUICNextProto}
	}

	listener, err := quic.ListenAddr(a.opts.address(), tlsConf, &quic.Config{})
	if err != nil {
		return fmt.Errorf("failed to create QUIC listener %s: %w", a.opts.ID, err)
	}
	a.listener = listener

	a.wg.Add(1)
	go a.acceptLoop()

	logger.Info(constants.ComponentTransport, "QUIC acceptor %s (%s) listening on %s", a.opts.ID, a.opts.Channel, listener.Addr())
	return nil
}

// Stop закрывает слушатель, соединения и все сессии
func (a *QUICAcceptor) Stop() error {
	if a.listener == nil {
		return nil
	}
	a.cancel()
	err := a.listener.Close()
	a.sessions.closeAll()
	a.wg.Wait()
	return err
}

func (a *QUICAcceptor) acceptLoop() {
	defer a.wg.Done()
	for {
		conn, err := a.listener.Accept(a.ctx)
		if err != nil {
			if a.ctx.Err() == nil && !errors.Is(err, quic.ErrServerClosed) {
				logger.Error(constants.ComponentTransport, "Failed to accept QUIC connection: %v", err)
			}
			return
		}

		logger.Debug(constants.ComponentTransport, "New QUIC connection from %s on %s", conn.RemoteAddr(), a.opts.ID)

		a.wg.Add(1)
		go func(c *quic.Conn) {
			defer a.wg.Done()
			a.handleConnection(c)
		}(conn)
	}
}

// handleConnection принимает stream соединения до его закрытия
func (a *QUICAcceptor) handleConnection(conn *quic.Conn) {
	defer conn.CloseWithError(0, "")

	state := conn.ConnectionState().TLS
	for {
		stream, err := conn.AcceptStream(a.ctx)
		if err != nil {
			logger.Debug(constants.ComponentTransport, "QUIC connection from %s finished: %v", conn.RemoteAddr(), err)
			return
		}

		s := newSession(&streamConn{stream}, conn.RemoteAddr(), a.chain, a.sessions.remove)
		s.SetAttribute(constants.AttributeTLSState, state)
		if !a.sessions.add(s) {
			stream.CancelRead(0)
			stream.Close()
			return
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			s.serve()
		}()
	}
}

// streamConn закрывает обе стороны QUIC stream
type streamConn struct {
	*quic.Stream
}

func (c *streamConn) Close() error {
	c.Stream.CancelRead(0)
	return c.Stream.Close()
}
