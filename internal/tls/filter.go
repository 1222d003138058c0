package tls

import (
	"crypto/tls"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

// Атрибуты сессии, которые выставляет Filter
const (
	AttributeVersion = "tls.version"
	AttributeCipher  = "tls.cipher"
)

// Filter security стадия цепочки. Шифрование выполняет транспорт,
// стадия отмечает защищенный acceptor и записывает параметры рукопожатия.
type Filter struct {
	chain.Adapter
}

// NewFilter создает security стадию
func NewFilter() *Filter {
	return &Filter{}
}

// SessionCreated сохраняет версию TLS и cipher suite в атрибутах сессии
func (f *Filter) SessionCreated(next chain.NextFilter, session chain.Session) error {
	if value, ok := session.Attribute(constants.AttributeTLSState); ok {
		if state, ok := value.(tls.ConnectionState); ok {
			version := tls.VersionName(state.Version)
			cipher := tls.CipherSuiteName(state.CipherSuite)
			session.SetAttribute(AttributeVersion, version)
			session.SetAttribute(AttributeCipher, cipher)
			logger.Debug(constants.ComponentTransport, "Session %d negotiated %s with %s", session.ID(), version, cipher)
		}
	} else {
		logger.Warn(constants.ComponentTransport, "Session %d passed the security stage without TLS state", session.ID())
	}
	return next.SessionCreated(session)
}
