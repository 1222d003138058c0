package tap

import (
	"errors"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

// Pipeline операции цепочки, нужные для установки tap
type Pipeline interface {
	Contains(name string) bool
	AddAfter(baseName, name string, filter chain.Filter) error
	AddLast(name string, filter chain.Filter) error
	Remove(name string) bool
}

// AddFilterToChain вставляет tap в цепочку acceptor: после compression,
// иначе после tls, иначе в конец. Повторный вызов ничего не меняет.
// Отсутствующий acceptor пропускается.
func (t *Tap) AddFilterToChain(acceptor chain.Acceptor) {
	c := chainOf(acceptor)
	if c == nil {
		logger.Debug(constants.ComponentTap, "Not adding filter '%s' for %s to acceptor that is nil.", FilterName, t.prefix)
		return
	}
	t.attach(c, acceptor)
}

// RemoveFilterFromChain удаляет tap из цепочки acceptor; отсутствие tap не ошибка
func (t *Tap) RemoveFilterFromChain(acceptor chain.Acceptor) {
	c := chainOf(acceptor)
	if c == nil {
		logger.Debug(constants.ComponentTap, "Not removing filter '%s' for %s from acceptor that is nil.", FilterName, t.prefix)
		return
	}
	t.detach(c, acceptor)
}

func (t *Tap) attach(p Pipeline, acceptor any) {
	if p.Contains(FilterName) {
		logger.Debug(constants.ComponentTap, "Filter '%s' for %s is already present in acceptor %v", FilterName, t.prefix, acceptor)
		return
	}

	var err error
	switch {
	case p.Contains(constants.CompressionFilterName):
		logger.Debug(constants.ComponentTap, "Adding filter '%s' for %s as the first filter after the compression filter in acceptor %v", FilterName, t.prefix, acceptor)
		err = p.AddAfter(constants.CompressionFilterName, FilterName, t)
	case p.Contains(constants.TLSFilterName):
		logger.Debug(constants.ComponentTap, "Adding filter '%s' for %s as the first filter after the TLS filter in acceptor %v", FilterName, t.prefix, acceptor)
		err = p.AddAfter(constants.TLSFilterName, FilterName, t)
	default:
		logger.Debug(constants.ComponentTap, "Adding filter '%s' for %s as the last filter in acceptor %v", FilterName, t.prefix, acceptor)
		err = p.AddLast(FilterName, t)
	}

	switch {
	case err == nil:
	case errors.Is(err, chain.ErrDuplicateName):
		// конкурентный attach успел раньше
		logger.Debug(constants.ComponentTap, "Filter '%s' for %s was added concurrently to acceptor %v", FilterName, t.prefix, acceptor)
	default:
		// базовая стадия исчезла между Contains и AddAfter
		logger.Warn(constants.ComponentTap, "Failed to add filter '%s' for %s to acceptor %v: %v", FilterName, t.prefix, acceptor, err)
	}
}

func (t *Tap) detach(p Pipeline, acceptor any) {
	if p.Remove(FilterName) {
		logger.Debug(constants.ComponentTap, "Removing filter '%s' for %s from acceptor %v", FilterName, t.prefix, acceptor)
		return
	}
	logger.Debug(constants.ComponentTap, "Unable to remove non-existing filter '%s' for %s from acceptor %v", FilterName, t.prefix, acceptor)
}

func chainOf(acceptor chain.Acceptor) *chain.Chain {
	if acceptor == nil {
		return nil
	}
	return acceptor.FilterChain()
}
