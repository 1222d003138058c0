package service

import (
	"strings"
	"time"

	"example.com/me/rawtap/internal/chain"
	"example.com/me/rawtap/internal/codec"
	"example.com/me/rawtap/internal/constants"
	"example.com/me/rawtap/internal/logger"
)

// Ответы протокола
const (
	Greeting       = "HELLO rawtap"
	ReplyPong      = "PONG"
	ReplyBye       = "BYE"
	ReplyUnknown   = "ERR unknown command"
	commandPing    = "PING"
	commandEcho    = "ECHO"
	commandTime    = "TIME"
	commandQuit    = "QUIT"
	commandEchoArg = commandEcho + " "
)

// Service построчный демонстрационный протокол в хвосте цепочки.
// Ответы пишутся уже закодированными буферами.
type Service struct {
	now func() time.Time
}

// New создает сервис
func New() *Service {
	return &Service{now: time.Now}
}

// SessionOpened отправляет приветствие
func (s *Service) SessionOpened(session chain.Session) error {
	logger.Debug(constants.ComponentServer, "Session %d opened from %v", session.ID(), session.RemoteAddr())
	return session.Write(codec.Encode(Greeting))
}

// SessionClosed только логирует закрытие
func (s *Service) SessionClosed(session chain.Session) error {
	logger.Debug(constants.ComponentServer, "Session %d closed", session.ID())
	return nil
}

// MessageReceived отвечает на одну команду
func (s *Service) MessageReceived(session chain.Session, message any) error {
	line, ok := message.(string)
	if !ok {
		logger.Warn(constants.ComponentServer, "Session %d: unexpected message type %T", session.ID(), message)
		return nil
	}

	reply, quit := s.Handle(line)
	if err := session.Write(codec.Encode(reply)); err != nil {
		return err
	}
	if quit {
		return session.Close()
	}
	return nil
}

// Handle возвращает ответ на строку и признак завершения сессии
func (s *Service) Handle(line string) (string, bool) {
	command := strings.TrimSpace(line)
	switch {
	case command == "":
		return "", false
	case strings.EqualFold(command, commandPing):
		return ReplyPong, false
	case strings.EqualFold(command, commandEcho):
		return "", false
	case len(command) > len(commandEchoArg) && strings.EqualFold(command[:len(commandEchoArg)], commandEchoArg):
		return command[len(commandEchoArg):], false
	case strings.EqualFold(command, commandTime):
		return s.now().UTC().Format(time.RFC3339), false
	case strings.EqualFold(command, commandQuit):
		return ReplyBye, true
	default:
		return ReplyUnknown, false
	}
}
