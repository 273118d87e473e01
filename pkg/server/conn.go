package server

import (
	"errors"
	"log/slog"
	"net"

	"github.com/rnbguy/uosql-server/pkg/wire"
)

// Session states. A session only ever moves forward through these;
// unexpected packages are answered with an error and never advance the
// state.
type sessionState int

const (
	stateConnected sessionState = iota
	stateGreetingSent
	stateAwaitingLogin
	stateAuthenticated
	stateClosed
)

// session runs the protocol state machine for one connection. Domain
// errors are reported to the client and the session continues; wire I/O
// errors are fatal and close the connection.
type session struct {
	conn  net.Conn
	auth  Authenticator
	exec  Executor
	log   *slog.Logger
	state sessionState
}

func (s *session) run() {
	defer s.conn.Close()
	defer func() { s.state = stateClosed }()

	s.log.Info("connection accepted")

	if err := s.handshake(); err != nil {
		s.log.Warn("handshake failed", "err", err)
		return
	}

	if err := s.commandLoop(); err != nil {
		s.log.Warn("connection aborted", "err", err)
		return
	}
	s.log.Info("connection closed")
}

// handshake sends the greeting, reads the login package and answers with
// AccGranted or AccDenied. Any package other than Login is rejected as
// unexpected and makes the connection eligible for closure.
func (s *session) handshake() error {
	if err := wire.WritePkg(s.conn, wire.PkgGreet); err != nil {
		return err
	}
	greeting := wire.Greeting{ProtocolVersion: wire.ProtocolVersion, Message: wire.WelcomeMessage}
	if err := wire.WriteGreeting(s.conn, greeting); err != nil {
		return err
	}
	s.state = stateGreetingSent

	s.state = stateAwaitingLogin
	pkg, err := wire.ReadPkg(s.conn)
	if err != nil {
		if errors.Is(err, wire.ErrUnexpectedPkg) {
			s.sendError(wire.ErrMsgFor(wire.ErrUnexpectedPkg))
		}
		return err
	}
	if pkg != wire.PkgLogin {
		s.sendError(wire.ErrMsgFor(wire.ErrUnexpectedPkg))
		return wire.ErrUnexpectedPkg
	}

	login, err := wire.ReadLogin(s.conn)
	if err != nil {
		return err
	}

	if !s.auth.Authenticate(login.Username, login.Password) {
		s.log.Info("login denied", "user", login.Username)
		if err := wire.WritePkg(s.conn, wire.PkgAccDenied); err != nil {
			return err
		}
		return errors.New("authentication denied")
	}

	if err := wire.WritePkg(s.conn, wire.PkgAccGranted); err != nil {
		return err
	}
	s.state = stateAuthenticated
	s.log.Info("login granted", "user", login.Username)
	return nil
}

// commandLoop serves Command packages until Quit or a fatal wire error.
func (s *session) commandLoop() error {
	for {
		pkg, err := wire.ReadPkg(s.conn)
		if err != nil {
			if errors.Is(err, wire.ErrUnexpectedPkg) {
				// unknown tag value; report and stay in this state
				if err := s.sendError(wire.ErrMsgFor(wire.ErrUnexpectedPkg)); err != nil {
					return err
				}
				continue
			}
			return err
		}
		if pkg != wire.PkgCommand {
			if err := s.sendError(wire.ErrMsgFor(wire.ErrUnexpectedPkg)); err != nil {
				return err
			}
			continue
		}

		cmd, err := wire.ReadCommand(s.conn)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownCmd) {
				if err := s.sendError(wire.ErrMsgFor(wire.ErrUnknownCmd)); err != nil {
					return err
				}
				continue
			}
			return err
		}

		switch cmd.Kind {
		case wire.CmdPing:
			if err := wire.WritePkg(s.conn, wire.PkgOk); err != nil {
				return err
			}

		case wire.CmdQuit:
			return wire.WritePkg(s.conn, wire.PkgOk)

		case wire.CmdQuery:
			if err := s.serveQuery(cmd.Query); err != nil {
				return err
			}
		}
	}
}

// serveQuery hands the query text to the executor. Executor failures are
// domain errors: they go back as an Error package and the session
// continues.
func (s *session) serveQuery(query string) error {
	s.log.Debug("query", "text", query)

	result, err := s.exec.Execute(query)
	if err != nil {
		s.log.Info("query failed", "err", err)
		return s.sendError(wire.ClientErrMsg{Code: wire.CodeQuery, Msg: err.Error()})
	}

	if err := wire.WritePkg(s.conn, wire.PkgResponse); err != nil {
		return err
	}
	return wire.WriteResultSet(s.conn, result)
}

func (s *session) sendError(msg wire.ClientErrMsg) error {
	if err := wire.WritePkg(s.conn, wire.PkgError); err != nil {
		return err
	}
	return wire.WriteErrMsg(s.conn, msg)
}
