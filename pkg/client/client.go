// Package client is the native client library: it dials a server,
// performs the handshake and exposes ping/quit/query on an established
// connection. The rendering layer maps the typed errors surfaced here to
// human-readable output.
package client

import (
	"errors"
	"fmt"
	"net"

	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/wire"
)

// ErrAuth is returned by Connect when the server denies the presented
// credentials.
var ErrAuth = errors.New("could not authenticate user")

// ServerError carries an Error package received in place of an expected
// response.
type ServerError struct {
	Msg wire.ClientErrMsg
}

func (e *ServerError) Error() string {
	return e.Msg.Msg
}

// Connection is an authenticated session with a server. It is not safe
// for concurrent use; the protocol is strictly request/response.
type Connection struct {
	conn     net.Conn
	addr     string
	greeting wire.Greeting
	username string
}

// Connect dials addr ("host:port"), performs the handshake and
// authenticates. On AccDenied it fails with ErrAuth.
func Connect(addr, username, password string) (*Connection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	c := &Connection{conn: conn, addr: addr, username: username}
	if err := c.handshake(username, password); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Connection) handshake(username, password string) error {
	if err := c.receive(wire.PkgGreet); err != nil {
		return err
	}
	greeting, err := wire.ReadGreeting(c.conn)
	if err != nil {
		return err
	}
	c.greeting = greeting

	if err := wire.WritePkg(c.conn, wire.PkgLogin); err != nil {
		return err
	}
	if err := wire.WriteLogin(c.conn, wire.Login{Username: username, Password: password}); err != nil {
		return err
	}

	pkg, err := wire.ReadPkg(c.conn)
	if err != nil {
		return err
	}
	switch pkg {
	case wire.PkgAccGranted:
		return nil
	case wire.PkgAccDenied:
		return ErrAuth
	case wire.PkgError:
		// Some servers answer a bad login with an Error package instead
		// of AccDenied; fold the auth code back into ErrAuth.
		msg, err := wire.ReadErrMsg(c.conn)
		if err != nil {
			return err
		}
		if msg.Code == wire.CodeAuth {
			return ErrAuth
		}
		return &ServerError{Msg: msg}
	default:
		return fmt.Errorf("login answered with %s: %w", pkg, wire.ErrUnexpectedPkg)
	}
}

// Ping sends a ping command and waits for the Ok reply.
func (c *Connection) Ping() error {
	if err := c.sendCommand(wire.Command{Kind: wire.CmdPing}); err != nil {
		return err
	}
	return c.receive(wire.PkgOk)
}

// Quit tells the server to end the session and closes the connection.
func (c *Connection) Quit() error {
	if err := c.sendCommand(wire.Command{Kind: wire.CmdQuit}); err != nil {
		return err
	}
	if err := c.receive(wire.PkgOk); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// Execute sends a query and returns the server's result set. Server-side
// failures come back as *ServerError.
func (c *Connection) Execute(query string) (storage.ResultSet, error) {
	if err := c.sendCommand(wire.Command{Kind: wire.CmdQuery, Query: query}); err != nil {
		return storage.ResultSet{}, err
	}
	if err := c.receive(wire.PkgResponse); err != nil {
		return storage.ResultSet{}, err
	}
	return wire.ReadResultSet(c.conn)
}

// Close drops the connection without the quit exchange.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Version returns the protocol version the server greeted with.
func (c *Connection) Version() uint8 {
	return c.greeting.ProtocolVersion
}

// Message returns the server's greeting text.
func (c *Connection) Message() string {
	return c.greeting.Message
}

// Addr returns the server address this connection was dialed to.
func (c *Connection) Addr() string {
	return c.addr
}

// Username returns the name this connection authenticated as.
func (c *Connection) Username() string {
	return c.username
}

func (c *Connection) sendCommand(cmd wire.Command) error {
	if err := wire.WritePkg(c.conn, wire.PkgCommand); err != nil {
		return err
	}
	return wire.WriteCommand(c.conn, cmd)
}

// receive reads the next package tag and matches it against the
// expectation. An Error package is surfaced as *ServerError; any other
// mismatched tag has its payload drained so the stream stays in sync,
// then is reported as unexpected.
func (c *Connection) receive(expected wire.PkgType) error {
	pkg, err := wire.ReadPkg(c.conn)
	if err != nil {
		return err
	}

	if pkg == wire.PkgError {
		msg, err := wire.ReadErrMsg(c.conn)
		if err != nil {
			return err
		}
		return &ServerError{Msg: msg}
	}

	if pkg != expected {
		switch pkg {
		case wire.PkgResponse:
			if _, err := wire.ReadResultSet(c.conn); err != nil {
				return err
			}
		case wire.PkgGreet:
			if _, err := wire.ReadGreeting(c.conn); err != nil {
				return err
			}
		}
		return fmt.Errorf("expected %s, got %s: %w", expected, pkg, wire.ErrUnexpectedPkg)
	}
	return nil
}
