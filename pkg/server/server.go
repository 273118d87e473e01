// Package server drives the database's network side: an accept loop that
// hands every connection to its own goroutine running the protocol state
// machine. Authentication policy and query execution are external
// collaborators injected as interfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/rnbguy/uosql-server/pkg/storage"
)

// Authenticator decides whether presented credentials grant access.
// It is consulted exactly once per connection, during the handshake.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// AuthenticatorFunc adapts a plain function to the Authenticator
// interface.
type AuthenticatorFunc func(username, password string) bool

func (f AuthenticatorFunc) Authenticate(username, password string) bool {
	return f(username, password)
}

// Executor is the external parser/executor collaborator. It receives the
// raw query text, resolves the table, takes the table lock and drives the
// storage engine; the server only relays its result or error.
type Executor interface {
	Execute(query string) (storage.ResultSet, error)
}

// Server accepts TCP connections and runs one session per connection.
type Server struct {
	Addr   string
	Auth   Authenticator
	Exec   Executor
	Logger *slog.Logger
}

// Serve listens on s.Addr and accepts until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts connections from ln until ctx is cancelled. The
// listener is closed on cancellation; sessions already running finish
// their current command loop on their own connections.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if s.Auth == nil || s.Exec == nil {
		ln.Close()
		return fmt.Errorf("server needs an authenticator and an executor")
	}
	log := s.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log.Info("server listening", "addr", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}

			sess := &session{
				conn: conn,
				auth: s.Auth,
				exec: s.Exec,
				log:  log.With("remote", conn.RemoteAddr().String()),
			}
			go sess.run()
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
