package client

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rnbguy/uosql-server/pkg/server"
	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/types"
	"github.com/rnbguy/uosql-server/pkg/wire"
)

type fixedExecutor struct {
	result storage.ResultSet
	err    error
}

func (f *fixedExecutor) Execute(string) (storage.ResultSet, error) {
	return f.result, f.err
}

// startServer runs a real TCP server on a loopback port and returns its
// address.
func startServer(t *testing.T, exec server.Executor) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &server.Server{
		Auth: server.AuthenticatorFunc(func(user, pass string) bool {
			return pass == "prakt"
		}),
		Exec: exec,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.ServeListener(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func TestConnectAndQuit(t *testing.T) {
	addr := startServer(t, &fixedExecutor{})

	conn, err := Connect(addr, "elena", "prakt")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if conn.Version() != wire.ProtocolVersion {
		t.Errorf("Version = %d, want %d", conn.Version(), wire.ProtocolVersion)
	}
	if conn.Message() != wire.WelcomeMessage {
		t.Errorf("Message = %q, want %q", conn.Message(), wire.WelcomeMessage)
	}
	if conn.Username() != "elena" {
		t.Errorf("Username = %q, want elena", conn.Username())
	}

	if err := conn.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if err := conn.Quit(); err != nil {
		t.Errorf("Quit failed: %v", err)
	}
}

func TestConnectDenied(t *testing.T) {
	addr := startServer(t, &fixedExecutor{})

	_, err := Connect(addr, "elena", "wrong")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestConnectDeniedByErrorPackage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	// a server that answers the login with an Error package carrying the
	// auth code instead of AccDenied
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		wire.WritePkg(conn, wire.PkgGreet)
		wire.WriteGreeting(conn, wire.Greeting{ProtocolVersion: wire.ProtocolVersion, Message: "hi"})
		if _, err := wire.ReadPkg(conn); err != nil {
			return
		}
		if _, err := wire.ReadLogin(conn); err != nil {
			return
		}
		wire.WritePkg(conn, wire.PkgError)
		wire.WriteErrMsg(conn, wire.ClientErrMsg{Code: wire.CodeAuth, Msg: "denied"})
	}()

	if _, err := Connect(ln.Addr().String(), "elena", "wrong"); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestExecute(t *testing.T) {
	columns := []types.Column{
		{Name: "id", Type: types.IntType(), IsPrimaryKey: true},
		{Name: "name", Type: types.CharType(8)},
	}
	layout := storage.NewLayout(columns)
	var data []byte
	for i, name := range []string{"anna", "bert"} {
		row, err := layout.EncodeRow([]types.Value{
			types.NewIntValue(int32(i + 1)),
			types.NewCharValue(name, 8),
		})
		if err != nil {
			t.Fatalf("EncodeRow failed: %v", err)
		}
		data = append(data, row...)
	}

	addr := startServer(t, &fixedExecutor{result: storage.ResultSet{Columns: columns, Data: data}})

	conn, err := Connect(addr, "elena", "prakt")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	rs, err := conn.Execute("select * from employee")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	rows := rs.Rows()
	var names []string
	for {
		ok, err := rows.Advance()
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if !ok {
			break
		}
		name, err := rows.Get(1)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		names = append(names, name.String())
	}
	if len(names) != 2 || names[0] != "anna" || names[1] != "bert" {
		t.Errorf("names = %v, want [anna bert]", names)
	}
}

func TestExecuteServerError(t *testing.T) {
	addr := startServer(t, &fixedExecutor{err: errors.New("no such table")})

	conn, err := Connect(addr, "elena", "prakt")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	_, err = conn.Execute("select * from missing")
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected *ServerError, got %v", err)
	}
	if serverErr.Msg.Code != wire.CodeQuery || serverErr.Msg.Msg != "no such table" {
		t.Errorf("server error = %+v", serverErr.Msg)
	}

	// the connection is still usable afterwards
	if err := conn.Ping(); err != nil {
		t.Errorf("Ping after server error failed: %v", err)
	}
}
