package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/types"
)

func TestOkPackageBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePkg(&buf, PkgOk); err != nil {
		t.Fatalf("WritePkg failed: %v", err)
	}
	want := []byte{0, 0, 0, 4}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Ok package = %v, want %v", buf.Bytes(), want)
	}
}

func TestErrorPackageBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePkg(&buf, PkgError); err != nil {
		t.Fatalf("WritePkg failed: %v", err)
	}
	if err := WriteErrMsg(&buf, ErrMsgFor(ErrUnexpectedPkg)); err != nil {
		t.Fatalf("WriteErrMsg failed: %v", err)
	}

	want := append([]byte{
		0, 0, 0, 3, // Error tag
		0, 2, // error code
		0, 0, 0, 0, 0, 0, 0, 27, // message length
	}, []byte("received unexpected package")...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Error package = %v, want %v", buf.Bytes(), want)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	login := Login{Username: "elena", Password: "prakt"}

	var buf bytes.Buffer
	if err := WritePkg(&buf, PkgLogin); err != nil {
		t.Fatalf("WritePkg failed: %v", err)
	}
	if err := WriteLogin(&buf, login); err != nil {
		t.Fatalf("WriteLogin failed: %v", err)
	}

	pkg, err := ReadPkg(&buf)
	if err != nil {
		t.Fatalf("ReadPkg failed: %v", err)
	}
	if pkg != PkgLogin {
		t.Fatalf("pkg = %v, want Login", pkg)
	}

	decoded, err := ReadLogin(&buf)
	if err != nil {
		t.Fatalf("ReadLogin failed: %v", err)
	}
	if decoded.Username != "elena" || decoded.Password != "prakt" {
		t.Errorf("decoded = %+v, want elena/prakt", decoded)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{"ping", Command{Kind: CmdPing}},
		{"quit", Command{Kind: CmdQuit}},
		{"query", Command{Kind: CmdQuery, Query: "select"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WritePkg(&buf, PkgCommand); err != nil {
				t.Fatalf("WritePkg failed: %v", err)
			}
			if err := WriteCommand(&buf, tt.command); err != nil {
				t.Fatalf("WriteCommand failed: %v", err)
			}

			pkg, err := ReadPkg(&buf)
			if err != nil {
				t.Fatalf("ReadPkg failed: %v", err)
			}
			if pkg != PkgCommand {
				t.Fatalf("pkg = %v, want Command", pkg)
			}

			decoded, err := ReadCommand(&buf)
			if err != nil {
				t.Fatalf("ReadCommand failed: %v", err)
			}
			if decoded != tt.command {
				t.Errorf("decoded = %+v, want %+v", decoded, tt.command)
			}
		})
	}
}

func TestGreetingRoundTrip(t *testing.T) {
	g := Greeting{ProtocolVersion: ProtocolVersion, Message: WelcomeMessage}

	var buf bytes.Buffer
	if err := WriteGreeting(&buf, g); err != nil {
		t.Fatalf("WriteGreeting failed: %v", err)
	}
	decoded, err := ReadGreeting(&buf)
	if err != nil {
		t.Fatalf("ReadGreeting failed: %v", err)
	}
	if decoded != g {
		t.Errorf("decoded = %+v, want %+v", decoded, g)
	}
}

func TestResultSetRoundTrip(t *testing.T) {
	columns := []types.Column{
		{Name: "id", Type: types.IntType(), IsPrimaryKey: true, Description: "row id"},
		{Name: "name", Type: types.CharType(8)},
		{Name: "active", Type: types.BoolType(), AllowNull: true},
	}
	layout := storage.NewLayout(columns)
	row, err := layout.EncodeRow([]types.Value{
		types.NewIntValue(3),
		types.NewCharValue("elena", 8),
		types.NewBoolValue(true),
	})
	if err != nil {
		t.Fatalf("EncodeRow failed: %v", err)
	}

	rs := storage.ResultSet{Columns: columns, Data: row}

	var buf bytes.Buffer
	if err := WriteResultSet(&buf, rs); err != nil {
		t.Fatalf("WriteResultSet failed: %v", err)
	}
	decoded, err := ReadResultSet(&buf)
	if err != nil {
		t.Fatalf("ReadResultSet failed: %v", err)
	}

	if len(decoded.Columns) != len(columns) {
		t.Fatalf("column count = %d, want %d", len(decoded.Columns), len(columns))
	}
	for i, col := range decoded.Columns {
		if col != columns[i] {
			t.Errorf("column %d = %+v, want %+v", i, col, columns[i])
		}
	}

	rows := decoded.Rows()
	ok, err := rows.Advance()
	if err != nil || !ok {
		t.Fatalf("Advance = %v, %v", ok, err)
	}
	name, err := rows.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if name.String() != "elena" {
		t.Errorf("name = %s, want elena", name)
	}
}

func TestEmptyResultSetStates(t *testing.T) {
	// empty metadata and empty data are distinguishable after decode
	var buf bytes.Buffer
	if err := WriteResultSet(&buf, storage.ResultSet{}); err != nil {
		t.Fatalf("WriteResultSet failed: %v", err)
	}
	decoded, err := ReadResultSet(&buf)
	if err != nil {
		t.Fatalf("ReadResultSet failed: %v", err)
	}
	if decoded.Columns != nil || len(decoded.Data) != 0 {
		t.Errorf("decoded = %+v, want empty", decoded)
	}

	buf.Reset()
	withMeta := storage.ResultSet{Columns: []types.Column{{Name: "id", Type: types.IntType()}}}
	if err := WriteResultSet(&buf, withMeta); err != nil {
		t.Fatalf("WriteResultSet failed: %v", err)
	}
	decoded, err = ReadResultSet(&buf)
	if err != nil {
		t.Fatalf("ReadResultSet failed: %v", err)
	}
	if len(decoded.Columns) != 1 || len(decoded.Data) != 0 {
		t.Errorf("decoded = %+v, want one column and no data", decoded)
	}
}

func TestReadPkgRejectsUnknownTag(t *testing.T) {
	_, err := ReadPkg(bytes.NewReader([]byte{0, 0, 0, 99}))
	if !errors.Is(err, ErrUnexpectedPkg) {
		t.Errorf("expected ErrUnexpectedPkg, got %v", err)
	}
}

func TestReadCommandRejectsUnknownKind(t *testing.T) {
	_, err := ReadCommand(bytes.NewReader([]byte{0, 0, 0, 99}))
	if !errors.Is(err, ErrUnknownCmd) {
		t.Errorf("expected ErrUnknownCmd, got %v", err)
	}
}

func TestReadStringRejectsHugeLength(t *testing.T) {
	_, err := ReadLogin(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
	if !errors.Is(err, ErrCodec) {
		t.Errorf("expected ErrCodec, got %v", err)
	}
}
