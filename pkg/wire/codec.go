package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/types"
)

// Decoding limits. The protocol has no outer frame, so a corrupt length
// field is the first line of defense against unbounded allocations.
const (
	maxStringLen  = 1 << 20
	maxColumns    = 1 << 12
	maxResultData = 1 << 28
)

// WritePkg writes a bare package tag. Used for Ok, AccGranted,
// AccDenied and as the leading tag of every payload-carrying package.
func WritePkg(w io.Writer, pkg PkgType) error {
	return writeU32(w, uint32(pkg))
}

// ReadPkg reads the next package tag off the stream.
func ReadPkg(r io.Reader) (PkgType, error) {
	v, err := readU32(r)
	if err != nil {
		return 0, err
	}
	if v >= uint32(pkgTypeCount) {
		return 0, fmt.Errorf("package tag %d: %w", v, ErrUnexpectedPkg)
	}
	return PkgType(v), nil
}

// WriteGreeting writes the Greeting payload (tag not included).
func WriteGreeting(w io.Writer, g Greeting) error {
	if err := writeU8(w, g.ProtocolVersion); err != nil {
		return err
	}
	return writeString(w, g.Message)
}

func ReadGreeting(r io.Reader) (Greeting, error) {
	var g Greeting
	version, err := readU8(r)
	if err != nil {
		return g, err
	}
	message, err := readString(r)
	if err != nil {
		return g, err
	}
	g.ProtocolVersion = version
	g.Message = message
	return g, nil
}

// WriteLogin writes the Login payload (tag not included).
func WriteLogin(w io.Writer, l Login) error {
	if err := writeString(w, l.Username); err != nil {
		return err
	}
	return writeString(w, l.Password)
}

func ReadLogin(r io.Reader) (Login, error) {
	var l Login
	username, err := readString(r)
	if err != nil {
		return l, err
	}
	password, err := readString(r)
	if err != nil {
		return l, err
	}
	l.Username = username
	l.Password = password
	return l, nil
}

// WriteCommand writes the Command payload: the sub-variant tag, then the
// query text for CmdQuery.
func WriteCommand(w io.Writer, c Command) error {
	if err := writeU32(w, uint32(c.Kind)); err != nil {
		return err
	}
	if c.Kind == CmdQuery {
		return writeString(w, c.Query)
	}
	return nil
}

func ReadCommand(r io.Reader) (Command, error) {
	var c Command
	kind, err := readU32(r)
	if err != nil {
		return c, err
	}
	if kind >= uint32(commandKindCount) {
		return c, fmt.Errorf("command tag %d: %w", kind, ErrUnknownCmd)
	}
	c.Kind = CommandKind(kind)
	if c.Kind == CmdQuery {
		c.Query, err = readString(r)
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

// WriteErrMsg writes the ClientErrMsg payload (tag not included).
func WriteErrMsg(w io.Writer, e ClientErrMsg) error {
	if err := writeU16(w, e.Code); err != nil {
		return err
	}
	return writeString(w, e.Msg)
}

func ReadErrMsg(r io.Reader) (ClientErrMsg, error) {
	var e ClientErrMsg
	code, err := readU16(r)
	if err != nil {
		return e, err
	}
	msg, err := readString(r)
	if err != nil {
		return e, err
	}
	e.Code = code
	e.Msg = msg
	return e, nil
}

// WriteResultSet writes query output: the column descriptors, then the
// concatenated encoded rows.
func WriteResultSet(w io.Writer, rs storage.ResultSet) error {
	if err := writeU64(w, uint64(len(rs.Columns))); err != nil {
		return err
	}
	for _, col := range rs.Columns {
		if err := writeColumn(w, col); err != nil {
			return err
		}
	}
	if err := writeU64(w, uint64(len(rs.Data))); err != nil {
		return err
	}
	_, err := w.Write(rs.Data)
	return err
}

func ReadResultSet(r io.Reader) (storage.ResultSet, error) {
	var rs storage.ResultSet

	colCount, err := readU64(r)
	if err != nil {
		return rs, err
	}
	if colCount > maxColumns {
		return rs, fmt.Errorf("result set claims %d columns: %w", colCount, ErrCodec)
	}
	if colCount > 0 {
		rs.Columns = make([]types.Column, colCount)
		for i := range rs.Columns {
			col, err := readColumn(r)
			if err != nil {
				return rs, err
			}
			rs.Columns[i] = col
		}
	}

	dataLen, err := readU64(r)
	if err != nil {
		return rs, err
	}
	if dataLen > maxResultData {
		return rs, fmt.Errorf("result set claims %d data bytes: %w", dataLen, ErrCodec)
	}
	rs.Data = make([]byte, dataLen)
	if _, err := io.ReadFull(r, rs.Data); err != nil {
		return rs, err
	}
	return rs, nil
}

func writeColumn(w io.Writer, col types.Column) error {
	if err := writeString(w, col.Name); err != nil {
		return err
	}
	if err := writeU32(w, uint32(col.Type.ID)); err != nil {
		return err
	}
	if err := writeU8(w, col.Type.Len); err != nil {
		return err
	}
	if err := writeBool(w, col.IsPrimaryKey); err != nil {
		return err
	}
	if err := writeBool(w, col.AllowNull); err != nil {
		return err
	}
	return writeString(w, col.Description)
}

func readColumn(r io.Reader) (types.Column, error) {
	var col types.Column

	name, err := readString(r)
	if err != nil {
		return col, err
	}
	typeID, err := readU32(r)
	if err != nil {
		return col, err
	}
	typeLen, err := readU8(r)
	if err != nil {
		return col, err
	}
	pk, err := readBool(r)
	if err != nil {
		return col, err
	}
	nullable, err := readBool(r)
	if err != nil {
		return col, err
	}
	desc, err := readString(r)
	if err != nil {
		return col, err
	}

	col.Name = name
	col.Type = types.SqlType{ID: types.TypeID(typeID), Len: typeLen}
	col.IsPrimaryKey = pk
	col.AllowNull = nullable
	col.Description = desc
	return col, nil
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeBool(w io.Writer, v bool) error {
	b := uint8(0)
	if v {
		b = 1
	}
	return writeU8(w, b)
}

func readBool(r io.Reader) (bool, error) {
	b, err := readU8(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeU64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU64(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d: %w", n, ErrCodec)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
