package meta

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/rnbguy/uosql-server/pkg/types"
)

// Table metadata lives in <db dir>/<table>.tbl. The file starts with a
// magic number and a format version, followed by the engine id, the table
// name and the column list.
const (
	tableMagic    uint32 = 0x756F5351 // "uoSQ"
	metaVersion   uint8  = 1
	metaExtension        = ".tbl"
)

const (
	colFlagPrimaryKey = 1 << 0
	colFlagAllowNull  = 1 << 1
)

// SaveTable writes the table metadata file into dir, replacing any
// existing one atomically.
func SaveTable(dir string, t *Table) error {
	tmp, err := os.CreateTemp(dir, t.Name+".tbl.tmp*")
	if err != nil {
		return fmt.Errorf("creating temp metadata file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := writeTableMeta(w, t); err != nil {
		tmp.Close()
		return fmt.Errorf("writing metadata for %q: %w", t.Name, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), tableMetaPath(dir, t.Name))
}

// LoadTable reads the metadata file for the named table from dir.
func LoadTable(dir, name string) (*Table, error) {
	f, err := os.Open(tableMetaPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("opening metadata for %q: %w", name, err)
	}
	defer f.Close()

	t, err := readTableMeta(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %q: %w", name, err)
	}
	return t, nil
}

func tableMetaPath(dir, name string) string {
	return dir + string(os.PathSeparator) + name + metaExtension
}

func writeTableMeta(w io.Writer, t *Table) error {
	if err := binary.Write(w, binary.BigEndian, tableMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, metaVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(t.Engine)); err != nil {
		return err
	}
	if err := writeShortString(w, t.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(t.Columns))); err != nil {
		return err
	}
	for _, col := range t.Columns {
		if err := writeColumnMeta(w, col); err != nil {
			return err
		}
	}
	return nil
}

func readTableMeta(r io.Reader) (*Table, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, err
	}
	if magic != tableMagic {
		return nil, fmt.Errorf("got %#x: %w", magic, ErrWrongMagicNumber)
	}

	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version != metaVersion {
		return nil, fmt.Errorf("unsupported metadata version %d", version)
	}

	var engine uint8
	if err := binary.Read(r, binary.BigEndian, &engine); err != nil {
		return nil, err
	}

	name, err := readShortString(r)
	if err != nil {
		return nil, err
	}

	var colCount uint16
	if err := binary.Read(r, binary.BigEndian, &colCount); err != nil {
		return nil, err
	}

	columns := make([]types.Column, colCount)
	for i := range columns {
		col, err := readColumnMeta(r)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}

	return NewTable(name, columns, EngineID(engine))
}

func writeColumnMeta(w io.Writer, col types.Column) error {
	if err := writeShortString(w, col.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(col.Type.ID)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, col.Type.Len); err != nil {
		return err
	}
	flags := uint8(0)
	if col.IsPrimaryKey {
		flags |= colFlagPrimaryKey
	}
	if col.AllowNull {
		flags |= colFlagAllowNull
	}
	if err := binary.Write(w, binary.BigEndian, flags); err != nil {
		return err
	}
	return writeShortString(w, col.Description)
}

func readColumnMeta(r io.Reader) (types.Column, error) {
	var col types.Column

	name, err := readShortString(r)
	if err != nil {
		return col, err
	}

	var typeID, typeLen, flags uint8
	if err := binary.Read(r, binary.BigEndian, &typeID); err != nil {
		return col, err
	}
	if err := binary.Read(r, binary.BigEndian, &typeLen); err != nil {
		return col, err
	}
	if err := binary.Read(r, binary.BigEndian, &flags); err != nil {
		return col, err
	}

	desc, err := readShortString(r)
	if err != nil {
		return col, err
	}

	col.Name = name
	col.Type = types.SqlType{ID: types.TypeID(typeID), Len: typeLen}
	col.IsPrimaryKey = flags&colFlagPrimaryKey != 0
	col.AllowNull = flags&colFlagAllowNull != 0
	col.Description = desc
	return col, nil
}

func writeShortString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("string of %d bytes too long for metadata", len(s))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readShortString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
