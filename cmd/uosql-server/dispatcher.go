package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rnbguy/uosql-server/pkg/logging"
	"github.com/rnbguy/uosql-server/pkg/meta"
	"github.com/rnbguy/uosql-server/pkg/storage"
	"github.com/rnbguy/uosql-server/pkg/storage/bstar"
	"github.com/rnbguy/uosql-server/pkg/storage/flatfile"
	"github.com/rnbguy/uosql-server/pkg/types"
)

// dispatcher resolves query text against the database catalog and drives
// the storage engine of the addressed table. It holds the per-table lock
// for the duration of each engine call; scan results are copied into the
// cursor before the lock is released.
type dispatcher struct {
	db    *meta.Database
	locks *meta.LockRegistry
	log   *slog.Logger
}

func newDispatcher(db *meta.Database, log *slog.Logger) *dispatcher {
	return &dispatcher{
		db:    db,
		locks: meta.NewLockRegistry(),
		log:   log,
	}
}

func (d *dispatcher) Execute(query string) (storage.ResultSet, error) {
	p := &parser{tokens: tokenize(query)}
	if p.done() {
		return storage.ResultSet{}, errors.New("empty query")
	}

	stmt := strings.ToUpper(p.next())
	d.log.Debug("dispatching", "statement", stmt)

	switch stmt {
	case "CREATE":
		return d.createTable(p)
	case "DROP":
		return d.dropTable(p)
	case "ALTER":
		return d.alterTable(p)
	case "SHOW":
		return d.showTables(p)
	case "DESCRIBE":
		return d.describe(p)
	case "SELECT":
		return d.selectFrom(p)
	case "INSERT":
		return d.insertInto(p)
	case "DELETE":
		return d.deleteFrom(p)
	case "UPDATE":
		return d.update(p)
	case "REORGANIZE":
		return d.maintenance(p, storage.Engine.Reorganize)
	case "RESET":
		return d.maintenance(p, storage.Engine.Reset)
	default:
		return storage.ResultSet{}, fmt.Errorf("unknown statement %q", stmt)
	}
}

// engineFor instantiates the engine backing a table. The inverted index
// engine was never ported from the original catalog, so it is rejected
// like any unknown id.
func (d *dispatcher) engineFor(t *meta.Table) (storage.Engine, error) {
	switch t.Engine {
	case meta.FlatFile:
		return flatfile.New(t, d.db.Dir()), nil
	case meta.BStar:
		return bstar.New(t, d.db.Dir()), nil
	default:
		return nil, fmt.Errorf("table %q: engine %s not supported: %w",
			t.Name, t.Engine, storage.ErrEngine)
	}
}

// withTable resolves the table, takes its lock and runs fn against its
// engine.
func (d *dispatcher) withTable(name string, fn func(*meta.Table, storage.Engine) (storage.ResultSet, error)) (storage.ResultSet, error) {
	table, err := d.db.Table(name)
	if err != nil {
		return storage.ResultSet{}, err
	}
	engine, err := d.engineFor(table)
	if err != nil {
		return storage.ResultSet{}, err
	}

	lock := d.locks.TableLock(d.db.Name, table.Name)
	lock.Lock()
	defer lock.Unlock()

	return fn(table, engine)
}

func (d *dispatcher) createTable(p *parser) (storage.ResultSet, error) {
	if err := p.expect("TABLE"); err != nil {
		return storage.ResultSet{}, err
	}
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}

	columns, err := parseColumnDefs(p)
	if err != nil {
		return storage.ResultSet{}, err
	}

	engineID := meta.FlatFile
	if p.accept("ENGINE") {
		engineName, err := p.ident()
		if err != nil {
			return storage.ResultSet{}, err
		}
		switch strings.ToLower(engineName) {
		case "flatfile":
			engineID = meta.FlatFile
		case "bstar":
			engineID = meta.BStar
		default:
			return storage.ResultSet{}, fmt.Errorf("unknown engine %q", engineName)
		}
	}

	table, err := d.db.CreateTable(name, columns, engineID)
	if err != nil {
		return storage.ResultSet{}, err
	}

	engine, err := d.engineFor(table)
	if err != nil {
		return storage.ResultSet{}, err
	}
	if err := engine.CreateTable(); err != nil {
		d.db.DropTable(name)
		return storage.ResultSet{}, err
	}

	logging.WithEngine(engineID.String(), name).Info("table created")
	return storage.ResultSet{}, nil
}

func (d *dispatcher) dropTable(p *parser) (storage.ResultSet, error) {
	if err := p.expect("TABLE"); err != nil {
		return storage.ResultSet{}, err
	}
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}

	lock := d.locks.TableLock(d.db.Name, name)
	lock.Lock()
	defer lock.Unlock()

	if err := d.db.DropTable(name); err != nil {
		return storage.ResultSet{}, err
	}
	logging.WithTable(name).Info("table dropped")
	return storage.ResultSet{}, nil
}

// alterTable applies ADD COLUMN or DROP COLUMN to a table. The rows are
// read out under the old schema, the catalog entry is changed, and the
// data file is rebuilt under the new layout. An added column reads NULL
// for rows that predate it.
func (d *dispatcher) alterTable(p *parser) (storage.ResultSet, error) {
	if err := p.expect("TABLE"); err != nil {
		return storage.ResultSet{}, err
	}
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	verb, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	if err := p.expect("COLUMN"); err != nil {
		return storage.ResultSet{}, err
	}

	lock := d.locks.TableLock(d.db.Name, name)
	lock.Lock()
	defer lock.Unlock()

	table, err := d.db.Table(name)
	if err != nil {
		return storage.ResultSet{}, err
	}
	engine, err := d.engineFor(table)
	if err != nil {
		return storage.ResultSet{}, err
	}
	scan, err := engine.FullScan()
	if err != nil {
		return storage.ResultSet{}, err
	}
	rows, err := decodeRows(scan, len(table.Columns))
	if err != nil {
		return storage.ResultSet{}, err
	}

	var alter func(*meta.Table) error
	switch strings.ToUpper(verb) {
	case "ADD":
		colName, err := p.ident()
		if err != nil {
			return storage.ResultSet{}, err
		}
		colType, err := parseType(p)
		if err != nil {
			return storage.ResultSet{}, err
		}
		col := types.Column{Name: colName, Type: colType}
		for {
			if p.accept("PRIMARY") {
				if err := p.expect("KEY"); err != nil {
					return storage.ResultSet{}, err
				}
				col.IsPrimaryKey = true
				continue
			}
			if p.accept("NULL") {
				col.AllowNull = true
				continue
			}
			break
		}
		alter = func(t *meta.Table) error { return t.AddColumn(col) }
		for i := range rows {
			rows[i] = append(rows[i], nil)
		}
	case "DROP":
		colName, err := p.ident()
		if err != nil {
			return storage.ResultSet{}, err
		}
		idx, err := table.ColumnIndex(colName)
		if err != nil {
			return storage.ResultSet{}, err
		}
		alter = func(t *meta.Table) error { return t.RemoveColumn(colName) }
		for i := range rows {
			rows[i] = append(rows[i][:idx], rows[i][idx+1:]...)
		}
	default:
		return storage.ResultSet{}, fmt.Errorf("unknown alteration %q", verb)
	}

	if err := d.db.AlterTable(name, alter); err != nil {
		return storage.ResultSet{}, err
	}
	if err := d.rebuildTable(table, rows); err != nil {
		return storage.ResultSet{}, err
	}

	logging.WithTable(name).Info("table altered", "columns", len(table.Columns))
	return storage.ResultSet{}, nil
}

// rebuildTable replaces the table's data file with one holding the given
// rows encoded under the current schema.
func (d *dispatcher) rebuildTable(table *meta.Table, rows [][]types.Value) error {
	if err := os.Remove(filepath.Join(d.db.Dir(), table.Name+".dat")); err != nil && !os.IsNotExist(err) {
		return err
	}
	engine, err := d.engineFor(table)
	if err != nil {
		return err
	}
	if err := engine.CreateTable(); err != nil {
		return err
	}

	layout := storage.NewLayout(table.Columns)
	for _, values := range rows {
		encoded, err := layout.EncodeRow(values)
		if err != nil {
			return err
		}
		if _, err := engine.InsertRow(encoded); err != nil {
			return err
		}
	}
	return nil
}

// decodeRows drains a cursor into per-row value slices.
func decodeRows(rows *storage.Rows, columns int) ([][]types.Value, error) {
	var out [][]types.Value
	for {
		ok, err := rows.Advance()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		values := make([]types.Value, columns)
		for i := range values {
			value, err := rows.Get(i)
			if err != nil {
				return nil, err
			}
			values[i] = value
		}
		out = append(out, values)
	}
}

func (d *dispatcher) showTables(p *parser) (storage.ResultSet, error) {
	if err := p.expect("TABLES"); err != nil {
		return storage.ResultSet{}, err
	}

	columns := []types.Column{{Name: "table", Type: types.CharType(64)}}
	layout := storage.NewLayout(columns)

	var data []byte
	for _, name := range d.db.TableNames() {
		row, err := layout.EncodeRow([]types.Value{types.NewCharValue(clamp(name, 64), 64)})
		if err != nil {
			return storage.ResultSet{}, err
		}
		data = append(data, row...)
	}
	return storage.ResultSet{Columns: columns, Data: data}, nil
}

func (d *dispatcher) describe(p *parser) (storage.ResultSet, error) {
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	table, err := d.db.Table(name)
	if err != nil {
		return storage.ResultSet{}, err
	}

	columns := []types.Column{
		{Name: "column", Type: types.CharType(64)},
		{Name: "type", Type: types.CharType(16)},
		{Name: "primary", Type: types.BoolType()},
		{Name: "nullable", Type: types.BoolType()},
	}
	layout := storage.NewLayout(columns)

	var data []byte
	for _, col := range table.Columns {
		row, err := layout.EncodeRow([]types.Value{
			types.NewCharValue(clamp(col.Name, 64), 64),
			types.NewCharValue(clamp(typeName(col.Type), 16), 16),
			types.NewBoolValue(col.IsPrimaryKey),
			types.NewBoolValue(col.AllowNull),
		})
		if err != nil {
			return storage.ResultSet{}, err
		}
		data = append(data, row...)
	}
	return storage.ResultSet{Columns: columns, Data: data}, nil
}

func (d *dispatcher) selectFrom(p *parser) (storage.ResultSet, error) {
	if err := p.expect("*"); err != nil {
		return storage.ResultSet{}, err
	}
	if err := p.expect("FROM"); err != nil {
		return storage.ResultSet{}, err
	}
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}

	return d.withTable(name, func(table *meta.Table, engine storage.Engine) (storage.ResultSet, error) {
		var rows *storage.Rows
		if p.accept("WHERE") {
			colIdx, value, comp, err := parsePredicate(p, table)
			if err != nil {
				return storage.ResultSet{}, err
			}
			rows, err = engine.Lookup(colIdx, value, comp)
			if err != nil {
				return storage.ResultSet{}, err
			}
		} else {
			rows, err = engine.FullScan()
			if err != nil {
				return storage.ResultSet{}, err
			}
		}
		return rows.ResultSet(), nil
	})
}

func (d *dispatcher) insertInto(p *parser) (storage.ResultSet, error) {
	if err := p.expect("INTO"); err != nil {
		return storage.ResultSet{}, err
	}
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	if err := p.expect("VALUES"); err != nil {
		return storage.ResultSet{}, err
	}

	return d.withTable(name, func(table *meta.Table, engine storage.Engine) (storage.ResultSet, error) {
		literals, err := parseValueList(p)
		if err != nil {
			return storage.ResultSet{}, err
		}
		if len(literals) != len(table.Columns) {
			return storage.ResultSet{}, fmt.Errorf("table %q has %d columns, got %d values",
				table.Name, len(table.Columns), len(literals))
		}

		values := make([]types.Value, len(literals))
		for i, lit := range literals {
			value, err := parseLiteral(lit, table.Columns[i])
			if err != nil {
				return storage.ResultSet{}, err
			}
			values[i] = value
		}

		layout := storage.NewLayout(table.Columns)
		row, err := layout.EncodeRow(values)
		if err != nil {
			return storage.ResultSet{}, err
		}
		if _, err := engine.InsertRow(row); err != nil {
			return storage.ResultSet{}, err
		}
		return affectedResult(1)
	})
}

func (d *dispatcher) deleteFrom(p *parser) (storage.ResultSet, error) {
	if err := p.expect("FROM"); err != nil {
		return storage.ResultSet{}, err
	}
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	if err := p.expect("WHERE"); err != nil {
		return storage.ResultSet{}, err
	}

	return d.withTable(name, func(table *meta.Table, engine storage.Engine) (storage.ResultSet, error) {
		colIdx, value, comp, err := parsePredicate(p, table)
		if err != nil {
			return storage.ResultSet{}, err
		}
		n, err := engine.Delete(colIdx, value, comp)
		if err != nil {
			return storage.ResultSet{}, err
		}
		return affectedResult(n)
	})
}

func (d *dispatcher) update(p *parser) (storage.ResultSet, error) {
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	if err := p.expect("SET"); err != nil {
		return storage.ResultSet{}, err
	}

	return d.withTable(name, func(table *meta.Table, engine storage.Engine) (storage.ResultSet, error) {
		var updates []storage.ColumnUpdate
		for {
			colName, err := p.ident()
			if err != nil {
				return storage.ResultSet{}, err
			}
			if err := p.expect("="); err != nil {
				return storage.ResultSet{}, err
			}
			lit, err := p.ident()
			if err != nil {
				return storage.ResultSet{}, err
			}

			colIdx, err := table.ColumnIndex(colName)
			if err != nil {
				return storage.ResultSet{}, err
			}
			value, err := parseLiteral(lit, table.Columns[colIdx])
			if err != nil {
				return storage.ResultSet{}, err
			}
			if value == nil {
				return storage.ResultSet{}, fmt.Errorf("column %q: update to NULL not supported", colName)
			}
			encoded, err := types.Encode(value)
			if err != nil {
				return storage.ResultSet{}, err
			}
			updates = append(updates, storage.ColumnUpdate{ColumnIndex: colIdx, Value: encoded})

			if !p.accept(",") {
				break
			}
		}

		if err := p.expect("WHERE"); err != nil {
			return storage.ResultSet{}, err
		}
		colIdx, value, comp, err := parsePredicate(p, table)
		if err != nil {
			return storage.ResultSet{}, err
		}

		n, err := engine.Modify(colIdx, value, comp, updates)
		if err != nil {
			return storage.ResultSet{}, err
		}
		return affectedResult(n)
	})
}

func (d *dispatcher) maintenance(p *parser, op func(storage.Engine) error) (storage.ResultSet, error) {
	name, err := p.ident()
	if err != nil {
		return storage.ResultSet{}, err
	}
	return d.withTable(name, func(table *meta.Table, engine storage.Engine) (storage.ResultSet, error) {
		if err := op(engine); err != nil {
			return storage.ResultSet{}, err
		}
		return storage.ResultSet{}, nil
	})
}

// parsePredicate consumes "<column> <op> <literal>" and returns the
// column index, the encoded constraint value and the comparison.
func parsePredicate(p *parser, table *meta.Table) (int, []byte, types.CompType, error) {
	colName, err := p.ident()
	if err != nil {
		return 0, nil, 0, err
	}
	opToken, err := p.ident()
	if err != nil {
		return 0, nil, 0, err
	}
	lit, err := p.ident()
	if err != nil {
		return 0, nil, 0, err
	}

	colIdx, err := table.ColumnIndex(colName)
	if err != nil {
		return 0, nil, 0, err
	}
	comp, err := compFor(opToken)
	if err != nil {
		return 0, nil, 0, err
	}
	value, err := parseLiteral(lit, table.Columns[colIdx])
	if err != nil {
		return 0, nil, 0, err
	}
	if value == nil {
		return 0, nil, 0, fmt.Errorf("column %q: NULL is not comparable", colName)
	}
	encoded, err := types.Encode(value)
	if err != nil {
		return 0, nil, 0, err
	}
	return colIdx, encoded, comp, nil
}

// parseColumnDefs consumes "( name type [PRIMARY KEY] [NULL] , ... )".
func parseColumnDefs(p *parser) ([]types.Column, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}

	var columns []types.Column
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		colType, err := parseType(p)
		if err != nil {
			return nil, err
		}

		col := types.Column{Name: name, Type: colType}
		for {
			if p.accept("PRIMARY") {
				if err := p.expect("KEY"); err != nil {
					return nil, err
				}
				col.IsPrimaryKey = true
				continue
			}
			if p.accept("NULL") {
				col.AllowNull = true
				continue
			}
			break
		}
		columns = append(columns, col)

		if p.accept(",") {
			continue
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return columns, nil
	}
}

func parseType(p *parser) (types.SqlType, error) {
	name, err := p.ident()
	if err != nil {
		return types.SqlType{}, err
	}
	switch strings.ToUpper(name) {
	case "INT":
		return types.IntType(), nil
	case "BOOL":
		return types.BoolType(), nil
	case "CHAR":
		if err := p.expect("("); err != nil {
			return types.SqlType{}, err
		}
		lenToken, err := p.ident()
		if err != nil {
			return types.SqlType{}, err
		}
		n, err := strconv.ParseUint(lenToken, 10, 8)
		if err != nil {
			return types.SqlType{}, fmt.Errorf("char length %q: %w", lenToken, err)
		}
		if err := p.expect(")"); err != nil {
			return types.SqlType{}, err
		}
		return types.CharType(uint8(n)), nil
	default:
		return types.SqlType{}, fmt.Errorf("unknown type %q", name)
	}
}

// parseValueList consumes "( lit , lit , ... )".
func parseValueList(p *parser) ([]string, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var literals []string
	for {
		lit, err := p.ident()
		if err != nil {
			return nil, err
		}
		literals = append(literals, lit)
		if p.accept(",") {
			continue
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return literals, nil
	}
}

// parseLiteral converts one literal token to a typed value for the given
// column. The token "null" (any case) is the NULL literal.
func parseLiteral(token string, col types.Column) (types.Value, error) {
	if strings.EqualFold(token, "null") {
		return nil, nil
	}

	switch col.Type.ID {
	case types.IntID:
		n, err := strconv.ParseInt(token, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("column %q: integer literal %q: %w", col.Name, token, err)
		}
		return types.NewIntValue(int32(n)), nil
	case types.BoolID:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return nil, fmt.Errorf("column %q: boolean literal %q: %w", col.Name, token, err)
		}
		return types.NewBoolValue(b), nil
	case types.CharID:
		s := strings.Trim(token, "'")
		if len(s) > int(col.Type.Len) {
			return nil, fmt.Errorf("column %q: string literal %d bytes exceeds char(%d)",
				col.Name, len(s), col.Type.Len)
		}
		return types.NewCharValue(s, col.Type.Len), nil
	default:
		return nil, fmt.Errorf("column %q: %w", col.Name, types.ErrInvalidType)
	}
}

func compFor(token string) (types.CompType, error) {
	switch token {
	case "=":
		return types.Equals, nil
	case "<":
		return types.LessThan, nil
	case ">":
		return types.GreaterThan, nil
	case "<=":
		return types.LessThanOrEqual, nil
	case ">=":
		return types.GreaterThanOrEqual, nil
	case "!=":
		return types.NotEqual, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", token)
	}
}

func affectedResult(n uint64) (storage.ResultSet, error) {
	columns := []types.Column{{Name: "affected", Type: types.IntType()}}
	layout := storage.NewLayout(columns)
	row, err := layout.EncodeRow([]types.Value{types.NewIntValue(int32(n))})
	if err != nil {
		return storage.ResultSet{}, err
	}
	return storage.ResultSet{Columns: columns, Data: row}, nil
}

func typeName(t types.SqlType) string {
	switch t.ID {
	case types.IntID:
		return "int"
	case types.BoolID:
		return "bool"
	case types.CharID:
		return fmt.Sprintf("char(%d)", t.Len)
	default:
		return "unknown"
	}
}

func clamp(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// parser walks a token list. Keywords match case-insensitively; quoted
// string tokens keep their quotes so literals survive keyword folding.
type parser struct {
	tokens []string
	pos    int
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) next() string {
	token := p.tokens[p.pos]
	p.pos++
	return token
}

func (p *parser) ident() (string, error) {
	if p.done() {
		return "", errors.New("unexpected end of statement")
	}
	return p.next(), nil
}

func (p *parser) expect(token string) error {
	if p.done() {
		return fmt.Errorf("expected %q, got end of statement", token)
	}
	if !strings.EqualFold(p.tokens[p.pos], token) {
		return fmt.Errorf("expected %q, got %q", token, p.tokens[p.pos])
	}
	p.pos++
	return nil
}

func (p *parser) accept(token string) bool {
	if p.done() || !strings.EqualFold(p.tokens[p.pos], token) {
		return false
	}
	p.pos++
	return true
}

// tokenize splits a statement into tokens: punctuation and comparison
// operators stand alone, single-quoted strings are one token with the
// quotes kept.
func tokenize(s string) []string {
	var tokens []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';':
			i++
		case c == '\'':
			j := i + 1
			for j < len(s) && s[j] != '\'' {
				j++
			}
			if j < len(s) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		case c == '(' || c == ')' || c == ',' || c == '*':
			tokens = append(tokens, string(c))
			i++
		case c == '<' || c == '>' || c == '!' || c == '=':
			if i+1 < len(s) && s[i+1] == '=' {
				tokens = append(tokens, s[i:i+2])
				i += 2
			} else {
				tokens = append(tokens, string(c))
				i++
			}
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t\n\r;(),*<>!='", rune(s[j])) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		}
	}
	return tokens
}
