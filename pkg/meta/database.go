package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rnbguy/uosql-server/pkg/types"
)

// Database is a named registry of tables. It owns the directory under
// which its table metadata and data files live: <base>/<database>/.
type Database struct {
	Name string

	dir    string
	mu     sync.RWMutex
	tables map[string]*Table
}

// CreateDatabase makes the database directory under baseDir. It fails if
// the database already exists.
func CreateDatabase(baseDir, name string) (*Database, error) {
	dir := filepath.Join(baseDir, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("database %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating database %q: %w", name, err)
	}
	return &Database{Name: name, dir: dir, tables: make(map[string]*Table)}, nil
}

// OpenDatabase loads an existing database directory, reading every table
// metadata file it contains.
func OpenDatabase(baseDir, name string) (*Database, error) {
	dir := filepath.Join(baseDir, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("database %q: %w", name, ErrLoadDatabase)
	}

	db := &Database{Name: name, dir: dir, tables: make(map[string]*Table)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaExtension) {
			continue
		}
		tableName := strings.TrimSuffix(entry.Name(), metaExtension)
		table, err := LoadTable(dir, tableName)
		if err != nil {
			return nil, fmt.Errorf("database %q, table %q: %w", name, tableName, err)
		}
		db.tables[table.Name] = table
	}
	return db, nil
}

// Dir returns the directory holding this database's files.
func (db *Database) Dir() string {
	return db.dir
}

// CreateTable validates the schema, persists the metadata file and
// registers the table.
func (db *Database) CreateTable(name string, columns []types.Column, engine EngineID) (*Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tables[name]; ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrTableExists)
	}

	table, err := NewTable(name, columns, engine)
	if err != nil {
		return nil, err
	}
	if err := SaveTable(db.dir, table); err != nil {
		return nil, err
	}

	db.tables[name] = table
	return table, nil
}

// Table returns the named table's schema.
func (db *Database) Table(name string) (*Table, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	table, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrNoSuchTable)
	}
	return table, nil
}

// TableNames returns the registered table names in sorted order.
func (db *Database) TableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DropTable removes a table's registration and deletes its files.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.tables[name]; !ok {
		return fmt.Errorf("table %q: %w", name, ErrNoSuchTable)
	}
	delete(db.tables, name)

	if err := os.Remove(tableMetaPath(db.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	// the data file may never have been materialized
	if err := os.Remove(filepath.Join(db.dir, name+".dat")); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AlterTable applies fn to the named table's schema under the registry
// lock and persists the result.
func (db *Database) AlterTable(name string, fn func(*Table) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	table, ok := db.tables[name]
	if !ok {
		return fmt.Errorf("table %q: %w", name, ErrNoSuchTable)
	}
	if err := fn(table); err != nil {
		return err
	}
	return SaveTable(db.dir, table)
}
