// Package datarecording stores simulation records in a database. Each table
// holds one flat struct type; every exported field becomes a column.
package datarecording

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables created so far.
	ListTables() []string

	// Flush writes all the buffered entries to the database.
	Flush()

	// Close flushes and releases the database.
	Close() error
}

// ErrInvalidEntry is returned for entries that cannot be stored as a row.
var ErrInvalidEntry = errors.New("datarecording: invalid entry")

const clickHouseScheme = "clickhouse://"

// Open creates a recorder for a target. A target starting with
// clickhouse:// is a ClickHouse DSN; anything else is the path of an SQLite
// file, without the .sqlite3 suffix.
func Open(target string) (DataRecorder, error) {
	if strings.HasPrefix(target, clickHouseScheme) {
		return NewClickHouse(target)
	}

	return NewSQLite(target)
}

type table struct {
	structType reflect.Type
	columns    []column
	entries    []any
}

type column struct {
	name string
	kind reflect.Kind
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func newTable(sampleEntry any) (*table, error) {
	if !structs.IsStruct(sampleEntry) {
		return nil, fmt.Errorf("%w: %T is not a struct", ErrInvalidEntry, sampleEntry)
	}

	t := &table{structType: reflect.TypeOf(sampleEntry)}

	for _, f := range structs.Fields(sampleEntry) {
		if !f.IsExported() {
			continue
		}

		if !isAllowedKind(f.Kind()) {
			return nil, fmt.Errorf("%w: field %s has kind %s",
				ErrInvalidEntry, f.Name(), f.Kind())
		}

		t.columns = append(t.columns, column{name: f.Name(), kind: f.Kind()})
	}

	if len(t.columns) == 0 {
		return nil, fmt.Errorf("%w: %T has no exported fields",
			ErrInvalidEntry, sampleEntry)
	}

	return t, nil
}

func (t *table) mustAccept(tableName string, entry any) {
	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Sprintf("table %s stores %s, got %T",
			tableName, t.structType, entry))
	}
}

// quotedColumns returns the column names as identifiers quoted with quote,
// so that fields named after SQL keywords stay valid.
func (t *table) quotedColumns(quote string) []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = quoteIdent(c.name, quote)
	}

	return names
}

func quoteIdent(name, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

func rowValues(entry any) []any {
	return structs.Values(entry)
}
