package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// clickHouseWriter buffers entries and sends them to ClickHouse in batches.
type clickHouseWriter struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	exec      *execRecorder
	tables    map[string]*table
	batchSize int

	entryCount int
	closed     bool
}

// NewClickHouse connects to the ClickHouse server described by dsn, for
// example clickhouse://localhost:9000/otsim?username=default.
func NewClickHouse(dsn string) (DataRecorder, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid ClickHouse DSN: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	w := &clickHouseWriter{
		conn:      conn,
		tables:    make(map[string]*table),
		batchSize: defaultBatchSize,
	}

	w.exec = newExecRecorder(w)
	w.exec.Start()

	atexit.Register(func() { w.Flush() })

	return w, nil
}

func clickHouseType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int64:
		return "Int64"
	case reflect.Int8:
		return "Int8"
	case reflect.Int16:
		return "Int16"
	case reflect.Int32:
		return "Int32"
	case reflect.Uint, reflect.Uint64:
		return "UInt64"
	case reflect.Uint8:
		return "UInt8"
	case reflect.Uint16:
		return "UInt16"
	case reflect.Uint32:
		return "UInt32"
	case reflect.Float32:
		return "Float32"
	case reflect.Float64:
		return "Float64"
	case reflect.String:
		return "String"
	default:
		panic(fmt.Sprintf("kind %s has no ClickHouse type", kind))
	}
}

func clickHouseCreateTableSQL(tableName string, t *table) string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = quoteIdent(c.name, "`") + " " + clickHouseType(c.kind)
	}

	return "CREATE TABLE IF NOT EXISTS " + tableName + " (" +
		strings.Join(cols, ", ") +
		") ENGINE = MergeTree() ORDER BY tuple()"
}

// clickHouseRow converts the platform-sized integers to the fixed-width
// types the driver expects for Int64 and UInt64 columns.
func clickHouseRow(entry any) []any {
	values := rowValues(entry)

	for i, v := range values {
		switch v := v.(type) {
		case int:
			values[i] = int64(v)
		case uint:
			values[i] = uint64(v)
		}
	}

	return values
}

func (w *clickHouseWriter) CreateTable(tableName string, sampleEntry any) {
	t, err := newTable(sampleEntry)
	if err != nil {
		panic(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	err = w.conn.Exec(context.Background(), clickHouseCreateTableSQL(tableName, t))
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	w.tables[tableName] = t
}

func (w *clickHouseWriter) InsertData(tableName string, entry any) {
	w.mu.Lock()

	t, exists := w.tables[tableName]
	if !exists {
		w.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.mustAccept(tableName, entry)
	t.entries = append(t.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.mu.Unlock()

	if full {
		w.Flush()
	}
}

func (w *clickHouseWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (w *clickHouseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entryCount == 0 || w.closed {
		return
	}

	ctx := context.Background()

	for name, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		w.flushTable(ctx, name, t)
	}

	w.entryCount = 0
}

func (w *clickHouseWriter) flushTable(ctx context.Context, name string, t *table) {
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO "+name)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", name, err))
	}

	for _, entry := range t.entries {
		if err := batch.Append(clickHouseRow(entry)...); err != nil {
			panic(fmt.Errorf("failed to append to %s: %w", name, err))
		}
	}

	if err := batch.Send(); err != nil {
		panic(fmt.Errorf("failed to send batch for %s: %w", name, err))
	}

	t.entries = nil
}

func (w *clickHouseWriter) Close() error {
	if w.closed {
		return nil
	}

	w.exec.End()
	w.Flush()
	w.closed = true

	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
