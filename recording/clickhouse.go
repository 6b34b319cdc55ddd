package recording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/tebeka/atexit"
)

// ClickHouseRecorder streams recorded tables to a ClickHouse server. It is
// meant for runs that produce more data than a local SQLite file can
// comfortably hold. Unlike the SQLite writer, it is safe to use from
// multiple goroutines.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*table
	entryCount int
}

var _ Recorder = (*ClickHouseRecorder)(nil)

// NewClickHouse creates a Recorder that writes to a ClickHouse server over
// the native protocol. A batchSize of 0 selects the default of 100000
// entries.
func NewClickHouse(
	host string,
	port int,
	database string,
	username string,
	password string,
	batchSize int,
) Recorder {
	if batchSize == 0 {
		batchSize = 100000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	recorder := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() {
		recorder.Flush()
	})

	return recorder
}

// CreateTable creates a MergeTree table whose columns mirror the fields of
// sampleEntry. Fields tagged `kestrel_data:"index"` or `kestrel_data:"unique"`
// form the ordering key; without tags the first field orders the table.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	types := reflect.TypeOf(sampleEntry)

	columns := make([]string, 0, types.NumField())
	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)
		columns = append(columns, fmt.Sprintf("%s %s",
			field.Name, clickHouseType(field.Type.Kind())))
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree()
		ORDER BY %s
	`, tableName, strings.Join(columns, ",\n\t\t\t"), orderingKey(types))

	err = r.conn.Exec(context.Background(), createSQL)
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{
		structType: types,
		entries:    []any{},
	}
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
		panic(fmt.Errorf("kind %s has no ClickHouse column type", kind))
	}
}

func orderingKey(types reflect.Type) string {
	keys := []string{}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		tag, ok := field.Tag.Lookup("kestrel_data")
		if ok && (tag == "index" || tag == "unique") {
			keys = append(keys, field.Name)
		}
	}

	if len(keys) == 0 {
		keys = append(keys, types.Field(0).Name)
	}

	if len(keys) == 1 {
		return keys[0]
	}

	return "(" + strings.Join(keys, ", ") + ")"
}

// InsertData buffers one entry. The write to the server happens when the
// buffered entry count reaches the batch size.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		r.mu.Unlock()
		panic(fmt.Sprintf("entry for table %s must be of type %s",
			tableName, table.structType))
	}

	table.entries = append(table.entries, entry)
	r.entryCount++

	if r.entryCount >= r.batchSize {
		r.mu.Unlock()
		r.Flush()

		return
	}

	r.mu.Unlock()
}

// ListTables returns the names of all created tables.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

// Flush sends all buffered entries to the server as one batch per table.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		r.sendBatch(ctx, tableName, table)
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) sendBatch(
	ctx context.Context,
	tableName string,
	table *table,
) {
	batch, err := r.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s", tableName))
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, entry := range table.entries {
		ptr := reflect.New(table.structType)
		ptr.Elem().Set(reflect.ValueOf(entry))

		err = batch.AppendStruct(ptr.Interface())
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	table.entries = table.entries[:0]
}

// Close flushes all pending entries and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.Flush()
	return r.conn.Close()
}
