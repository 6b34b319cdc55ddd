// Package recording stores structured observation data in SQLite or
// ClickHouse databases. A Recorder buffers rows in memory and writes them in
// large batches so that instrumented kernels spend almost no time on I/O.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// Recorder is a backend that can record and store data.
type Recorder interface {
	// CreateTable creates a new table that stores entries shaped like
	// sampleEntry, which must be a flat struct of scalar fields. Fields
	// tagged `kestrel_data:"index"` or `kestrel_data:"unique"` get a plain
	// or unique index on the new table.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers one entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all buffered entries to the database.
	Flush()

	// Close flushes and releases the database.
	Close() error
}

// New creates a Recorder backed by a new SQLite database. The path is the
// file name without the ".sqlite3" suffix. If path is empty, a unique name
// is generated.
func New(path string) Recorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a Recorder that writes to the given database.
func NewWithDB(db *sql.DB) Recorder {
	w := &sqliteWriter{
		DB:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter writes data into an SQLite database.
type sqliteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

var _ Recorder = (*sqliteWriter)(nil)

func (t *sqliteWriter) init() {
	if t.dbName == "" {
		t.dbName = "kestrel_recording_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

func isAllowedFieldKind(kind reflect.Kind) bool {
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

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		fieldKind := field.Type.Kind()
		if !isAllowedFieldKind(fieldKind) {
			return fmt.Errorf("field %s of kind %s cannot be recorded",
				field.Name, fieldKind)
		}
	}

	return nil
}

func structFieldNames(entry any) []string {
	types := reflect.TypeOf(entry)

	names := make([]string, 0, types.NumField())
	for i := 0; i < types.NumField(); i++ {
		names = append(names, types.Field(i).Name)
	}

	return names
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	fields := strings.Join(structFieldNames(sampleEntry), ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.createIndices(tableName, sampleEntry)

	tableInfo := &table{
		structType: reflect.TypeOf(sampleEntry),
		entries:    []any{},
	}
	t.tables[tableName] = tableInfo
}

func (t *sqliteWriter) createIndices(tableName string, sampleEntry any) {
	types := reflect.TypeOf(sampleEntry)

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		tag, ok := field.Tag.Lookup("kestrel_data")
		if !ok {
			continue
		}

		switch tag {
		case "index":
			t.mustExecute(fmt.Sprintf("CREATE INDEX %s_%s ON %s (%s);",
				tableName, field.Name, tableName, field.Name))
		case "unique":
			t.mustExecute(fmt.Sprintf(
				"CREATE UNIQUE INDEX %s_%s ON %s (%s);",
				tableName, field.Name, tableName, field.Name))
		default:
			panic(fmt.Errorf("unknown kestrel_data tag %q on field %s",
				tag, field.Name))
		}
	}
}

func (t *sqliteWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry for table %s must be of type %s",
			tableName, table.structType))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.Flush()
	}
}

func (t *sqliteWriter) ListTables() []string {
	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	return tables
}

func (t *sqliteWriter) Flush() {
	if t.entryCount == 0 {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		stmt := t.prepareInsert(tableName, table.entries[0])

		for _, entry := range table.entries {
			v := []any{}

			value := reflect.ValueOf(entry)
			for i := 0; i < value.NumField(); i++ {
				v = append(v, value.Field(i).Interface())
			}

			_, err := stmt.Exec(v...)
			if err != nil {
				panic(err)
			}
		}

		table.entries = nil

		stmt.Close()
	}

	t.entryCount = 0
}

// Close flushes all pending entries and closes the database.
func (t *sqliteWriter) Close() error {
	t.Flush()
	return t.DB.Close()
}

func (t *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}

func (t *sqliteWriter) prepareInsert(tableName string, sampleEntry any) *sql.Stmt {
	n := structFieldNames(sampleEntry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	entryToFill := "(" + strings.Join(n, ", ") + ")"
	sqlStr := "INSERT INTO " + tableName + " VALUES " + entryToFill

	stmt, err := t.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
