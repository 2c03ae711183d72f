package sqlanalyst

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

// DefaultRowLimit caps the rows returned to the model
const DefaultRowLimit = 1000

// Warehouse executes analyst SQL on a database/sql connection
type Warehouse struct {
	db       *sql.DB
	rowLimit int
	logger   logging.Logger
}

// WarehouseOption configures a Warehouse
type WarehouseOption func(*Warehouse)

// WithRowLimit caps the number of rows read
func WithRowLimit(limit int) WarehouseOption {
	return func(w *Warehouse) {
		if limit > 0 {
			w.rowLimit = limit
		}
	}
}

// WithWarehouseLogger sets the logger
func WithWarehouseLogger(logger logging.Logger) WarehouseOption {
	return func(w *Warehouse) {
		w.logger = logger
	}
}

// NewWarehouse wraps an open database
func NewWarehouse(db *sql.DB, opts ...WarehouseOption) *Warehouse {
	w := &Warehouse{db: db, rowLimit: DefaultRowLimit, logger: logging.New()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open connects to the warehouse named by dsn. postgres:// and
// postgresql:// URLs use lib/pq; mysql:// URLs use the MySQL driver with the
// scheme stripped and parseTime enabled.
func Open(dsn string) (*sql.DB, error) {
	driver, source, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s warehouse: %w", driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func driverFor(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "mysql://"):
		source = strings.TrimPrefix(dsn, "mysql://")
		if !strings.Contains(source, "parseTime") {
			if strings.Contains(source, "?") {
				source += "&parseTime=true"
			} else {
				source += "?parseTime=true"
			}
		}
		return "mysql", source, nil
	}
	return "", "", fmt.Errorf("unsupported warehouse dsn scheme")
}

// Query runs statement and returns the rows as a JSON array of objects with
// keys in column order. Dates are ISO formatted and byte values, which is how
// drivers return decimals, become strings.
func (w *Warehouse) Query(ctx context.Context, statement string) (string, error) {
	rows, err := w.db.QueryContext(ctx, statement)
	if err != nil {
		return "", fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		if keys[i], err = json.Marshal(c); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	count := 0
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if count == w.rowLimit {
			w.logger.Warn(ctx, "Warehouse result truncated", map[string]interface{}{"row_limit": w.rowLimit})
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		if count > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i := range columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			v, err := json.Marshal(normalize(values[i]))
			if err != nil {
				return "", fmt.Errorf("failed to encode column %s: %w", columns[i], err)
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read rows: %w", err)
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	}
	return v
}
