// Package postgres is the Postgres client behind checkpoints and the API
// request log.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

// Client wraps a Postgres connection with retried writes
type Client struct {
	db     *sql.DB
	policy *retry.Policy
	logger logging.Logger
}

// Option represents an option for configuring the client
type Option func(*Client)

// WithRetryPolicy sets the policy used for writes
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new PostgreSQL client
func New(ctx context.Context, connectionString string, options ...Option) (*Client, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return NewWithDB(db, options...), nil
}

// NewWithDB creates a new PostgreSQL client with an existing database connection
func NewWithDB(db *sql.DB, options ...Option) *Client {
	client := &Client{
		db:     db,
		policy: retry.FixedPolicy(2, 2*time.Second),
		logger: logging.New(),
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// DB returns the underlying connection pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Exec runs a statement, retrying per the client policy
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	executor := retry.NewExecutor(c.policy, retry.WithLogger(c.logger))
	return executor.Execute(ctx, func() error {
		if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
			c.logger.Warn(ctx, "Postgres statement failed", map[string]interface{}{"error": err.Error()})
			return err
		}
		return nil
	})
}

// Table returns a reference to a table
func (c *Client) Table(name string) *Table {
	return &Table{client: c, name: name}
}

// Transaction executes fn in a transaction
func (c *Client) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if err := fn(sqlTx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed with error: %v, rollback failed with error: %w", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Table is a reference to one table
type Table struct {
	client *Client
	name   string

	mu    sync.Mutex
	ready bool
}

// Name returns the quoted table name
func (t *Table) Name() string {
	return pq.QuoteIdentifier(t.name)
}

// Ensure creates the table with the given column definitions if missing
func (t *Table) Ensure(ctx context.Context, columns ...string) error {
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name(), strings.Join(columns, ", ")) // #nosec G201
	if err := t.client.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.name, err)
	}
	return nil
}

// EnsureReady runs Ensure until it first succeeds; later calls are free.
// A failed attempt is retried by the next call.
func (t *Table) EnsureReady(ctx context.Context, columns ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		return nil
	}
	if err := t.Ensure(ctx, columns...); err != nil {
		return err
	}
	t.ready = true
	return nil
}

// Insert writes one row. Columns are inserted in name order.
func (t *Table) Insert(ctx context.Context, data map[string]interface{}) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	columns := make([]string, 0, len(keys))
	placeholders := make([]string, 0, len(keys))
	values := make([]interface{}, 0, len(keys))
	for i, k := range keys {
		columns = append(columns, pq.QuoteIdentifier(k))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		values = append(values, data[k])
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", // #nosec G201
		t.Name(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	if err := t.client.Exec(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", t.name, err)
	}
	return nil
}

// Delete removes the rows matching every filter column
func (t *Table) Delete(ctx context.Context, filter map[string]interface{}) (int64, error) {
	where, values := whereClause(filter)
	query := fmt.Sprintf("DELETE FROM %s%s", t.Name(), where) // #nosec G201

	var affected int64
	executor := retry.NewExecutor(t.client.policy, retry.WithLogger(t.client.logger))
	err := executor.Execute(ctx, func() error {
		result, err := t.client.db.ExecContext(ctx, query, values...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	return affected, nil
}

// QueryRow selects column from the newest row matching filter, ordered by
// orderBy descending
func (t *Table) QueryRow(ctx context.Context, column string, filter map[string]interface{}, orderBy string) *sql.Row {
	where, values := whereClause(filter)
	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s DESC LIMIT 1", // #nosec G201
		pq.QuoteIdentifier(column),
		t.Name(),
		where,
		pq.QuoteIdentifier(orderBy),
	)
	return t.client.db.QueryRowContext(ctx, query, values...)
}

func whereClause(filter map[string]interface{}) (string, []interface{}) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	values := make([]interface{}, 0, len(keys))
	for i, k := range keys {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), i+1))
		values = append(values, filter[k])
	}
	return " WHERE " + strings.Join(conditions, " AND "), values
}
