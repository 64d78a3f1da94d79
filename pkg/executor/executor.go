// Package executor runs generated SQL against the target database and returns a
// uniform tabular result.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/doubletabai/askdb/pkg/config"
	"github.com/doubletabai/askdb/pkg/errs"
)

const opExecute = "executor.Execute"

// Row maps column name to value. Values are int64, float64, string, bool, nil or
// RFC 3339 strings for timestamps. A repeated column name keeps the last value.
type Row map[string]any

type Result struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	// Truncated is set when more than MaxRows rows were available.
	Truncated bool `json:"truncated,omitempty"`
}

type Executor struct {
	DB     *sqlx.DB
	Driver string
	// ReadOnly rejects statements that write data, change schema or control transactions.
	// The engine enforces it as well; the keyword check only fails fast.
	ReadOnly bool
	// MaxRows caps the returned rows; 0 means unlimited.
	MaxRows int
	Timeout time.Duration
}

func New(db *sqlx.DB, driver string, readOnly bool, maxRows int, timeout time.Duration) *Executor {
	return &Executor{DB: db, Driver: driver, ReadOnly: readOnly, MaxRows: maxRows, Timeout: timeout}
}

// Open connects to the target database.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if err := config.EnsureSQLiteDir(driver, dsn); err != nil {
		return nil, fmt.Errorf("failed to create target database directory: %w", err)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}
	return db, nil
}

// Execute runs exactly one statement. The statement is never modified beyond trimming
// trailing semicolons, and engine error messages are passed through verbatim.
func (e *Executor) Execute(ctx context.Context, stmt string) (Result, error) {
	sqlText := stripTrailingSemicolons(stmt)
	if sqlText == "" {
		return Result{}, errs.New(errs.Validation, opExecute, "sql is required")
	}
	if hasStatementSeparator(sqlText) {
		return Result{}, &errs.Error{Kind: errs.Validation, Op: opExecute, SQL: stmt, Message: "only a single statement is allowed"}
	}
	if e.ReadOnly && !isReadOnly(sqlText) {
		return Result{}, &errs.Error{Kind: errs.Validation, Op: opExecute, SQL: stmt, Message: "only read-only statements are allowed"}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.query(ctx, sqlText)
	if err != nil {
		return Result{}, e.classify(ctx, stmt, err)
	}
	log.Debug().Str("sql", sqlText).Int("rows", len(res.Rows)).Bool("truncated", res.Truncated).Dur("took", time.Since(start)).Msg("Executed statement")
	return res, nil
}

func (e *Executor) query(ctx context.Context, sqlText string) (Result, error) {
	if e.ReadOnly {
		return e.queryReadOnly(ctx, sqlText)
	}
	return e.scan(e.DB.QueryContext(ctx, sqlText))
}

// queryReadOnly runs sqlText in a read-only transaction that is always rolled back.
// go-sqlite3 ignores TxOptions.ReadOnly, so SQLite connections are switched to
// query_only while the statement runs.
func (e *Executor) queryReadOnly(ctx context.Context, sqlText string) (Result, error) {
	conn, err := e.DB.Connx(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = conn.Close() }()

	if e.Driver == config.DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return Result{}, err
		}
		defer func() {
			if _, err := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); err != nil {
				log.Error().Err(err).Msg("Failed to reset query_only on target connection")
			}
		}()
	}

	tx, err := conn.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()
	return e.scan(tx.QueryContext(ctx, sqlText))
}

func (e *Executor) scan(rows *sql.Rows, err error) (Result, error) {
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	res := Result{Columns: columns, Rows: make([]Row, 0)}
	for rows.Next() {
		if e.MaxRows > 0 && len(res.Rows) == e.MaxRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case float32:
		return float64(typed)
	default:
		return typed
	}
}

func (e *Executor) classify(ctx context.Context, stmt string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.SQL(errs.Timeout, opExecute, stmt, err)
	}
	if isReadOnlyViolation(err) {
		return &errs.Error{Kind: errs.Validation, Op: opExecute, SQL: stmt, Message: "only read-only statements are allowed", Err: err}
	}
	if isSyntaxError(err) {
		return errs.SQL(errs.SQLSyntax, opExecute, stmt, err)
	}
	return errs.SQL(errs.SQLRuntime, opExecute, stmt, err)
}

// isReadOnlyViolation reports a write the engine refused under read-only mode.
func isReadOnlyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "25006"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrReadonly
	}
	return false
}

func isSyntaxError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42601"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		msg := liteErr.Error()
		return strings.Contains(msg, "syntax error") ||
			strings.Contains(msg, "incomplete input") ||
			strings.Contains(msg, "unrecognized token")
	}
	return false
}

// Tables lists the user tables of the target database.
func (e *Executor) Tables(ctx context.Context) ([]string, error) {
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	if e.Driver == config.DriverPostgres {
		query = "SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename"
	}
	tables := make([]string, 0)
	if err := e.DB.SelectContext(ctx, &tables, query); err != nil {
		return nil, errs.Wrap(errs.SQLRuntime, "executor.Tables", err)
	}
	return tables, nil
}

// Ping reports whether the target database is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	if err := e.DB.PingContext(ctx); err != nil {
		return errs.Wrap(errs.Storage, "executor.Ping", err)
	}
	return nil
}
