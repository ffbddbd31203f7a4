// Package sqlite provides a SQLite-backed RowStore. Each table is kept as
// ordered JSON-encoded rows so the positional semantics match a spreadsheet.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/rollcall/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists attendance tables in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite row store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Appends read the last index and write the next one; a single
	// connection keeps them strictly ordered.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// EnsureTables registers tables that are not known yet.
func (s *Store) EnsureTables(ctx context.Context, tables []storage.Table) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := s.sqlDB.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO sheet_tables (name, created_at) VALUES (?, ?)`,
			table.Name,
			toMillis(s.clock()),
		); err != nil {
			return fmt.Errorf("ensure table %s: %w", table.Name, err)
		}
	}
	return nil
}

// ListRows returns every row of table in index order.
func (s *Store) ListRows(ctx context.Context, table string) ([]storage.Row, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if err := s.requireTable(ctx, table); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT cells FROM sheet_rows WHERE table_name = ? ORDER BY row_index ASC`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s rows: %w", table, err)
	}
	defer rows.Close()

	var result []storage.Row
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		row, err := decodeCells(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return result, nil
}

// AppendRows writes rows after the current last row in one transaction.
func (s *Store) AppendRows(ctx context.Context, table string, rows []storage.Row) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updatedAt := toMillis(s.clock())
	for _, row := range rows {
		cells, err := encodeCells(row)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", table, err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO sheet_rows (table_name, row_index, cells, updated_at)
			 SELECT ?, COALESCE(MAX(row_index), -1) + 1, ?, ?
			 FROM sheet_rows WHERE table_name = ?`,
			table,
			cells,
			updatedAt,
			table,
		); err != nil {
			if isRowIndexConflict(err) {
				return fmt.Errorf("append %s rows: concurrent append: %w", table, err)
			}
			return fmt.Errorf("append %s rows: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// UpdateRow replaces the row at index.
func (s *Store) UpdateRow(ctx context.Context, table string, index int, row storage.Row) error {
	cells, err := encodeCells(row)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}
	return s.setCells(ctx, table, index, cells)
}

// ClearRow blanks the row at index without shifting later rows.
func (s *Store) ClearRow(ctx context.Context, table string, index int) error {
	return s.setCells(ctx, table, index, "[]")
}

func (s *Store) setCells(ctx context.Context, table string, index int, cells string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sheet_rows SET cells = ?, updated_at = ? WHERE table_name = ? AND row_index = ?`,
		cells,
		toMillis(s.clock()),
		table,
		index,
	)
	if err != nil {
		return fmt.Errorf("write %s row %d: %w", table, index, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %s row %d: %w", table, index, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s[%d]", storage.ErrRowOutOfRange, table, index)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) requireTable(ctx context.Context, table string) error {
	var name string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT name FROM sheet_tables WHERE name = ?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", storage.ErrUnknownTable, table)
	}
	if err != nil {
		return fmt.Errorf("lookup table %s: %w", table, err)
	}
	return nil
}

func encodeCells(row storage.Row) (string, error) {
	if row == nil {
		row = storage.Row{}
	}
	data, err := json.Marshal([]string(row))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeCells(raw string) (storage.Row, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	return storage.Row(cells), nil
}

func isRowIndexConflict(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

var _ storage.RowStore = (*Store)(nil)
var _ storage.TableEnsurer = (*Store)(nil)
