package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cashbook/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

// dateLayout is a fixed-width UTC layout so that lexicographic order in
// SQLite equals chronological order.
const dateLayout = "2006-01-02 15:04:05.000"

// SQLiteRepository is the ledger store. Every mutation runs the write
// and the full balance recalculation inside a single transaction, so
// no two recalculation passes can interleave.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && !strings.HasPrefix(dbPath, ":") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection keeps SQLite writers serialized and makes
	// in-memory databases behave like file-backed ones.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListTransactions returns every ledger entry ordered most recent
// first (date desc, id desc on equal dates).
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount_cents, type, date, balance_cents
		 FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// GetTransaction returns a single entry by id, or ErrNotFound.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, amount_cents, type, date, balance_cents
		 FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// CreateTransaction inserts a new entry and recalculates every stored
// balance. The returned record carries its final balance.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (description, amount_cents, type, date, balance_cents)
			 VALUES (?, ?, ?, ?, 0)`,
			d.Description, d.Amount.Cents, string(d.Type), formatDate(d.Date))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return r.recalculateBalances(ctx, tx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := r.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"description", created.Description,
		"amount_cents", created.Amount.Cents,
		"type", string(created.Type))

	return created, nil
}

// UpdateTransaction overwrites the mutable fields of an existing entry
// and recalculates all balances. Returns ErrNotFound for unknown ids.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, d core.Draft) (core.Transaction, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET description = ?, amount_cents = ?, type = ?, date = ?
			 WHERE id = ?`,
			d.Description, d.Amount.Cents, string(d.Type), formatDate(d.Date), id)
		if err != nil {
			return fmt.Errorf("update transaction %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return r.recalculateBalances(ctx, tx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := r.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "amount_cents", updated.Amount.Cents)

	return updated, nil
}

// DeleteTransaction removes an entry and recalculates the remaining
// balances. Returns ErrNotFound for unknown ids.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete transaction %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return r.recalculateBalances(ctx, tx)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// VerifyBalances re-derives every balance from scratch and rewrites
// rows whose stored balance drifted from the derived one. Returns the
// number of rows fixed. Used by the consistency worker.
func (r *SQLiteRepository) VerifyBalances(ctx context.Context) (int, error) {
	fixed := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stored, err := loadOrdered(ctx, tx)
		if err != nil {
			return err
		}
		derived := core.WithBalances(stored)

		byID := make(map[int64]core.Money, len(stored))
		for _, s := range stored {
			byID[s.ID] = s.Balance
		}
		for _, d := range derived {
			if byID[d.ID] == d.Balance {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE transactions SET balance_cents = ? WHERE id = ?`,
				d.Balance.Cents, d.ID); err != nil {
				return fmt.Errorf("fix balance for %d: %w", d.ID, err)
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if fixed > 0 {
		slog.WarnContext(ctx, "Balance drift repaired", "rows_fixed", fixed)
	}
	return fixed, nil
}

// recalculateBalances rewrites every row's balance from the (date, id)
// ordered fold. O(n) per mutation; the working set of a personal
// ledger is small, and a backdated edit shifts every later balance
// anyway.
func (r *SQLiteRepository) recalculateBalances(ctx context.Context, tx *sql.Tx) error {
	txs, err := loadOrdered(ctx, tx)
	if err != nil {
		return err
	}
	for _, t := range core.WithBalances(txs) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET balance_cents = ? WHERE id = ?`,
			t.Balance.Cents, t.ID); err != nil {
			return fmt.Errorf("write balance for %d: %w", t.ID, err)
		}
	}
	return nil
}

func loadOrdered(ctx context.Context, tx *sql.Tx) ([]core.Transaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, description, amount_cents, type, date, balance_cents
		 FROM transactions ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		amount  int64
		balance int64
		typeStr string
		dateStr string
	)
	if err := row.Scan(&t.ID, &t.Description, &amount, &typeStr, &dateStr, &balance); err != nil {
		return core.Transaction{}, err
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	t.Amount = core.Money{Cents: amount}
	t.Balance = core.Money{Cents: balance}
	t.Type = core.TransactionType(typeStr)
	t.Date = date
	return t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
