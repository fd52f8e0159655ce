// Package storage is the SQLite record store. It owns the four per-user
// record collections the forecast engine reads, plus the user table the
// auth layer needs. The engine consumes it through forecast.Source and
// never writes; all mutation happens through the CRUD methods here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"undertow/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// User is an account row. PasswordHash never leaves this layer except to
// the auth package for comparison.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
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

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES (?, ?)
		RETURNING id, email, password_hash, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE email = ?`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns every account. The forecast scanner walks this list on
// its schedule.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- recurring definitions ---

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, userID int64, def core.RecurringDefinition) (core.RecurringDefinition, error) {
	if err := def.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO recurring_definitions (user_id, name, amount_cents, kind, frequency, start_date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		userID, def.Name, def.Amount.Cents, string(def.Kind), string(def.Frequency),
		def.StartDate.Format(dateLayout),
	).Scan(&def.ID)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("create recurring definition: %w", err)
	}
	return def, nil
}

// ListRecurring implements forecast.Source.
func (r *SQLiteRepository) ListRecurring(ctx context.Context, userID int64) ([]core.RecurringDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, kind, frequency, start_date
		FROM recurring_definitions
		WHERE user_id = ?
		ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recurring definitions: %w", err)
	}
	defer rows.Close()

	var defs []core.RecurringDefinition
	for rows.Next() {
		def, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *SQLiteRepository) UpdateRecurring(ctx context.Context, userID int64, def core.RecurringDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_definitions
		SET name = ?, amount_cents = ?, kind = ?, frequency = ?, start_date = ?
		WHERE id = ? AND user_id = ?`,
		def.Name, def.Amount.Cents, string(def.Kind), string(def.Frequency),
		def.StartDate.Format(dateLayout), def.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("update recurring definition: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM recurring_definitions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring definition: %w", err)
	}
	return requireRow(res)
}

func scanRecurring(rows *sql.Rows) (core.RecurringDefinition, error) {
	var (
		def       core.RecurringDefinition
		kind      string
		frequency string
		startDate string
	)
	if err := rows.Scan(&def.ID, &def.Name, &def.Amount.Cents, &kind, &frequency, &startDate); err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("scan recurring definition: %w", err)
	}
	def.Kind = core.EventKind(kind)
	def.Frequency = core.Frequency(frequency)
	t, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
	if err != nil {
		return core.RecurringDefinition{}, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	def.StartDate = t
	return def, nil
}

// --- paycheck stream ---

func (r *SQLiteRepository) UpsertPaycheckStream(ctx context.Context, userID int64, ps core.PaycheckStream) error {
	if err := ps.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO paycheck_streams (user_id, amount_cents, frequency, start_date, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			frequency    = excluded.frequency,
			start_date   = excluded.start_date,
			updated_at   = CURRENT_TIMESTAMP`,
		userID, ps.Amount.Cents, string(ps.Frequency), ps.StartDate.Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert paycheck stream: %w", err)
	}
	return nil
}

// GetPaycheckStream implements forecast.Source. Returns (nil, nil) when the
// user has no paycheck stream configured.
func (r *SQLiteRepository) GetPaycheckStream(ctx context.Context, userID int64) (*core.PaycheckStream, error) {
	var (
		ps        core.PaycheckStream
		frequency string
		startDate string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT amount_cents, frequency, start_date
		FROM paycheck_streams WHERE user_id = ?`,
		userID,
	).Scan(&ps.Amount.Cents, &frequency, &startDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get paycheck stream: %w", err)
	}
	ps.Frequency = core.Frequency(frequency)
	t, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	ps.StartDate = t
	return &ps, nil
}

// --- starting balance ---

func (r *SQLiteRepository) UpsertStartingBalance(ctx context.Context, userID int64, amount core.Money) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO starting_balances (user_id, amount_cents, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_at   = CURRENT_TIMESTAMP`,
		userID, amount.Cents,
	)
	if err != nil {
		return fmt.Errorf("upsert starting balance: %w", err)
	}
	return nil
}

// GetStartingBalance implements forecast.Source. Returns (nil, nil) when no
// starting balance has been recorded; the engine treats that as zero.
func (r *SQLiteRepository) GetStartingBalance(ctx context.Context, userID int64) (*core.StartingBalance, error) {
	var sb core.StartingBalance
	err := r.db.QueryRowContext(ctx, `
		SELECT amount_cents FROM starting_balances WHERE user_id = ?`,
		userID,
	).Scan(&sb.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get starting balance: %w", err)
	}
	return &sb, nil
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID int64, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, description, amount_cents, category, tx_date)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		userID, tx.Description, tx.Amount.Cents, tx.Category, tx.Date.Format(dateLayout),
	).Scan(&tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions implements forecast.Source: transactions whose date falls
// in [from, to], ascending by date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount_cents, category, tx_date
		FROM transactions
		WHERE user_id = ? AND tx_date >= ? AND tx_date <= ?
		ORDER BY tx_date, id`,
		userID, from.Format(dateLayout), to.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx     core.Transaction
			txDate string
		)
		if err := rows.Scan(&tx.ID, &tx.Description, &tx.Amount.Cents, &tx.Category, &txDate); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := time.ParseInLocation(dateLayout, txDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", txDate, err)
		}
		tx.Date = t
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
