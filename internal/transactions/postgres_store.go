package transactions

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the transactions table and the indexes backing the window
// queries if they don't exist. Mirrors migrations/00001_transactions.sql.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id              BIGSERIAL PRIMARY KEY,
			external_id     TEXT NOT NULL DEFAULT '',
			account_id      TEXT NOT NULL DEFAULT '',
			user_id         BIGINT,
			type            TEXT NOT NULL DEFAULT '',
			points_earned   BIGINT,
			points_redeemed BIGINT,
			tx_date         DATE,
			note            TEXT NOT NULL DEFAULT '',
			description     TEXT NOT NULL DEFAULT '',
			risk_level      TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions(account_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_type_created ON transactions(user_id, type, created_at);
		CREATE INDEX IF NOT EXISTS idx_transactions_created_desc ON transactions(created_at DESC);
	`)
	return err
}

const txColumns = `id, external_id, account_id, user_id, type,
	points_earned, points_redeemed, tx_date, note, description,
	risk_level, status, created_at, updated_at`

// Save inserts tx when it has no identifier yet (assigning one) and updates
// the existing row otherwise.
func (p *PostgresStore) Save(ctx context.Context, tx *Transaction) error {
	if tx.ID == 0 {
		err := p.db.QueryRowContext(ctx, `
			INSERT INTO transactions (
				external_id, account_id, user_id, type,
				points_earned, points_redeemed, tx_date, note, description,
				risk_level, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`,
			tx.ExternalID, tx.AccountID, nullInt64(tx.UserID), tx.Type,
			nullInt64(tx.PointsEarned), nullInt64(tx.PointsRedeemed),
			nullDate(tx.Date), tx.Note, tx.Description,
			string(tx.RiskLevel), string(tx.Status),
			tx.CreatedAt, nullTime(tx.UpdatedAt),
		).Scan(&tx.ID)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET
			external_id     = $2,
			account_id      = $3,
			user_id         = $4,
			type            = $5,
			points_earned   = $6,
			points_redeemed = $7,
			tx_date         = $8,
			note            = $9,
			description     = $10,
			risk_level      = $11,
			status          = $12,
			created_at      = $13,
			updated_at      = $14
		WHERE id = $1
	`,
		tx.ID, tx.ExternalID, tx.AccountID, nullInt64(tx.UserID), tx.Type,
		nullInt64(tx.PointsEarned), nullInt64(tx.PointsRedeemed),
		nullDate(tx.Date), tx.Note, tx.Description,
		string(tx.RiskLevel), string(tx.Status),
		tx.CreatedAt, nullTime(tx.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// Get retrieves a transaction by id.
func (p *PostgresStore) Get(ctx context.Context, id int64) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (p *PostgresStore) ListByAccountSince(ctx context.Context, accountID string, after time.Time) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		WHERE account_id = $1 AND created_at > $2`,
		accountID, after)
	if err != nil {
		return nil, fmt.Errorf("list by account: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

func (p *PostgresStore) ListByUserAndTypeSince(ctx context.Context, userID int64, txType string, after time.Time) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		WHERE user_id = $1 AND type = $2 AND created_at > $3
		ORDER BY created_at DESC, id DESC`,
		userID, txType, after)
	if err != nil {
		return nil, fmt.Errorf("list by user and type: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

func (p *PostgresStore) ListTopN(ctx context.Context, n int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		ORDER BY created_at DESC, id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("list top n: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID int64, before time.Time, beforeID int64, limit int) ([]*Transaction, error) {
	var rows *sql.Rows
	var err error
	if before.IsZero() {
		rows, err = p.db.QueryContext(ctx,
			`SELECT `+txColumns+` FROM transactions
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2`,
			userID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT `+txColumns+` FROM transactions
			WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC LIMIT $4`,
			userID, before, beforeID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list by user: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

func (p *PostgresStore) ListAll(ctx context.Context) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactions(rows)
}

// scannable abstracts *sql.Row and *sql.Rows for shared scanning logic.
type scannable interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scannable) (*Transaction, error) {
	var tx Transaction
	var userID, pointsEarned, pointsRedeemed sql.NullInt64
	var txDate, updatedAt sql.NullTime
	var riskLevel, status string

	err := row.Scan(
		&tx.ID, &tx.ExternalID, &tx.AccountID, &userID, &tx.Type,
		&pointsEarned, &pointsRedeemed, &txDate, &tx.Note, &tx.Description,
		&riskLevel, &status, &tx.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		tx.UserID = &userID.Int64
	}
	if pointsEarned.Valid {
		tx.PointsEarned = &pointsEarned.Int64
	}
	if pointsRedeemed.Valid {
		tx.PointsRedeemed = &pointsRedeemed.Int64
	}
	if txDate.Valid {
		tx.Date = txDate.Time.Format("2006-01-02")
	}
	if updatedAt.Valid {
		tx.UpdatedAt = updatedAt.Time
	}
	tx.RiskLevel = RiskLevel(riskLevel)
	tx.Status = Status(status)
	return &tx, nil
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullDate(s string) sql.NullTime {
	if s == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
