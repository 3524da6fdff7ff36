package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore is the production order Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a Postgres connection.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const orderColumns = `id, user_id, supplier_id, product_id, items, qty, status, expires_at, order_timestamp, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.OrderID, &o.UserID, &o.SupplierID, &o.ProductID, &o.Items, &o.Qty, &status, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

func (s *PostgresStore) Create(ctx context.Context, o Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, supplier_id, product_id, items, qty, status, expires_at, order_timestamp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, o.OrderID, o.UserID, o.SupplierID, o.ProductID, o.Items, o.Qty, string(Pending), o.ExpiresAt, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// Transition applies the state machine's Next() decision via a guarded
// UPDATE (a CASE on the current status): the new status is only written when the
// current stored status is the one the lookup under lock actually saw, so
// a replayed or out-of-order delivery can only ever update timestamps.
func (s *PostgresStore) Transition(ctx context.Context, orderID, productID, userID, event string, now time.Time) (Status, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 AND product_id = $2 AND user_id = $3 FOR UPDATE
	`, orderID, productID, userID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("transition %s: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return "", false, fmt.Errorf("lock order: %w", err)
	}

	from := Status(current)
	to, applied := Next(from, event)
	if !applied {
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("commit no-op transition: %w", err)
		}
		return from, false, nil
	}

	// Guarded UPDATE: only set status when from == current status
	// (already true here since we just locked and read it, but the SQL
	// predicate still expresses the same guard as a WHERE clause rather
	// than trusting the earlier SELECT).
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = CASE WHEN status = $1 THEN $2 ELSE status END,
		    updated_at = $3
		WHERE id = $4 AND product_id = $5 AND user_id = $6
	`, string(from), string(to), now, orderID, productID, userID)
	if err != nil {
		return "", false, fmt.Errorf("transition update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", false, fmt.Errorf("transition %s: %w", orderID, ErrOrderNotFound)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit transition: %w", err)
	}
	return to, true, nil
}

func (s *PostgresStore) DuePending(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3
	`, string(Pending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due pending orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
