package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresStore is the production Store, one row-locked transaction per
// handler call per spec §4.2.
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

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.SupplierID, &p.ProductID, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Unit, &p.Quantity, &p.Reserved, &p.LowStockThreshold,
		&p.Available, &p.UpdatedAt,
	)
	return p, err
}

const productColumns = `supplier_id, product_id, name, description, category, price, unit, quantity, reserved, low_stock_threshold, available, updated_at`

func (s *PostgresStore) GetProduct(ctx context.Context, productID string) (Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (supplier_id, product_id, name, description, category, price, unit, quantity, reserved, low_stock_threshold, available, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, CURRENT_TIMESTAMP)
		ON CONFLICT (product_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			unit = EXCLUDED.unit,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			available = EXCLUDED.available,
			updated_at = CURRENT_TIMESTAMP
	`, p.SupplierID, p.ProductID, p.Name, p.Description, p.Category, p.Price, p.Unit, p.Quantity, p.LowStockThreshold, p.Available)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows affected: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) CountActiveReservations(ctx context.Context, productID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE product_id = $1 AND released = false`, productID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return n, nil
}

// Reserve implements spec §4.3.1 in a single transaction.
func (s *PostgresStore) Reserve(ctx context.Context, orderID, productID, userID string, qty int, ttl time.Duration, now time.Time) (ReserveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReserveResult{}, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback()

	// Step 1: opportunistic sweep of stale reservations on this product.
	swept, err := sweepExpiredLocked(ctx, tx, productID, now)
	if err != nil {
		return ReserveResult{}, err
	}

	// Step 2: idempotency check.
	existing, err := findReservationByOrderLocked(ctx, tx, orderID)
	if err != nil && !errors.Is(err, ErrReservationNotFound) {
		return ReserveResult{}, err
	}
	if err == nil {
		product, perr := getProductLocked(ctx, tx, productID)
		if perr != nil {
			return ReserveResult{}, perr
		}
		if err := tx.Commit(); err != nil {
			return ReserveResult{}, fmt.Errorf("commit reserve idempotent: %w", err)
		}
		return ReserveResult{Outcome: ReserveIdempotent, Reservation: existing, Product: product, SweptExpired: swept}, nil
	}

	// Step 3: lock product row, compute availability.
	product, err := getProductLocked(ctx, tx, productID)
	if err != nil {
		return ReserveResult{}, err
	}

	// Step 4: reject if insufficient.
	if product.AvailableForSale() < qty {
		if err := tx.Commit(); err != nil {
			return ReserveResult{}, fmt.Errorf("commit reserve reject: %w", err)
		}
		return ReserveResult{Outcome: ReserveRejectedStock, Product: product, SweptExpired: swept}, nil
	}

	// Step 5: guarded reserve + insert.
	res, err := tx.ExecContext(ctx, `
		UPDATE products SET reserved = reserved + $1, updated_at = CURRENT_TIMESTAMP
		WHERE product_id = $2 AND (quantity - reserved) >= $1
	`, qty, productID)
	if err != nil {
		return ReserveResult{}, fmt.Errorf("reserve update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ReserveResult{}, fmt.Errorf("reserve update: %w", ErrConsistency)
	}

	reservation := Reservation{
		ReservationID: uuid.New().String(),
		OrderID:       orderID,
		ProductID:     productID,
		UserID:        userID,
		Qty:           qty,
		ExpiresAt:     now.Add(ttl),
		CreatedAt:     now,
		Released:      false,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (reservation_id, order_id, product_id, user_id, qty, expires_at, created_at, released)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`, reservation.ReservationID, reservation.OrderID, reservation.ProductID, reservation.UserID, reservation.Qty, reservation.ExpiresAt, reservation.CreatedAt)
	if err != nil {
		return ReserveResult{}, fmt.Errorf("insert reservation: %w", err)
	}

	product.Reserved += qty
	if err := tx.Commit(); err != nil {
		return ReserveResult{}, fmt.Errorf("commit reserve: %w", err)
	}
	return ReserveResult{Outcome: ReserveCreated, Reservation: reservation, Product: product, SweptExpired: swept}, nil
}

// Release implements spec §4.3.2.
func (s *PostgresStore) Release(ctx context.Context, orderID, productID string, qty int) (ReleaseResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReleaseResult{}, fmt.Errorf("begin release tx: %w", err)
	}
	defer tx.Rollback()

	reservation, err := findReservationByOrderLocked(ctx, tx, orderID)
	if errors.Is(err, ErrReservationNotFound) {
		if err := tx.Commit(); err != nil {
			return ReleaseResult{}, fmt.Errorf("commit release noop: %w", err)
		}
		return ReleaseResult{NoOp: true}, nil
	}
	if err != nil {
		return ReleaseResult{}, err
	}
	if reservation.Released {
		if err := tx.Commit(); err != nil {
			return ReleaseResult{}, fmt.Errorf("commit release noop: %w", err)
		}
		return ReleaseResult{NoOp: true, Reservation: reservation}, nil
	}
	if qty != reservation.Qty {
		return ReleaseResult{}, fmt.Errorf("release %s qty=%d reservation.qty=%d: %w", orderID, qty, reservation.Qty, ErrQtyMismatch)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products SET reserved = reserved - $1, updated_at = CURRENT_TIMESTAMP
		WHERE product_id = $2 AND reserved >= $1
	`, qty, productID)
	if err != nil {
		return ReleaseResult{}, fmt.Errorf("release update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ReleaseResult{}, fmt.Errorf("release update: %w", ErrConsistency)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET released = true WHERE reservation_id = $1`, reservation.ReservationID); err != nil {
		return ReleaseResult{}, fmt.Errorf("mark released: %w", err)
	}

	product, err := getProductLocked(ctx, tx, productID)
	if err != nil {
		return ReleaseResult{}, err
	}
	reservation.Released = true

	if err := tx.Commit(); err != nil {
		return ReleaseResult{}, fmt.Errorf("commit release: %w", err)
	}
	return ReleaseResult{Reservation: reservation, Product: product}, nil
}

// Finalize implements spec §4.3.3.
func (s *PostgresStore) Finalize(ctx context.Context, orderID, productID string, qty int) (FinalizeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	reservation, err := findReservationByOrderLocked(ctx, tx, orderID)
	if errors.Is(err, ErrReservationNotFound) {
		return FinalizeResult{}, fmt.Errorf("finalize %s: %w", orderID, ErrReservationNotFound)
	}
	if err != nil {
		return FinalizeResult{}, err
	}
	if reservation.Released {
		return FinalizeResult{}, fmt.Errorf("finalize %s: %w", orderID, ErrReservationAlreadyReleased)
	}
	if qty != reservation.Qty {
		return FinalizeResult{}, fmt.Errorf("finalize %s qty=%d reservation.qty=%d: %w", orderID, qty, reservation.Qty, ErrQtyMismatch)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products SET reserved = reserved - $1, quantity = quantity - $1, updated_at = CURRENT_TIMESTAMP
		WHERE product_id = $2 AND reserved >= $1 AND quantity >= $1
	`, qty, productID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("finalize update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return FinalizeResult{}, fmt.Errorf("finalize update: %w", ErrConsistency)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE reservations SET released = true WHERE reservation_id = $1`, reservation.ReservationID); err != nil {
		return FinalizeResult{}, fmt.Errorf("mark released: %w", err)
	}

	product, err := getProductLocked(ctx, tx, productID)
	if err != nil {
		return FinalizeResult{}, err
	}
	reservation.Released = true

	if err := tx.Commit(); err != nil {
		return FinalizeResult{}, fmt.Errorf("commit finalize: %w", err)
	}
	return FinalizeResult{Reservation: reservation, Product: product}, nil
}

func (s *PostgresStore) LookupReservation(ctx context.Context, orderID string) (Reservation, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT reservation_id, order_id, product_id, user_id, qty, expires_at, created_at, released
		FROM reservations WHERE order_id = $1
	`, orderID)
	var r Reservation
	err := row.Scan(&r.ReservationID, &r.OrderID, &r.ProductID, &r.UserID, &r.Qty, &r.ExpiresAt, &r.CreatedAt, &r.Released)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, false, nil
	}
	if err != nil {
		return Reservation{}, false, fmt.Errorf("lookup reservation: %w", err)
	}
	return r, true, nil
}

func (s *PostgresStore) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reservation_id, order_id, product_id, user_id, qty, expires_at, created_at, released
		FROM reservations
		WHERE released = false AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due reservations: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ReservationID, &r.OrderID, &r.ProductID, &r.UserID, &r.Qty, &r.ExpiresAt, &r.CreatedAt, &r.Released); err != nil {
			return nil, fmt.Errorf("scan due reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- transaction-scoped helpers ---

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getProductLocked(ctx context.Context, tx execer, productID string) (Product, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = $1 FOR UPDATE`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("lock product: %w", err)
	}
	return p, nil
}

func findReservationByOrderLocked(ctx context.Context, tx execer, orderID string) (Reservation, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT reservation_id, order_id, product_id, user_id, qty, expires_at, created_at, released
		FROM reservations WHERE order_id = $1 FOR UPDATE
	`, orderID)
	var r Reservation
	err := row.Scan(&r.ReservationID, &r.OrderID, &r.ProductID, &r.UserID, &r.Qty, &r.ExpiresAt, &r.CreatedAt, &r.Released)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("lock reservation: %w", err)
	}
	return r, nil
}

// sweepExpiredLocked implements §4.3.1 step 1: release every stale
// reservation on this product before attempting the new one.
func sweepExpiredLocked(ctx context.Context, tx execer, productID string, now time.Time) ([]Reservation, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT reservation_id, order_id, product_id, user_id, qty, expires_at, created_at, released
		FROM reservations
		WHERE product_id = $1 AND released = false AND expires_at <= $2
		FOR UPDATE
	`, productID, now)
	if err != nil {
		return nil, fmt.Errorf("select stale reservations: %w", err)
	}
	var stale []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ReservationID, &r.OrderID, &r.ProductID, &r.UserID, &r.Qty, &r.ExpiresAt, &r.CreatedAt, &r.Released); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale reservation: %w", err)
		}
		stale = append(stale, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale reservations: %w", err)
	}

	for i, r := range stale {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET reserved = reserved - $1, updated_at = CURRENT_TIMESTAMP
			WHERE product_id = $2 AND reserved >= $1
		`, r.Qty, productID); err != nil {
			return nil, fmt.Errorf("sweep decrement: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE reservations SET released = true WHERE reservation_id = $1`, r.ReservationID); err != nil {
			return nil, fmt.Errorf("sweep mark released: %w", err)
		}
		stale[i].Released = true
	}
	return stale, nil
}
