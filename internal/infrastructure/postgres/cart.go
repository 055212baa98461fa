package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cartly/backend/internal/domain"
)

// CartRepository implements domain.CartRepository using PostgreSQL.
// Carts are loaded with their lines' products populated so the
// reconciliation layer can match on name and barcode directly.
type CartRepository struct {
	pool DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository
func NewCartRepository(pool DBTX) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByID retrieves a cart with populated product data on every line.
// Lines come back in insertion order.
func (r *CartRepository) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	cart := &domain.Cart{ID: id}

	cartQuery := `
		SELECT user_id, updated_at
		FROM carts
		WHERE id = $1`

	err := r.pool.QueryRow(ctx, cartQuery, id).Scan(&cart.UserID, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}

	linesQuery := `
		SELECT l.id, l.quantity, p.id, p.name, COALESCE(p.barcode, '')
		FROM cart_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.cart_id = $1
		ORDER BY l.position`

	rows, err := r.pool.Query(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	cart.Lines = []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.Quantity, &line.Product.ID, &line.Product.Name, &line.Product.Barcode); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}

	return cart, nil
}

// Save persists a reconciled cart atomically: lines absent from the
// cart (removed at zero quantity) are deleted, surviving lines take
// their new quantities, and the cart timestamp is bumped.
// Last-write-wins; there is no row versioning.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	keep := make([]string, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		keep = append(keep, line.ID)
	}

	deleteQuery := `
		DELETE FROM cart_lines
		WHERE cart_id = $1 AND NOT (id = ANY($2::text[]))`

	if _, err := tx.Exec(ctx, deleteQuery, cart.ID, keep); err != nil {
		return fmt.Errorf("delete removed lines: %w", err)
	}

	updateLineQuery := `
		UPDATE cart_lines
		SET quantity = $1
		WHERE id = $2 AND cart_id = $3`

	for _, line := range cart.Lines {
		if _, err := tx.Exec(ctx, updateLineQuery, line.Quantity, line.ID, cart.ID); err != nil {
			return fmt.Errorf("update line %s: %w", line.ID, err)
		}
	}

	updateCartQuery := `
		UPDATE carts
		SET updated_at = $1
		WHERE id = $2`

	ct, err := tx.Exec(ctx, updateCartQuery, cart.UpdatedAt, cart.ID)
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrCartNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
