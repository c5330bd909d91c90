package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const cartItemColumns = `id, user_id, product_id, name, price, image, quantity, size, color, category, subcategory, created_at, updated_at`

// UpsertCartItem adds a line, or adds quantity onto the existing line for
// the same (user, product, size, color) tuple. The unique index makes the
// at-most-one-line-per-variant invariant a DB guarantee, and the quantity
// addition is what makes the guest-cart merge additive.
const upsertCartItem = `
INSERT INTO cart_items (user_id, product_id, name, price, image, quantity, size, color, category, subcategory)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, product_id, size, color)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING ` + cartItemColumns

type UpsertCartItemParams struct {
	UserID      uuid.UUID
	ProductID   uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Image       pgtype.Text
	Quantity    int32
	Size        string
	Color       string
	Category    pgtype.Text
	Subcategory pgtype.Text
}

func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, upsertCartItem,
		arg.UserID, arg.ProductID, arg.Name, arg.Price, arg.Image, arg.Quantity,
		arg.Size, arg.Color, arg.Category, arg.Subcategory)
	return scanCartItem(row)
}

const listCartItemsByUser = `
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE user_id = $1
ORDER BY created_at
`

func (q *Queries) ListCartItemsByUser(ctx context.Context, userID uuid.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItemsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const updateCartItemQuantity = `
UPDATE cart_items
SET quantity = $3, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + cartItemColumns

type UpdateCartItemQuantityParams struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateCartItemQuantity(ctx context.Context, arg UpdateCartItemQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, updateCartItemQuantity, arg.ID, arg.UserID, arg.Quantity)
	return scanCartItem(row)
}

const deleteCartItem = `
DELETE FROM cart_items WHERE id = $1 AND user_id = $2
`

type DeleteCartItemParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	tag, err := q.db.Exec(ctx, deleteCartItem, arg.ID, arg.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const clearCartByUser = `
DELETE FROM cart_items WHERE user_id = $1
`

func (q *Queries) ClearCartByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearCartByUser, userID)
	return err
}

// ListCartItemsByIDsForUpdate locks the referenced lines for the duration
// of the checkout transaction so a concurrent mutation cannot change
// quantities between total calculation and line removal.
const listCartItemsByIDsForUpdate = `
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE user_id = $1 AND id = ANY($2::uuid[])
ORDER BY created_at
FOR NO KEY UPDATE
`

type ListCartItemsByIDsForUpdateParams struct {
	UserID uuid.UUID
	IDs    []uuid.UUID
}

func (q *Queries) ListCartItemsByIDsForUpdate(ctx context.Context, arg ListCartItemsByIDsForUpdateParams) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItemsByIDsForUpdate, arg.UserID, arg.IDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanCartItem(row scanner) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Name, &it.Price, &it.Image,
		&it.Quantity, &it.Size, &it.Color, &it.Category, &it.Subcategory,
		&it.CreatedAt, &it.UpdatedAt)
	return it, err
}
