package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const wishlistItemColumns = `id, user_id, product_id, name, price, image, category, subcategory, created_at`

// AddWishlistItem inserts the product if absent; presence is boolean, so
// a duplicate add is a no-op that returns the existing row.
const addWishlistItem = `
INSERT INTO wishlist_items (user_id, product_id, name, price, image, category, subcategory)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, product_id) DO UPDATE SET product_id = EXCLUDED.product_id
RETURNING ` + wishlistItemColumns

type AddWishlistItemParams struct {
	UserID      uuid.UUID
	ProductID   uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Image       pgtype.Text
	Category    pgtype.Text
	Subcategory pgtype.Text
}

func (q *Queries) AddWishlistItem(ctx context.Context, arg AddWishlistItemParams) (WishlistItem, error) {
	row := q.db.QueryRow(ctx, addWishlistItem,
		arg.UserID, arg.ProductID, arg.Name, arg.Price, arg.Image, arg.Category, arg.Subcategory)
	var it WishlistItem
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Name, &it.Price, &it.Image,
		&it.Category, &it.Subcategory, &it.CreatedAt)
	return it, err
}

const listWishlistByUser = `
SELECT ` + wishlistItemColumns + `
FROM wishlist_items
WHERE user_id = $1
ORDER BY created_at
`

func (q *Queries) ListWishlistByUser(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error) {
	rows, err := q.db.Query(ctx, listWishlistByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WishlistItem
	for rows.Next() {
		var it WishlistItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Name, &it.Price, &it.Image,
			&it.Category, &it.Subcategory, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteWishlistItem = `
DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2
`

type DeleteWishlistItemParams struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
}

func (q *Queries) DeleteWishlistItem(ctx context.Context, arg DeleteWishlistItemParams) error {
	tag, err := q.db.Exec(ctx, deleteWishlistItem, arg.UserID, arg.ProductID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const clearWishlistByUser = `
DELETE FROM wishlist_items WHERE user_id = $1
`

func (q *Queries) ClearWishlistByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearWishlistByUser, userID)
	return err
}
