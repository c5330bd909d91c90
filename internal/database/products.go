package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const createProduct = `
INSERT INTO products (name, description, price, category, subcategory, sizes, colors)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, name, description, price, category, subcategory, sizes, colors, created_at, updated_at
`

type CreateProductParams struct {
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	Subcategory pgtype.Text
	Sizes       []string
	Colors      []string
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.Name, arg.Description, arg.Price, arg.Category, arg.Subcategory, arg.Sizes, arg.Colors)
	return scanProduct(row)
}

const updateProduct = `
UPDATE products
SET name = $2, description = $3, price = $4, category = $5, subcategory = $6,
    sizes = $7, colors = $8, updated_at = now()
WHERE id = $1
RETURNING id, name, description, price, category, subcategory, sizes, colors, created_at, updated_at
`

type UpdateProductParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	Subcategory pgtype.Text
	Sizes       []string
	Colors      []string
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.Name, arg.Description, arg.Price, arg.Category, arg.Subcategory, arg.Sizes, arg.Colors)
	return scanProduct(row)
}

const deleteProduct = `
DELETE FROM products WHERE id = $1
`

func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteProduct, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const getProduct = `
SELECT id, name, description, price, category, subcategory, sizes, colors, created_at, updated_at
FROM products
WHERE id = $1
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listProducts = `
SELECT id, name, description, price, category, subcategory, sizes, colors, created_at, updated_at
FROM products
WHERE ($1::text = '' OR category = $1)
  AND ($2::text = '' OR subcategory = $2)
  AND ($3::text = '' OR name ILIKE '%' || $3 || '%')
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListProductsParams struct {
	Category    string
	Subcategory string
	Search      string
	Limit       int32
	Offset      int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts,
		arg.Category, arg.Subcategory, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const createProductImage = `
INSERT INTO product_images (product_id, url, position)
VALUES ($1, $2, $3)
RETURNING id, product_id, url, position
`

type CreateProductImageParams struct {
	ProductID uuid.UUID
	Url       string
	Position  int32
}

func (q *Queries) CreateProductImage(ctx context.Context, arg CreateProductImageParams) (ProductImage, error) {
	row := q.db.QueryRow(ctx, createProductImage, arg.ProductID, arg.Url, arg.Position)
	var img ProductImage
	err := row.Scan(&img.ID, &img.ProductID, &img.Url, &img.Position)
	return img, err
}

const deleteProductImagesByProduct = `
DELETE FROM product_images WHERE product_id = $1
`

func (q *Queries) DeleteProductImagesByProduct(ctx context.Context, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteProductImagesByProduct, productID)
	return err
}

const listProductImagesByProduct = `
SELECT id, product_id, url, position
FROM product_images
WHERE product_id = $1
ORDER BY position
`

func (q *Queries) ListProductImagesByProduct(ctx context.Context, productID uuid.UUID) ([]ProductImage, error) {
	rows, err := q.db.Query(ctx, listProductImagesByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ProductImage
	for rows.Next() {
		var img ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Url, &img.Position); err != nil {
			return nil, err
		}
		items = append(items, img)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row scanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Subcategory,
		&p.Sizes, &p.Colors, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
