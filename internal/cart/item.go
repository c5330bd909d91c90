package cart

import (
	"github.com/campusmerch/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Item is a cart line as the engine sees it, independent of which
// backend persists it. ID is a server-assigned UUID string for
// authenticated lines and the composite variant key for guest lines.
type Item struct {
	ID          string          `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Quantity    int32           `json:"quantity"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
}

// variantKey is the (productId, size, color) matching key used both as
// the guest-line identity and as the upsert key on both backends.
func variantKey(productID uuid.UUID, size, color string) string {
	return productID.String() + "|" + size + "|" + color
}

func (it Item) variantKey() string {
	return variantKey(it.ProductID, it.Size, it.Color)
}

func itemFromRow(row database.CartItem) Item {
	return Item{
		ID:          row.ID.String(),
		ProductID:   row.ProductID,
		Name:        row.Name,
		Price:       numericToDecimal(row.Price),
		Image:       row.Image.String,
		Quantity:    row.Quantity,
		Size:        row.Size,
		Color:       row.Color,
		Category:    row.Category.String,
		Subcategory: row.Subcategory.String,
	}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
