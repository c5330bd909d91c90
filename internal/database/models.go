package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	Subcategory pgtype.Text
	Sizes       []string
	Colors      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProductImage struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Url       string
	Position  int32
}

// CartItem is an authenticated user's persisted cart line. Price and the
// display fields are snapshots taken at add time. Size and Color are ''
// (not NULL) when absent so the unique variant index treats two
// size-less lines for the same product as the same line.
type CartItem struct {
	ID          uuid.UUID
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
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WishlistItem struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProductID   uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Image       pgtype.Text
	Category    pgtype.Text
	Subcategory pgtype.Text
	CreatedAt   time.Time
}

// Order.Version is the optimistic-lock token: incremented on every admin
// write, compared with strict equality before any mutation.
type Order struct {
	ID                  uuid.UUID
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	Notes               pgtype.Text
	TotalAmount         pgtype.Numeric
	Status              string
	ScheduledPickupDate pgtype.Timestamptz
	PickedUpAt          pgtype.Timestamptz
	Version             int32
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Quantity  int32
	Price     pgtype.Numeric
}

type Payment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProofUrl        string
	Status          string
	RejectionReason pgtype.Text
	CreatedAt       time.Time
	VerifiedAt      pgtype.Timestamptz
}

type AuditLog struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	AdminID    uuid.UUID
	Action     string
	FromStatus string
	ToStatus   string
	CreatedAt  time.Time
}
