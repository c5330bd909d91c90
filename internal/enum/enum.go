package enum

// ── Order lifecycle (CHECK constrained in DB) ──
//
// PENDING means "payment proof uploaded, awaiting admin verification",
// not "not yet started". Naming inherited from the store's admin UI.

const (
	OrderStatusAwaitingPayment = "AWAITING_PAYMENT"
	OrderStatusPending         = "PENDING"
	OrderStatusReadyForPickup  = "READY_FOR_PICKUP"
	OrderStatusCompleted       = "COMPLETED"
	OrderStatusCancelled       = "CANCELLED"
)

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusVerified = "VERIFIED"
	PaymentStatusRejected = "REJECTED"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleCustomer = "CUSTOMER"
)

// ── Auth session events consumed by the cart engine ──

const (
	AuthEventInitial        = "initial"
	AuthEventSignedIn       = "signed_in"
	AuthEventSignedOut      = "signed_out"
	AuthEventTokenRefreshed = "token_refreshed"
)

// ── Audit actions ──

const (
	AuditActionStatusOverride = "STATUS_OVERRIDE"
)
