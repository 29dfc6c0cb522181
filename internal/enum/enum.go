package enum

// ── Order lifecycle ──

const (
	OrderStatusPending   = "Pending"
	OrderStatusPreparing = "Preparing"
	OrderStatusReady     = "Ready"
	OrderStatusDelivered = "Delivered"
)

// OrderStatuses lists the statuses in kitchen order. The board filter accepts
// these plus StatusFilterAll.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
}

const StatusFilterAll = "All"

// ── Menu ──

const (
	CategoryPizza     = "Pizza"
	CategoryPasta     = "Pasta"
	CategoryBurgers   = "Burgers"
	CategoryDesserts  = "Desserts"
	CategoryBeverages = "Beverages"
	CategorySides     = "Sides"
)

var Categories = []string{
	CategoryPizza,
	CategoryPasta,
	CategoryBurgers,
	CategoryDesserts,
	CategoryBeverages,
	CategorySides,
}

const DefaultServingSize = "Single Serving"

// ── Order snapshots ──

const (
	WalkInCustomerName = "Walk-in Customer"
	NoPhone            = "N/A"

	FirstOrderNumber  = 101
	OrderNumberFloor  = 100
	OrderNumberPrefix = "#"
)

// ── Reports ──

const (
	WindowAll   = "all"
	WindowToday = "today"
	WindowWeek  = "week"
	WindowMonth = "month"
)

// ── Auth ──

const RoleAdmin = "ADMIN"
