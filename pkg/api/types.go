// Package api holds the wire types shared by the stockroom apps. Field names
// mirror schemas/openapi.yaml.
package api

import "time"

// StockLevel classifies a part's quantity against its reorder point.
type StockLevel string

// Defines values for StockLevel.
const (
	StockLevelInStock    StockLevel = "in_stock"
	StockLevelLowStock   StockLevel = "low_stock"
	StockLevelOutOfStock StockLevel = "out_of_stock"
)

// MovementReason explains why a part's quantity changed.
type MovementReason string

// Defines values for MovementReason.
const (
	MovementReasonReceived      MovementReason = "received"
	MovementReasonConsumed      MovementReason = "consumed"
	MovementReasonCorrection    MovementReason = "correction"
	MovementReasonOrderReceived MovementReason = "order_received"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

// Defines values for OrderStatus.
const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusReceived  OrderStatus = "received"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Role is a user's permission tier.
type Role string

// Defines values for Role.
const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Part is one inventory record, stored as parts/<id>.json.
type Part struct {
	Id              string     `json:"id"`
	PartNumber      string     `json:"partNumber"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	Category        string     `json:"category"`
	Supplier        *string    `json:"supplier,omitempty"`
	Location        *string    `json:"location,omitempty"`
	Unit            string     `json:"unit"`
	Quantity        int        `json:"quantity"`
	ReorderPoint    int        `json:"reorderPoint"`
	ReorderQuantity int        `json:"reorderQuantity"`
	UnitCost        float64    `json:"unitCost"`
	Level           StockLevel `json:"level,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	UpdatedBy       string     `json:"updatedBy,omitempty"`

	// Version is the blob SHA the record was read from. Never persisted.
	Version string `json:"version,omitempty"`
}

// PartInput is the body of POST /parts and PUT /parts/{id}.
type PartInput struct {
	PartNumber      string  `json:"partNumber"`
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	Category        string  `json:"category"`
	Supplier        *string `json:"supplier,omitempty"`
	Location        *string `json:"location,omitempty"`
	Unit            string  `json:"unit,omitempty"`
	Quantity        int     `json:"quantity"`
	ReorderPoint    int     `json:"reorderPoint"`
	ReorderQuantity int     `json:"reorderQuantity"`
	UnitCost        float64 `json:"unitCost"`
	Version         *string `json:"version,omitempty"`
}

// ListPartsResponse is returned by GET /parts.
type ListPartsResponse struct {
	Parts []Part `json:"parts"`
}

// StockAdjustment is the body of POST /parts/{id}/adjust.
type StockAdjustment struct {
	Delta  int            `json:"delta"`
	Reason MovementReason `json:"reason"`
	Note   *string        `json:"note,omitempty"`
}

// StockMovement records one quantity change, stored under movements/<partId>/.
type StockMovement struct {
	Id            string         `json:"id"`
	PartId        string         `json:"partId"`
	PartNumber    string         `json:"partNumber"`
	Delta         int            `json:"delta"`
	QuantityAfter int            `json:"quantityAfter"`
	Reason        MovementReason `json:"reason"`
	Note          *string        `json:"note,omitempty"`
	OrderId       *string        `json:"orderId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	CreatedBy     string         `json:"createdBy"`
}

// AdjustStockResponse is returned by POST /parts/{id}/adjust.
type AdjustStockResponse struct {
	Part     Part          `json:"part"`
	Movement StockMovement `json:"movement"`
}

// OrderLine is one part line on a purchase order.
type OrderLine struct {
	PartId     string  `json:"partId"`
	PartNumber string  `json:"partNumber"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	Quantity   int     `json:"quantity"`
	UnitCost   float64 `json:"unitCost"`
	LineTotal  float64 `json:"lineTotal"`
}

// Order is a purchase order, stored as orders/<id>.json.
type Order struct {
	Id          string      `json:"id"`
	Number      string      `json:"number"`
	Status      OrderStatus `json:"status"`
	Supplier    string      `json:"supplier"`
	Lines       []OrderLine `json:"lines"`
	Notes       *string     `json:"notes,omitempty"`
	Total       float64     `json:"total"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatedBy   string      `json:"createdBy"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	SubmittedAt *time.Time  `json:"submittedAt,omitempty"`
	ReceivedAt  *time.Time  `json:"receivedAt,omitempty"`
	DocumentUrl *string     `json:"documentUrl,omitempty"`

	// Version is the blob SHA the record was read from. Never persisted.
	Version string `json:"version,omitempty"`
}

// OrderLineInput is a requested line on CreateOrderRequest / UpdateOrderRequest.
type OrderLineInput struct {
	PartId   string   `json:"partId"`
	Quantity int      `json:"quantity"`
	UnitCost *float64 `json:"unitCost,omitempty"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Supplier string           `json:"supplier"`
	Lines    []OrderLineInput `json:"lines"`
	Notes    *string          `json:"notes,omitempty"`
}

// UpdateOrderRequest is the body of PUT /orders/{id}.
type UpdateOrderRequest struct {
	Supplier *string          `json:"supplier,omitempty"`
	Lines    []OrderLineInput `json:"lines,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
	Version  *string          `json:"version,omitempty"`
}

// ListOrdersResponse is returned by GET /orders.
type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

// OrderSuggestion groups low-stock parts by supplier with suggested quantities.
type OrderSuggestion struct {
	Supplier string           `json:"supplier"`
	Lines    []OrderLineInput `json:"lines"`
	Total    float64          `json:"total"`
}

// CategorySummary aggregates parts in one category.
type CategorySummary struct {
	Category string  `json:"category"`
	Parts    int     `json:"parts"`
	Units    int     `json:"units"`
	Value    float64 `json:"value"`
	LowStock int     `json:"lowStock"`
}

// PartValue is a part with its on-hand stock value.
type PartValue struct {
	PartId     string  `json:"partId"`
	PartNumber string  `json:"partNumber"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Value      float64 `json:"value"`
}

// Dashboard summarises inventory health.
type Dashboard struct {
	TotalParts      int               `json:"totalParts"`
	TotalUnits      int               `json:"totalUnits"`
	TotalValue      float64           `json:"totalValue"`
	InStockCount    int               `json:"inStockCount"`
	LowStockCount   int               `json:"lowStockCount"`
	OutOfStockCount int               `json:"outOfStockCount"`
	Categories      []CategorySummary `json:"categories"`
	LowStock        []Part            `json:"lowStock"`
	TopValue        []PartValue       `json:"topValue"`
	RecentMovements []StockMovement   `json:"recentMovements"`
	OpenOrders      int               `json:"openOrders"`
	OpenOrderValue  float64           `json:"openOrderValue"`
	GeneratedAt     time.Time         `json:"generatedAt"`
}

// ReplenishmentRequest is the body of POST /replenishments.
type ReplenishmentRequest struct {
	Supplier    *string `json:"supplier,omitempty"`
	RequestedBy string  `json:"requestedBy,omitempty"`
	Submit      bool    `json:"submit,omitempty"`
}

// ReplenishmentResult is the output (and live progress) of a replenishment run.
type ReplenishmentResult struct {
	RunId    string   `json:"runId"`
	Status   string   `json:"status"`
	OrderIds []string `json:"orderIds"`
}

// User is an account that can sign in.
type User struct {
	Id        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Disabled  bool      `json:"disabled,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        Role    `json:"role"`
	DisplayName *string `json:"displayName,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// CompanyInfo is printed on purchase orders.
type CompanyInfo struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

// Preferences are per-user UI and dashboard settings.
type Preferences struct {
	Currency     string `json:"currency,omitempty"`
	RecentLimit  int    `json:"recentLimit,omitempty"`
	DefaultUnit  string `json:"defaultUnit,omitempty"`
	LowStockOnly bool   `json:"lowStockOnly,omitempty"`
}

// Profile is the per-user document kept in the document store.
type Profile struct {
	UserId      string       `json:"userId"`
	DisplayName string       `json:"displayName,omitempty"`
	Company     *CompanyInfo `json:"company,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ProfileUpdate is the body of PATCH /me/profile. Present fields replace the
// stored ones; absent fields are kept.
type ProfileUpdate struct {
	DisplayName *string      `json:"displayName,omitempty"`
	Company     *CompanyInfo `json:"company,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// MeResponse is returned by GET /me.
type MeResponse struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}
