// Package models - sales order, line item and payment models
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sales order lifecycle states
const (
	OrderStatusDraft      = "DRAFT"
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusDispatched = "DISPATCHED"
	OrderStatusInvoiced   = "INVOICED"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

// Derived payment settlement states
const (
	PaymentStatusUnpaid   = "UNPAID"
	PaymentStatusPartPaid = "PART_PAID"
	PaymentStatusPaid     = "PAID"
)

// SalesOrder holds line items and payments. Subtotal, TotalAmount and
// PaymentStatus are derived from the item and payment collections and are
// recomputed inside the same transaction as every item/payment mutation.
type SalesOrder struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmID        uuid.UUID      `json:"farm_id" gorm:"type:uuid;index;not null"`
	CustomerID    uuid.UUID      `json:"customer_id" gorm:"type:uuid;index;not null"`
	OrderNumber   string         `json:"order_number" gorm:"uniqueIndex;not null;size:50"`
	OrderDate     time.Time      `json:"order_date" gorm:"not null"`
	Status        string         `json:"status" gorm:"size:20;not null;default:'DRAFT'"`
	Currency      string         `json:"currency" gorm:"size:10;default:'GHS'"`
	Subtotal      float64        `json:"subtotal" gorm:"default:0"`
	DiscountTotal float64        `json:"discount_total" gorm:"default:0"`
	TaxTotal      float64        `json:"tax_total" gorm:"default:0"`
	TotalAmount   float64        `json:"total_amount" gorm:"default:0"`
	PaymentStatus string         `json:"payment_status" gorm:"size:20;not null;default:'UNPAID'"`
	Notes         string         `json:"notes"`
	CreatedBy     uuid.UUID      `json:"created_by" gorm:"type:uuid"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Customer *Customer        `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Items    []SalesOrderItem `json:"items,omitempty" gorm:"foreignKey:SalesOrderID"`
	Payments []Payment        `json:"payments,omitempty" gorm:"foreignKey:SalesOrderID"`
}

// SalesOrderItem is one priced line. LineTotal is derived
// (quantity * unit_price - discount_amount) and recomputed on every write,
// before the order-level aggregation runs. Exactly one of the provenance
// references must be set; a line with no traceable source is invalid.
type SalesOrderItem struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	FarmID            uuid.UUID  `json:"farm_id" gorm:"type:uuid;index;not null"`
	SalesOrderID      uuid.UUID  `json:"sales_order_id" gorm:"type:uuid;index;not null"`
	ProductionCycleID *uuid.UUID `json:"production_cycle_id" gorm:"type:uuid"`
	HarvestRecordID   *uuid.UUID `json:"harvest_record_id" gorm:"type:uuid"`
	HarvestLotID      *uuid.UUID `json:"harvest_lot_id" gorm:"type:uuid"`
	Description       string     `json:"description" gorm:"size:255"`
	Quantity          float64    `json:"quantity" gorm:"not null"`
	Unit              string     `json:"unit" gorm:"size:50"`
	UnitPrice         float64    `json:"unit_price" gorm:"not null"`
	DiscountAmount    float64    `json:"discount_amount" gorm:"default:0"`
	LineTotal         float64    `json:"line_total" gorm:"not null"`
	QualityGrade      string     `json:"quality_grade" gorm:"size:5"`
	Notes             string     `json:"notes"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Payment is one settlement against a sales order
type Payment struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID       uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	SalesOrderID uuid.UUID `json:"sales_order_id" gorm:"type:uuid;index;not null"`
	PaymentDate  time.Time `json:"payment_date" gorm:"not null"`
	Amount       float64   `json:"amount" gorm:"not null"`
	Currency     string    `json:"currency" gorm:"size:10"`
	Method       string    `json:"method" gorm:"size:30"`
	Reference    string    `json:"reference" gorm:"size:100"`
	ReceivedBy   uuid.UUID `json:"received_by" gorm:"type:uuid"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m *SalesOrder) BeforeCreate(tx *gorm.DB) error     { ensureID(&m.ID); return nil }
func (m *SalesOrderItem) BeforeCreate(tx *gorm.DB) error { ensureID(&m.ID); return nil }
func (m *Payment) BeforeCreate(tx *gorm.DB) error        { ensureID(&m.ID); return nil }
