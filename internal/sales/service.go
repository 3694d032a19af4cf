// Package sales manages sales orders, their line items and payments.
//
// Order-level money columns (subtotal, total_amount) and the payment
// status are derived: line totals are recomputed first, then the order
// aggregation, then the payment status, all inside the transaction
// that performed the triggering mutation.
package sales

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// Service manages the sales order lifecycle and settlement state
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ItemInput is one order line in a payload. Exactly one of the three
// provenance references must be set.
type ItemInput struct {
	ProductionCycleID *uuid.UUID `json:"production_cycle_id"`
	HarvestRecordID   *uuid.UUID `json:"harvest_record_id"`
	HarvestLotID      *uuid.UUID `json:"harvest_lot_id"`
	Description       string     `json:"description"`
	Quantity          float64    `json:"quantity"`
	Unit              string     `json:"unit"`
	UnitPrice         float64    `json:"unit_price"`
	DiscountAmount    float64    `json:"discount_amount"`
	QualityGrade      string     `json:"quality_grade"`
	Notes             string     `json:"notes"`
}

// OrderInput is the payload for creating an order
type OrderInput struct {
	FarmID        uuid.UUID   `json:"farm_id"`
	CustomerID    uuid.UUID   `json:"customer_id"`
	OrderDate     time.Time   `json:"order_date"`
	Currency      string      `json:"currency"`
	DiscountTotal float64     `json:"discount_total"`
	TaxTotal      float64     `json:"tax_total"`
	Notes         string      `json:"notes"`
	Items         []ItemInput `json:"items"`
}

func (in *ItemInput) validate(path string) []errors.FieldError {
	var fields []errors.FieldError
	if in.Quantity <= 0 {
		fields = append(fields, errors.FieldError{Field: path + ".quantity", Message: "quantity must be positive"})
	}
	if in.UnitPrice < 0 {
		fields = append(fields, errors.FieldError{Field: path + ".unit_price", Message: "unit price cannot be negative"})
	}
	if in.DiscountAmount < 0 {
		fields = append(fields, errors.FieldError{Field: path + ".discount_amount", Message: "discount cannot be negative"})
	}

	refs := 0
	if in.ProductionCycleID != nil {
		refs++
	}
	if in.HarvestRecordID != nil {
		refs++
	}
	if in.HarvestLotID != nil {
		refs++
	}
	if refs != 1 {
		fields = append(fields, errors.FieldError{
			Field:   path + ".provenance",
			Message: "exactly one of production_cycle_id, harvest_record_id or harvest_lot_id must be set",
		})
	}
	return fields
}

func lineTotal(in ItemInput) float64 {
	return round2(in.Quantity*in.UnitPrice - in.DiscountAmount)
}

// CreateOrder creates a DRAFT order with its items. All item validation
// failures are accumulated; nothing persists when any line is bad.
func (s *Service) CreateOrder(in OrderInput, actor auth.Actor) (*models.SalesOrder, error) {
	var fields []errors.FieldError
	if in.FarmID == uuid.Nil {
		fields = append(fields, errors.FieldError{Field: "farm_id", Message: "farm is required"})
	}
	if in.CustomerID == uuid.Nil {
		fields = append(fields, errors.FieldError{Field: "customer_id", Message: "customer is required"})
	}
	if len(in.Items) == 0 {
		fields = append(fields, errors.FieldError{Field: "items", Message: "at least one line item is required"})
	}
	for i := range in.Items {
		fields = append(fields, in.Items[i].validate(fmt.Sprintf("items.%d", i))...)
	}
	if len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}

	var customer models.Customer
	if err := s.db.First(&customer, "id = ?", in.CustomerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("customer")
		}
		return nil, errors.NewInternalError(err)
	}

	orderDate := in.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	var order models.SalesOrder
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := nextOrderNumber(tx, orderDate)
		if err != nil {
			return err
		}
		order = models.SalesOrder{
			FarmID:        in.FarmID,
			CustomerID:    in.CustomerID,
			OrderNumber:   number,
			OrderDate:     orderDate,
			Status:        models.OrderStatusDraft,
			Currency:      in.Currency,
			DiscountTotal: in.DiscountTotal,
			TaxTotal:      in.TaxTotal,
			Notes:         in.Notes,
			CreatedBy:     actor.UserID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return errors.NewInternalError(err)
		}
		for _, item := range in.Items {
			if err := s.createItem(tx, &order, item); err != nil {
				return err
			}
		}
		return s.recalculateTotals(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(order.ID)
}

func (s *Service) createItem(tx *gorm.DB, order *models.SalesOrder, in ItemInput) error {
	item := models.SalesOrderItem{
		FarmID:            order.FarmID,
		SalesOrderID:      order.ID,
		ProductionCycleID: in.ProductionCycleID,
		HarvestRecordID:   in.HarvestRecordID,
		HarvestLotID:      in.HarvestLotID,
		Description:       in.Description,
		Quantity:          in.Quantity,
		Unit:              in.Unit,
		UnitPrice:         in.UnitPrice,
		DiscountAmount:    in.DiscountAmount,
		LineTotal:         lineTotal(in),
		QualityGrade:      in.QualityGrade,
		Notes:             in.Notes,
	}
	if err := tx.Create(&item).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// Get loads an order with items and payments
func (s *Service) Get(id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	err := s.db.Preload("Items").Preload("Payments").First(&order, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("sales order")
		}
		return nil, errors.NewInternalError(err)
	}
	return &order, nil
}

// AddLineItem appends a line to a DRAFT order
func (s *Service) AddLineItem(orderID uuid.UUID, in ItemInput) (*models.SalesOrder, error) {
	if fields := in.validate("item"); len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.draftOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := s.createItem(tx, order, in); err != nil {
			return err
		}
		return s.recalculateTotals(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(orderID)
}

// UpdateLineItem rewrites a line on a DRAFT order
func (s *Service) UpdateLineItem(itemID uuid.UUID, in ItemInput) (*models.SalesOrder, error) {
	if fields := in.validate("item"); len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}
	var orderID uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item models.SalesOrderItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("sales order item")
			}
			return errors.NewInternalError(err)
		}
		order, err := s.draftOrder(tx, item.SalesOrderID)
		if err != nil {
			return err
		}

		item.ProductionCycleID = in.ProductionCycleID
		item.HarvestRecordID = in.HarvestRecordID
		item.HarvestLotID = in.HarvestLotID
		item.Description = in.Description
		item.Quantity = in.Quantity
		item.Unit = in.Unit
		item.UnitPrice = in.UnitPrice
		item.DiscountAmount = in.DiscountAmount
		item.LineTotal = lineTotal(in)
		item.QualityGrade = in.QualityGrade
		item.Notes = in.Notes
		if err := tx.Save(&item).Error; err != nil {
			return errors.NewInternalError(err)
		}
		orderID = order.ID
		return s.recalculateTotals(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(orderID)
}

// RemoveLineItem deletes a line from a DRAFT order
func (s *Service) RemoveLineItem(itemID uuid.UUID) (*models.SalesOrder, error) {
	var orderID uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item models.SalesOrderItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("sales order item")
			}
			return errors.NewInternalError(err)
		}
		order, err := s.draftOrder(tx, item.SalesOrderID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&item).Error; err != nil {
			return errors.NewInternalError(err)
		}
		orderID = order.ID
		return s.recalculateTotals(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(orderID)
}

// AddPayment records a settlement against the order and refreshes its
// payment status in the same transaction. Payments are accepted from
// CONFIRMED onward.
func (s *Service) AddPayment(orderID uuid.UUID, amount float64, method, reference string, paidAt time.Time, actor auth.Actor) (*models.SalesOrder, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("amount", "payment amount must be positive")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusDraft || order.Status == models.OrderStatusCancelled {
			return errors.NewStateError("sales order", order.Status, "record a payment against")
		}

		payment := models.Payment{
			FarmID:       order.FarmID,
			SalesOrderID: order.ID,
			PaymentDate:  paidAt,
			Amount:       amount,
			Currency:     order.Currency,
			Method:       method,
			Reference:    reference,
			ReceivedBy:   actor.UserID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return errors.NewInternalError(err)
		}
		return s.refreshPaymentStatus(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(orderID)
}

// Order status transitions. Each moves from exactly one prior state.

func (s *Service) Confirm(orderID uuid.UUID) (*models.SalesOrder, error) {
	return s.transition(orderID, models.OrderStatusDraft, models.OrderStatusConfirmed, "confirm")
}

func (s *Service) Dispatch(orderID uuid.UUID) (*models.SalesOrder, error) {
	return s.transition(orderID, models.OrderStatusConfirmed, models.OrderStatusDispatched, "dispatch")
}

func (s *Service) Invoice(orderID uuid.UUID) (*models.SalesOrder, error) {
	return s.transition(orderID, models.OrderStatusDispatched, models.OrderStatusInvoiced, "invoice")
}

// Complete closes an INVOICED order once it is fully paid
func (s *Service) Complete(orderID uuid.UUID) (*models.SalesOrder, error) {
	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusInvoiced {
		return nil, errors.NewStateError("sales order", order.Status, "complete")
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, errors.NewStateError("sales order", order.PaymentStatus, "complete an unpaid")
	}
	order.Status = models.OrderStatusCompleted
	if err := s.db.Save(order).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return order, nil
}

// Cancel voids an order. Allowed from any state before COMPLETED.
func (s *Service) Cancel(orderID uuid.UUID) (*models.SalesOrder, error) {
	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
		return nil, errors.NewStateError("sales order", order.Status, "cancel")
	}
	order.Status = models.OrderStatusCancelled
	if err := s.db.Save(order).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return order, nil
}

func (s *Service) transition(orderID uuid.UUID, from, to, action string) (*models.SalesOrder, error) {
	order, err := s.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, errors.NewStateError("sales order", order.Status, action)
	}
	order.Status = to
	if err := s.db.Save(order).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return order, nil
}

func (s *Service) loadOrder(tx *gorm.DB, id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := tx.First(&order, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("sales order")
		}
		return nil, errors.NewInternalError(err)
	}
	return &order, nil
}

func (s *Service) draftOrder(tx *gorm.DB, id uuid.UUID) (*models.SalesOrder, error) {
	order, err := s.loadOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDraft {
		return nil, errors.NewStateError("sales order", order.Status, "edit items on")
	}
	return order, nil
}

// recalculateTotals rebuilds the order's money columns from its items,
// then refreshes the payment status, which depends on the new total.
func (s *Service) recalculateTotals(tx *gorm.DB, order *models.SalesOrder) error {
	var items []models.SalesOrderItem
	if err := tx.Where("sales_order_id = ?", order.ID).Find(&items).Error; err != nil {
		return errors.NewInternalError(err)
	}

	subtotal := 0.0
	for _, item := range items {
		subtotal += item.LineTotal
	}
	order.Subtotal = round2(subtotal)
	order.TotalAmount = round2(subtotal - order.DiscountTotal + order.TaxTotal)

	return s.refreshPaymentStatus(tx, order)
}

// refreshPaymentStatus derives UNPAID/PART_PAID/PAID from the sum of
// payments against the current total.
func (s *Service) refreshPaymentStatus(tx *gorm.DB, order *models.SalesOrder) error {
	var paid float64
	row := tx.Model(&models.Payment{}).
		Where("sales_order_id = ?", order.ID).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&paid); err != nil {
		return errors.NewInternalError(err)
	}

	switch {
	case paid <= 0:
		order.PaymentStatus = models.PaymentStatusUnpaid
	case paid < order.TotalAmount:
		order.PaymentStatus = models.PaymentStatusPartPaid
	default:
		order.PaymentStatus = models.PaymentStatusPaid
	}

	if err := tx.Save(order).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// nextOrderNumber allocates SO-YYYYMMDD-XXXXXX, continuing the day's
// sequence.
func nextOrderNumber(tx *gorm.DB, date time.Time) (string, error) {
	prefix := "SO-" + date.Format("20060102") + "-"
	var latest []string
	err := tx.Model(&models.SalesOrder{}).Unscoped().
		Where("order_number LIKE ?", prefix+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &latest).Error
	if err != nil {
		return "", errors.NewInternalError(err)
	}

	next := 1
	if len(latest) > 0 && len(latest[0]) > len(prefix) {
		fmt.Sscanf(latest[0][len(prefix):], "%d", &next)
		next++
	}
	return fmt.Sprintf("%s%06d", prefix, next), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
