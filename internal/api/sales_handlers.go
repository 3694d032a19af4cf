package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
	"github.com/aethra/farmops/internal/sales"
)

// CreateSalesOrder creates a draft order with its lines
func (h *Handler) CreateSalesOrder(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermSalesWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "sales order"))
		return
	}
	var in sales.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	if in.FarmID == uuid.Nil {
		in.FarmID = actor.FarmID
	}
	order, err := h.orders.CreateOrder(in, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sales_order": order})
}

// GetSalesOrder returns an order with items and payments
func (h *Handler) GetSalesOrder(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	order, err := h.orders.Get(id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order": order})
}

// AddOrderItem appends a line to a draft order
func (h *Handler) AddOrderItem(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermSalesWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "sales order"))
		return
	}
	orderID, ok := pathUUID(c)
	if !ok {
		return
	}
	var in sales.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	order, err := h.orders.AddLineItem(orderID, in)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order": order})
}

// UpdateOrderItem rewrites a line on a draft order
func (h *Handler) UpdateOrderItem(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermSalesWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "sales order"))
		return
	}
	itemID, ok := pathUUID(c)
	if !ok {
		return
	}
	var in sales.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	order, err := h.orders.UpdateLineItem(itemID, in)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order": order})
}

// RemoveOrderItem deletes a line from a draft order
func (h *Handler) RemoveOrderItem(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermSalesWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "sales order"))
		return
	}
	itemID, ok := pathUUID(c)
	if !ok {
		return
	}
	order, err := h.orders.RemoveLineItem(itemID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order": order})
}

type addPaymentRequest struct {
	Amount      float64   `json:"amount" binding:"required"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference"`
	PaymentDate time.Time `json:"payment_date"`
}

// AddPayment records a settlement against an order
func (h *Handler) AddPayment(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermPaymentsRecord) {
		respondErr(c, errors.NewPermissionDeniedError("record", "payment"))
		return
	}
	orderID, ok := pathUUID(c)
	if !ok {
		return
	}
	var req addPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	paidAt := req.PaymentDate
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	order, err := h.orders.AddPayment(orderID, req.Amount, req.Method, req.Reference, paidAt, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order": order})
}

func (h *Handler) transitionOrder(c *gin.Context, fn func() (*models.SalesOrder, error)) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermSalesTransition) {
		respondErr(c, errors.NewPermissionDeniedError("transition", "sales order"))
		return
	}
	order, err := fn()
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales_order": order})
}

func (h *Handler) ConfirmOrder(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionOrder(c, func() (*models.SalesOrder, error) { return h.orders.Confirm(id) })
}

func (h *Handler) DispatchOrder(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionOrder(c, func() (*models.SalesOrder, error) { return h.orders.Dispatch(id) })
}

func (h *Handler) InvoiceOrder(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionOrder(c, func() (*models.SalesOrder, error) { return h.orders.Invoice(id) })
}

func (h *Handler) CompleteOrder(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionOrder(c, func() (*models.SalesOrder, error) { return h.orders.Complete(id) })
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionOrder(c, func() (*models.SalesOrder, error) { return h.orders.Cancel(id) })
}
