package sales

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&models.Farm{}, &models.Customer{}, &models.HarvestLot{},
		&models.SalesOrder{}, &models.SalesOrderItem{}, &models.Payment{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	farm     models.Farm
	customer models.Customer
	lot      models.HarvestLot
}

func seed(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	f := fixture{
		farm:     models.Farm{FarmCode: "AKU-001", Name: "Akumadan Farms"},
		customer: models.Customer{Name: "Accra Fresh Markets", IsActive: true},
	}
	db.Create(&f.farm)
	db.Create(&f.customer)
	f.lot = models.HarvestLot{FarmID: f.farm.ID, LotCode: "LOT-001", Crop: "Tomato", WeightKg: 120}
	db.Create(&f.lot)
	return f
}

func seller() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Permissions: []string{
		auth.PermSalesWrite, auth.PermSalesTransition, auth.PermPaymentsRecord,
	}}
}

func lotLine(f fixture, qty, price, discount float64) ItemInput {
	lotID := f.lot.ID
	return ItemInput{
		HarvestLotID:   &lotID,
		Description:    "Grade A tomatoes",
		Quantity:       qty,
		Unit:           "kg",
		UnitPrice:      price,
		DiscountAmount: discount,
	}
}

func orderDate() time.Time {
	return time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
}

func TestDerivedTotals(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	order, err := svc.CreateOrder(OrderInput{
		FarmID:     f.farm.ID,
		CustomerID: f.customer.ID,
		OrderDate:  orderDate(),
		Currency:   "GHS",
		TaxTotal:   50,
		Items: []ItemInput{
			lotLine(f, 100, 500, 100),  // 49900
			lotLine(f, 10, 2000, 0),    // 20000
			lotLine(f, 0.5, 100, 0),    // 50
		},
	}, seller())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if order.Subtotal != 69950 {
		t.Errorf("subtotal = %v, want 69950", order.Subtotal)
	}
	if order.TotalAmount != 70000 {
		t.Errorf("total = %v, want 70000", order.TotalAmount)
	}
	if order.PaymentStatus != models.PaymentStatusUnpaid {
		t.Errorf("payment status = %q, want UNPAID", order.PaymentStatus)
	}
	got := map[float64]bool{}
	for _, item := range order.Items {
		got[item.LineTotal] = true
	}
	for _, want := range []float64{49900, 20000, 50} {
		if !got[want] {
			t.Errorf("missing line total %v in %v", want, got)
		}
	}
	if !strings.HasPrefix(order.OrderNumber, "SO-20260510-") {
		t.Errorf("order number = %q", order.OrderNumber)
	}
}

func TestProvenanceExactlyOne(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	// None set.
	none := lotLine(f, 1, 10, 0)
	none.HarvestLotID = nil
	_, err := svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{none},
	}, seller())
	ve, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("got %T, want *errors.ValidationError", err)
	}
	if ve.Fields[0].Field != "items.0.provenance" {
		t.Fatalf("field = %q", ve.Fields[0].Field)
	}

	// Two set.
	two := lotLine(f, 1, 10, 0)
	cycleID := uuid.New()
	two.ProductionCycleID = &cycleID
	_, err = svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{two},
	}, seller())
	if _, ok := err.(*errors.ValidationError); !ok {
		t.Fatalf("got %T, want *errors.ValidationError", err)
	}

	var count int64
	db.Model(&models.SalesOrder{}).Count(&count)
	if count != 0 {
		t.Fatal("invalid orders must not persist")
	}
}

func TestItemMutationsRecomputeTotals(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	order, err := svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 10, 100, 0)},
	}, seller())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	order, err = svc.AddLineItem(order.ID, lotLine(f, 5, 40, 20))
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if order.Subtotal != 1180 {
		t.Fatalf("subtotal = %v, want 1180", order.Subtotal)
	}

	var added models.SalesOrderItem
	if err := db.First(&added, "sales_order_id = ? AND quantity = ?", order.ID, 5.0).Error; err != nil {
		t.Fatalf("find added line: %v", err)
	}

	order, err = svc.UpdateLineItem(added.ID, lotLine(f, 5, 40, 0))
	if err != nil {
		t.Fatalf("update line: %v", err)
	}
	if order.Subtotal != 1200 {
		t.Fatalf("subtotal = %v, want 1200", order.Subtotal)
	}

	order, err = svc.RemoveLineItem(added.ID)
	if err != nil {
		t.Fatalf("remove line: %v", err)
	}
	if order.Subtotal != 1000 {
		t.Fatalf("subtotal = %v, want 1000", order.Subtotal)
	}
}

func TestItemEditsOnlyOnDraft(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	order, err := svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 10, 100, 0)},
	}, seller())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Confirm(order.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err = svc.AddLineItem(order.ID, lotLine(f, 1, 10, 0))
	if _, ok := err.(*errors.StateError); !ok {
		t.Fatalf("got %T, want *errors.StateError", err)
	}
}

func TestPaymentStatusThresholds(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	order, err := svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 10, 100, 0)}, // total 1000
	}, seller())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Confirm(order.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	order, err = svc.AddPayment(order.ID, 400, "MOMO", "ref-1", time.Now(), seller())
	if err != nil {
		t.Fatalf("payment 1: %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPartPaid {
		t.Fatalf("status = %q, want PART_PAID", order.PaymentStatus)
	}

	order, err = svc.AddPayment(order.ID, 600, "CASH", "ref-2", time.Now(), seller())
	if err != nil {
		t.Fatalf("payment 2: %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("status = %q, want PAID", order.PaymentStatus)
	}
}

func TestPaymentsNotOnDraftOrCancelled(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	order, err := svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 10, 100, 0)},
	}, seller())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.AddPayment(order.ID, 100, "CASH", "", time.Now(), seller())
	if _, ok := err.(*errors.StateError); !ok {
		t.Fatalf("got %T, want *errors.StateError", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	order, err := svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 10, 100, 0)},
	}, seller())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Dispatch before confirm is out of order.
	if _, err := svc.Dispatch(order.ID); err == nil {
		t.Fatal("expected StateError dispatching a DRAFT order")
	}

	if _, err := svc.Confirm(order.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Dispatch(order.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := svc.Invoice(order.ID); err != nil {
		t.Fatalf("invoice: %v", err)
	}

	// Completion waits for full payment.
	if _, err := svc.Complete(order.ID); err == nil {
		t.Fatal("expected StateError completing an unpaid order")
	}
	if _, err := svc.AddPayment(order.ID, 1000, "CASH", "", time.Now(), seller()); err != nil {
		t.Fatalf("payment: %v", err)
	}
	done, err := svc.Complete(order.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.OrderStatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", done.Status)
	}

	// Completed orders cannot be cancelled.
	if _, err := svc.Cancel(order.ID); err == nil {
		t.Fatal("expected StateError cancelling a COMPLETED order")
	}
}

func TestOrderNumbersSequencePerDay(t *testing.T) {
	db := testDB(t)
	f := seed(t, db)
	svc := NewService(db)

	var first, second *models.SalesOrder
	var err error
	first, err = svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 1, 10, 0)},
	}, seller())
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err = svc.CreateOrder(OrderInput{
		FarmID: f.farm.ID, CustomerID: f.customer.ID, OrderDate: orderDate(),
		Items: []ItemInput{lotLine(f, 1, 10, 0)},
	}, seller())
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if first.OrderNumber != "SO-20260510-000001" {
		t.Errorf("first = %q", first.OrderNumber)
	}
	if second.OrderNumber != "SO-20260510-000002" {
		t.Errorf("second = %q", second.OrderNumber)
	}
}
