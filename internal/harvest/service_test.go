package harvest

import (
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
		&models.Farm{}, &models.Site{}, &models.Greenhouse{},
		&models.ProductionCycle{}, &models.HarvestRecord{}, &models.HarvestCrate{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCycle(t *testing.T, db *gorm.DB) *models.ProductionCycle {
	t.Helper()
	farm := models.Farm{FarmCode: "AKU-001", Name: "Akumadan Farms"}
	db.Create(&farm)
	site := models.Site{FarmID: farm.ID, Name: "Akumadan", IsActive: true}
	db.Create(&site)
	gh := models.Greenhouse{FarmID: farm.ID, SiteID: site.ID, Name: "GH 1", IsActive: true}
	db.Create(&gh)

	cycle := &models.ProductionCycle{
		FarmID: farm.ID, SiteID: site.ID, GreenhouseID: gh.ID,
		CycleCode: "PC-AKU-001", Crop: "Tomato", Status: models.CycleStatusHarvesting,
		EstablishmentMethod: "DIRECT_SEEDING", SeedSupplierName: "s", SeedBatchNumber: "b",
		PlantSpacingCm: 30, RowSpacingCm: 90, InitialPlantCount: 100,
		CroppingSystem: "SOIL", MediumType: "loam", BedCount: 4, SupportSystem: "TRELLIS",
		TargetDayTemperatureC: 28, TargetNightTemperatureC: 20, TargetHumidityPercent: 70,
		TargetLightHours: 12, VentilationStrategy: "PASSIVE",
		SupervisorID: uuid.New(),
	}
	if err := db.Create(cycle).Error; err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return cycle
}

func packer() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Permissions: []string{
		auth.PermHarvestWrite, auth.PermHarvestSubmit,
	}}
}

func approver() auth.Actor {
	a := packer()
	a.Permissions = append(a.Permissions, auth.PermHarvestApprove)
	return a
}

func overrider() auth.Actor {
	a := packer()
	a.Permissions = append(a.Permissions, auth.PermHarvestOverrideStatus)
	return a
}

func harvestDate() time.Time {
	return time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
}

func TestAggregatesByGrade(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, err := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}

	record, err = svc.AddCrates(record.ID, []CrateInput{
		{Grade: "A", WeightKg: 10.5},
		{Grade: "A", WeightKg: 15.3},
		{Grade: "B", WeightKg: 8.2},
	}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add crates: %v", err)
	}

	if record.TotalWeightKgA != 25.8 {
		t.Errorf("weight A = %v, want 25.8", record.TotalWeightKgA)
	}
	if record.TotalWeightKgB != 8.2 {
		t.Errorf("weight B = %v, want 8.2", record.TotalWeightKgB)
	}
	if record.TotalWeightKgC != 0 {
		t.Errorf("weight C = %v, want 0", record.TotalWeightKgC)
	}
	if record.TotalWeightKgTotal != 34.0 {
		t.Errorf("weight total = %v, want 34.0", record.TotalWeightKgTotal)
	}
	if record.CrateCountA != 2 || record.CrateCountB != 1 || record.CrateCountTotal != 3 {
		t.Errorf("counts A=%d B=%d total=%d, want 2/1/3",
			record.CrateCountA, record.CrateCountB, record.CrateCountTotal)
	}
}

func TestCrateNumbersContinue(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, err := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	record, err = svc.AddCrates(record.ID, []CrateInput{
		{Grade: "A", WeightKg: 10},
		{Grade: "B", WeightKg: 9},
	}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add crates: %v", err)
	}
	record, err = svc.AddCrates(record.ID, []CrateInput{
		{Grade: "C", WeightKg: 7},
	}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add more crates: %v", err)
	}

	numbers := map[int]bool{}
	for _, crate := range record.Crates {
		numbers[crate.CrateNumber] = true
	}
	for want := 1; want <= 3; want++ {
		if !numbers[want] {
			t.Fatalf("missing crate number %d in %v", want, numbers)
		}
	}
}

func TestRecalculateAfterUpdateAndDelete(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	record, err := svc.AddCrates(record.ID, []CrateInput{
		{Grade: "A", WeightKg: 10},
		{Grade: "B", WeightKg: 5},
	}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add crates: %v", err)
	}

	var crateB models.HarvestCrate
	if err := db.First(&crateB, "harvest_record_id = ? AND grade = ?", record.ID, "B").Error; err != nil {
		t.Fatalf("find crate: %v", err)
	}

	record, err = svc.UpdateCrate(crateB.ID, CrateInput{Grade: "A", WeightKg: 6.55}, packer())
	if err != nil {
		t.Fatalf("update crate: %v", err)
	}
	if record.TotalWeightKgA != 16.55 || record.CrateCountA != 2 || record.CrateCountB != 0 {
		t.Fatalf("aggregates after regrade: A=%v/%d B=%d",
			record.TotalWeightKgA, record.CrateCountA, record.CrateCountB)
	}

	record, err = svc.DeleteCrate(crateB.ID, packer())
	if err != nil {
		t.Fatalf("delete crate: %v", err)
	}
	if record.TotalWeightKgTotal != 10 || record.CrateCountTotal != 1 {
		t.Fatalf("aggregates after delete: total=%v count=%d",
			record.TotalWeightKgTotal, record.CrateCountTotal)
	}
}

func TestUnknownGradeRejected(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	_, err := svc.AddCrates(record.ID, []CrateInput{{Grade: "D", WeightKg: 4}}, time.Now(), packer())
	ve, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("got %T, want *errors.ValidationError", err)
	}
	if ve.Fields[0].Field != "crates.0.grade" {
		t.Fatalf("field = %q, want crates.0.grade", ve.Fields[0].Field)
	}
}

func TestUnknownGradeIgnoredInBuckets(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeIgnore)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	record, err := svc.AddCrates(record.ID, []CrateInput{
		{Grade: "A", WeightKg: 10},
		{Grade: "D", WeightKg: 4},
	}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add crates: %v", err)
	}
	if record.TotalWeightKgA != 10 || record.CrateCountA != 1 {
		t.Fatalf("grade A bucket polluted: %v/%d", record.TotalWeightKgA, record.CrateCountA)
	}
	// The grand totals stay the sum of the A/B/C buckets; the ungraded
	// crate is stored but never aggregated.
	if record.TotalWeightKgTotal != 10 || record.CrateCountTotal != 1 {
		t.Fatalf("grand totals must equal the graded buckets: %v/%d",
			record.TotalWeightKgTotal, record.CrateCountTotal)
	}
	if len(record.Crates) != 2 {
		t.Fatalf("stored crates = %d, want 2", len(record.Crates))
	}
}

func TestUpdateCrateClearsLabelAndNotes(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	record, err := svc.AddCrates(record.ID, []CrateInput{
		{Grade: "A", WeightKg: 10, LabelCode: "LBL-1", Notes: "bruised"},
	}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add crates: %v", err)
	}

	record, err = svc.UpdateCrate(record.Crates[0].ID, CrateInput{Grade: "A", WeightKg: 10}, packer())
	if err != nil {
		t.Fatalf("update crate: %v", err)
	}
	if record.Crates[0].LabelCode != "" || record.Crates[0].Notes != "" {
		t.Fatalf("label/notes not cleared: %q/%q",
			record.Crates[0].LabelCode, record.Crates[0].Notes)
	}
}

func TestRecordDateKeepsCallerDay(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	// Midnight in a UTC+5 zone is the previous evening in UTC; the
	// record still lands on the day the caller named.
	accra := time.FixedZone("UTC+5", 5*60*60)
	record, err := svc.CreateRecord(cycle.ID, time.Date(2026, 5, 2, 0, 0, 0, 0, accra), packer())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if !record.HarvestDate.Equal(harvestDate()) {
		t.Fatalf("harvest date = %v, want %v", record.HarvestDate, harvestDate())
	}
}

func TestSubmitNeedsCrates(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	_, err := svc.Submit(record.ID, time.Now(), packer())
	if _, ok := err.(*errors.ValidationError); !ok {
		t.Fatalf("got %T, want *errors.ValidationError", err)
	}
}

func TestCrateEditsBlockedAfterSubmit(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	record, err := svc.AddCrates(record.ID, []CrateInput{{Grade: "A", WeightKg: 10}}, time.Now(), packer())
	if err != nil {
		t.Fatalf("add crates: %v", err)
	}
	if _, err := svc.Submit(record.ID, time.Now(), packer()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	crateID := record.Crates[0].ID
	_, err = svc.DeleteCrate(crateID, packer())
	pe, ok := err.(*errors.PermissionDeniedError)
	if !ok {
		t.Fatalf("got %T (%v), want *errors.PermissionDeniedError", err, err)
	}
	if pe.Error() == "permission denied" {
		t.Fatal("status-based refusal must carry its own reason")
	}

	// The override permission unblocks the edit and the aggregates
	// follow.
	updated, err := svc.DeleteCrate(crateID, overrider())
	if err != nil {
		t.Fatalf("override delete: %v", err)
	}
	if updated.CrateCountTotal != 0 || updated.TotalWeightKgTotal != 0 {
		t.Fatalf("aggregates not recomputed: %d/%v",
			updated.CrateCountTotal, updated.TotalWeightKgTotal)
	}
}

func TestApproveFlow(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	record, _ := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	if _, err := svc.AddCrates(record.ID, []CrateInput{{Grade: "A", WeightKg: 10}}, time.Now(), packer()); err != nil {
		t.Fatalf("add crates: %v", err)
	}

	// Approving a DRAFT record is out of order.
	if _, err := svc.Approve(record.ID, time.Now(), approver()); err == nil {
		t.Fatal("expected StateError approving a DRAFT record")
	}

	if _, err := svc.Submit(record.ID, time.Now(), packer()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Approval needs the permission.
	if _, err := svc.Approve(record.ID, time.Now(), packer()); err == nil {
		t.Fatal("expected PermissionDeniedError")
	}

	approved, err := svc.Approve(record.ID, time.Now(), approver())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.HarvestStatusApproved || approved.ApprovedBy == nil {
		t.Fatal("approval not recorded")
	}
}

func TestOneRecordPerCycleAndDate(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	svc := NewService(db, GradeReject)

	if _, err := svc.CreateRecord(cycle.ID, harvestDate(), packer()); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	if _, ok := err.(*errors.ConflictError); !ok {
		t.Fatalf("got %T, want *errors.ConflictError", err)
	}
}

func TestRecordNeedsHarvestingCycle(t *testing.T) {
	db := testDB(t)
	cycle := seedCycle(t, db)
	db.Model(cycle).Update("status", models.CycleStatusActive)
	svc := NewService(db, GradeReject)

	_, err := svc.CreateRecord(cycle.ID, harvestDate(), packer())
	if _, ok := err.(*errors.StateError); !ok {
		t.Fatalf("got %T, want *errors.StateError", err)
	}
}
