package alerts

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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
		&models.ProductionCycle{}, &models.DailyLog{},
		&models.ProductionCycleAlert{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	farm  models.Farm
	cycle models.ProductionCycle
}

func seed(t *testing.T, db *gorm.DB, cycleStatus string) fixture {
	t.Helper()
	farm := models.Farm{
		FarmCode: "AKU-001", Name: "Akumadan Farms", Status: "ACTIVE",
		DefaultTimezone: "UTC", DailyLogCutoffTime: "18:00:00",
	}
	db.Create(&farm)
	site := models.Site{FarmID: farm.ID, Name: "Akumadan", IsActive: true}
	db.Create(&site)
	gh := models.Greenhouse{FarmID: farm.ID, SiteID: site.ID, Name: "GH 1", IsActive: true}
	db.Create(&gh)

	cycle := models.ProductionCycle{
		FarmID: farm.ID, SiteID: site.ID, GreenhouseID: gh.ID,
		CycleCode: "PC-AKU-001", Crop: "Tomato", Status: cycleStatus,
		EstablishmentMethod: "DIRECT_SEEDING", SeedSupplierName: "s", SeedBatchNumber: "b",
		PlantSpacingCm: 30, RowSpacingCm: 90, InitialPlantCount: 100,
		CroppingSystem: "SOIL", MediumType: "loam", BedCount: 4, SupportSystem: "TRELLIS",
		TargetDayTemperatureC: 28, TargetNightTemperatureC: 20, TargetHumidityPercent: 70,
		TargetLightHours: 12, VentilationStrategy: "PASSIVE",
		SupervisorID: uuid.New(),
	}
	if err := db.Create(&cycle).Error; err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return fixture{farm: farm, cycle: cycle}
}

func afterCutoff() time.Time {
	return time.Date(2026, 4, 10, 19, 30, 0, 0, time.UTC)
}

func beforeCutoff() time.Time {
	return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
}

func TestSweepCreatesAlertPastCutoff(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, models.CycleStatusActive)
	sweeper := NewSweeper(db)

	created, err := sweeper.Run(afterCutoff())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	alerts, err := sweeper.Unresolved(f.farm.ID)
	if err != nil {
		t.Fatalf("unresolved: %v", err)
	}
	if len(alerts) != 1 || alerts[0].AlertType != AlertTypeMissingDailyLog {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
	if alerts[0].ProductionCycleID != f.cycle.ID {
		t.Fatal("alert not tied to the cycle")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, models.CycleStatusHarvesting)
	sweeper := NewSweeper(db)

	if _, err := sweeper.Run(afterCutoff()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	created, err := sweeper.Run(afterCutoff())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created %d alerts, want 0", created)
	}

	var count int64
	db.Model(&models.ProductionCycleAlert{}).Where("farm_id = ?", f.farm.ID).Count(&count)
	if count != 1 {
		t.Fatalf("alert count = %d, want 1", count)
	}
}

func TestSweepSkipsBeforeCutoff(t *testing.T) {
	db := testDB(t)
	seed(t, db, models.CycleStatusActive)
	sweeper := NewSweeper(db)

	created, err := sweeper.Run(beforeCutoff())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 before cutoff", created)
	}
}

func TestSweepSkipsSubmittedLogs(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, models.CycleStatusActive)
	sweeper := NewSweeper(db)

	today := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	log := models.DailyLog{
		FarmID: f.farm.ID, SiteID: f.cycle.SiteID, GreenhouseID: f.cycle.GreenhouseID,
		ProductionCycleID: f.cycle.ID, LogDate: today,
		Status: models.LogStatusSubmitted,
	}
	if err := db.Create(&log).Error; err != nil {
		t.Fatalf("create log: %v", err)
	}

	created, err := sweeper.Run(afterCutoff())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 when a submitted log exists", created)
	}
}

func TestSweepSkipsDraftOnlyAsMissing(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, models.CycleStatusActive)
	sweeper := NewSweeper(db)

	// A DRAFT log does not count; the alert still fires.
	today := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	log := models.DailyLog{
		FarmID: f.farm.ID, SiteID: f.cycle.SiteID, GreenhouseID: f.cycle.GreenhouseID,
		ProductionCycleID: f.cycle.ID, LogDate: today,
		Status: models.LogStatusDraft,
	}
	if err := db.Create(&log).Error; err != nil {
		t.Fatalf("create log: %v", err)
	}

	created, err := sweeper.Run(afterCutoff())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1 when only a draft exists", created)
	}
}

func TestSweepUsesFarmLocalCutoff(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, models.CycleStatusActive)
	db.Model(&f.farm).Update("default_timezone", "America/New_York")
	sweeper := NewSweeper(db)

	// 20:00 UTC is past the 18:00 wall-clock reading in UTC but only
	// mid-afternoon in New York, so the farm is not yet late.
	created, err := sweeper.Run(time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 before the farm-local cutoff", created)
	}

	// 23:30 UTC is 19:30 in New York; now the alert fires, dated to the
	// farm's local day.
	created, err = sweeper.Run(time.Date(2026, 4, 10, 23, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1 past the farm-local cutoff", created)
	}

	var alert models.ProductionCycleAlert
	if err := db.First(&alert, "farm_id = ?", f.farm.ID).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	want := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	if !alert.LogDate.Equal(want) {
		t.Fatalf("alert date = %v, want %v", alert.LogDate, want)
	}
}

func TestSweepSkipsNonRunningCycles(t *testing.T) {
	db := testDB(t)
	seed(t, db, models.CycleStatusCompleted)
	sweeper := NewSweeper(db)

	created, err := sweeper.Run(afterCutoff())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 for completed cycles", created)
	}
}
