package codegen

import (
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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
	// A single connection keeps the in-memory database shared and
	// serializes concurrent writers.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&models.Farm{}, &models.Site{}, &models.Greenhouse{},
		&models.Borehole{}, &models.AssetCategory{}, &models.Asset{},
		&models.ProductionCycle{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSite(t *testing.T, db *gorm.DB, name string) *models.Site {
	t.Helper()
	farm := models.Farm{FarmCode: "FRM-" + uuid.New().String()[:8], Name: "Test Farm"}
	if err := db.Create(&farm).Error; err != nil {
		t.Fatalf("create farm: %v", err)
	}
	site := models.Site{FarmID: farm.ID, Name: name, IsActive: true}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("create site: %v", err)
	}
	return &site
}

func TestBuildPrefix(t *testing.T) {
	cases := []struct {
		seed string
		want string
	}{
		{"Akumadan", "AKU"},
		{"ak", "AKX"},
		{"a", "AXX"},
		{"", "XXX"},
		{"  9 North-Field ", "9NO"},
		{"--!!", "XXX"},
	}
	for _, tc := range cases {
		if got := BuildPrefix(tc.seed); got != tc.want {
			t.Errorf("BuildPrefix(%q) = %q, want %q", tc.seed, got, tc.want)
		}
	}
}

func TestAllocateFirstAndNext(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")
	alloc := NewAllocator()

	scope, err := BoreholeScope(db, site.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}

	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "AKU-001" {
		t.Fatalf("first code = %q, want AKU-001", code)
	}

	db.Create(&models.Borehole{FarmID: site.FarmID, SiteID: site.ID, BoreholeCode: code})

	code, err = alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "AKU-002" {
		t.Fatalf("second code = %q, want AKU-002", code)
	}
}

func TestAllocateConsidersLegacyColumn(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")
	alloc := NewAllocator()

	// A row from before the column rename holds its code in the legacy
	// column only.
	db.Create(&models.Borehole{FarmID: site.FarmID, SiteID: site.ID, Code: "AKU-007"})

	scope, err := BoreholeScope(db, site.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "AKU-008" {
		t.Fatalf("code = %q, want AKU-008", code)
	}
}

func TestAllocateConsidersSoftDeletedRows(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")
	alloc := NewAllocator()

	borehole := models.Borehole{FarmID: site.FarmID, SiteID: site.ID, BoreholeCode: "AKU-003"}
	db.Create(&borehole)
	db.Delete(&borehole)

	scope, err := BoreholeScope(db, site.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "AKU-004" {
		t.Fatalf("code = %q, want AKU-004: deleted rows must keep their codes reserved", code)
	}
}

func TestAllocateIgnoresForeignPrefixes(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")
	alloc := NewAllocator()

	db.Create(&models.Borehole{FarmID: site.FarmID, SiteID: site.ID, BoreholeCode: "OLD-099"})

	scope, err := BoreholeScope(db, site.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "AKU-001" {
		t.Fatalf("code = %q, want AKU-001", code)
	}
}

func TestAllocateMissingSite(t *testing.T) {
	db := testDB(t)
	_, err := BoreholeScope(db, uuid.New())
	if err == nil {
		t.Fatal("expected error for missing site")
	}
	if _, ok := err.(*errors.NotFoundError); !ok {
		t.Fatalf("got %T, want *errors.NotFoundError", err)
	}
}

func TestAllocateSuffixOutgrowsWidth(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")
	alloc := NewAllocator()

	db.Create(&models.Borehole{FarmID: site.FarmID, SiteID: site.ID, BoreholeCode: "AKU-999"})

	scope, err := BoreholeScope(db, site.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "AKU-1000" {
		t.Fatalf("code = %q, want AKU-1000", code)
	}
}

func TestAllocateConcurrentDistinct(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")
	alloc := NewAllocator()

	const n = 20
	var mu sync.Mutex
	codes := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope, err := BoreholeScope(db, site.ID)
			if err != nil {
				t.Errorf("scope: %v", err)
				return
			}
			code, err := alloc.Allocate(scope)
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			// Persist under the same allocation scope key so the next
			// caller's scan sees this code.
			if err := db.Create(&models.Borehole{
				FarmID: site.FarmID, SiteID: site.ID, BoreholeCode: code,
			}).Error; err != nil {
				t.Errorf("persist: %v", err)
				return
			}
			mu.Lock()
			codes[code] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(codes) != n {
		t.Fatalf("got %d distinct codes, want %d", len(codes), n)
	}
}

func TestAssetScopeWidth(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")

	category := models.AssetCategory{Code: "PMP", Name: "Pumps"}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}

	alloc := NewAllocator()
	scope, err := AssetScope(db, site.FarmID, category.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "PMP-00001" {
		t.Fatalf("code = %q, want PMP-00001", code)
	}
}

func TestCycleScopeSharedAcrossGreenhouses(t *testing.T) {
	db := testDB(t)
	site := seedSite(t, db, "Akumadan")

	gh1 := models.Greenhouse{FarmID: site.FarmID, SiteID: site.ID, Name: "GH 1", IsActive: true}
	gh2 := models.Greenhouse{FarmID: site.FarmID, SiteID: site.ID, Name: "GH 2", IsActive: true}
	db.Create(&gh1)
	db.Create(&gh2)

	alloc := NewAllocator()

	scope, err := CycleScope(db, gh1.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err := alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "PC-AKU-001" {
		t.Fatalf("code = %q, want PC-AKU-001", code)
	}
	db.Create(&models.ProductionCycle{
		FarmID: site.FarmID, SiteID: site.ID, GreenhouseID: gh1.ID,
		CycleCode: code, Crop: "Tomato", Status: models.CycleStatusPlanned,
		EstablishmentMethod: "DIRECT_SEEDING", SeedSupplierName: "s", SeedBatchNumber: "b",
		PlantSpacingCm: 30, RowSpacingCm: 90, InitialPlantCount: 100,
		CroppingSystem: "SOIL", MediumType: "loam", BedCount: 4, SupportSystem: "TRELLIS",
		TargetDayTemperatureC: 28, TargetNightTemperatureC: 20, TargetHumidityPercent: 70,
		TargetLightHours: 12, VentilationStrategy: "PASSIVE",
		SupervisorID: uuid.New(),
	})

	// The sibling greenhouse continues the same site-wide sequence.
	scope, err = CycleScope(db, gh2.ID)
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	code, err = alloc.Allocate(scope)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if code != "PC-AKU-002" {
		t.Fatalf("code = %q, want PC-AKU-002", code)
	}
}

func TestFarmScope(t *testing.T) {
	db := testDB(t)
	alloc := NewAllocator()

	for i, want := range []string{"GRE-001", "GRE-002"} {
		code, err := alloc.Allocate(FarmScope(db, "Greenfield"))
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		if code != want {
			t.Fatalf("code = %q, want %q", code, want)
		}
		if err := db.Create(&models.Farm{FarmCode: code, Name: fmt.Sprintf("Greenfield %d", i)}).Error; err != nil {
			t.Fatalf("persist: %v", err)
		}
	}
}
