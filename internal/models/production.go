// Package models - production cycle, daily log and harvest models
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Production cycle lifecycle states
const (
	CycleStatusPlanned    = "PLANNED"
	CycleStatusActive     = "ACTIVE"
	CycleStatusHarvesting = "HARVESTING"
	CycleStatusCompleted  = "COMPLETED"
	CycleStatusAbandoned  = "ABANDONED"
)

// ProductionCycle represents one grow cycle of a greenhouse.
// Farm and site references are derived from the greenhouse and the cycle
// code is allocated from the site name; neither is caller-settable.
type ProductionCycle struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID     uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	SiteID     uuid.UUID `json:"site_id" gorm:"type:uuid;index;not null"`
	GreenhouseID uuid.UUID `json:"greenhouse_id" gorm:"type:uuid;index;not null"`
	CycleCode  string    `json:"cycle_code" gorm:"uniqueIndex;not null;size:50"`
	Crop       string    `json:"crop" gorm:"not null;size:100"`
	Variety    string    `json:"variety" gorm:"size:255"`
	Status     string    `json:"status" gorm:"size:20;not null;default:'PLANNED';index"`

	// Planting & establishment
	PlantingDate        time.Time  `json:"planting_date" gorm:"not null"`
	EstablishmentMethod string     `json:"establishment_method" gorm:"size:20;not null"`
	SeedSupplierName    string     `json:"seed_supplier_name" gorm:"size:255;not null"`
	SeedBatchNumber     string     `json:"seed_batch_number" gorm:"size:255;not null"`
	NurseryStartDate    *time.Time `json:"nursery_start_date"`
	TransplantDate      *time.Time `json:"transplant_date"`
	PlantSpacingCm      float64    `json:"plant_spacing_cm" gorm:"not null"`
	RowSpacingCm        float64    `json:"row_spacing_cm" gorm:"not null"`
	PlantDensityPerSqm  *float64   `json:"plant_density_per_sqm"`
	InitialPlantCount   int        `json:"initial_plant_count" gorm:"not null"`

	// Growing medium & setup
	CroppingSystem string `json:"cropping_system" gorm:"size:20;not null"`
	MediumType     string `json:"medium_type" gorm:"size:255;not null"`
	BedCount       int    `json:"bed_count" gorm:"not null"`
	BenchCount     *int   `json:"bench_count"`
	MulchingUsed   bool   `json:"mulching_used"`
	SupportSystem  string `json:"support_system" gorm:"size:20;not null"`

	// Environmental targets
	TargetDayTemperatureC   float64  `json:"target_day_temperature_c" gorm:"not null"`
	TargetNightTemperatureC float64  `json:"target_night_temperature_c" gorm:"not null"`
	TargetHumidityPercent   float64  `json:"target_humidity_percent" gorm:"not null"`
	TargetLightHours        float64  `json:"target_light_hours" gorm:"not null"`
	VentilationStrategy     string   `json:"ventilation_strategy" gorm:"size:20;not null"`
	ShadeNetPercentage      *float64 `json:"shade_net_percentage"`

	SupervisorID uuid.UUID  `json:"supervisor_id" gorm:"type:uuid;not null"`
	CreatedBy    uuid.UUID  `json:"created_by" gorm:"type:uuid"`
	StartedAt    *time.Time `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Farm       *Farm       `json:"farm,omitempty" gorm:"foreignKey:FarmID"`
	Site       *Site       `json:"site,omitempty" gorm:"foreignKey:SiteID"`
	Greenhouse *Greenhouse `json:"greenhouse,omitempty" gorm:"foreignKey:GreenhouseID"`
	DailyLogs  []DailyLog  `json:"daily_logs,omitempty" gorm:"foreignKey:ProductionCycleID"`
}

// IsRunning reports whether the cycle is in a state that accepts daily logs
func (c *ProductionCycle) IsRunning() bool {
	return c.Status == CycleStatusActive || c.Status == CycleStatusHarvesting
}

// ActivityType defines a loggable field activity and which evidence the
// log validator demands for it. Schema holds conditional rules, e.g.
// {"conditional_rules":[{"flag":"pests_observed","dependent":"severity",
// "allowed":["LOW","MEDIUM","HIGH"]}]}
type ActivityType struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FarmID            uuid.UUID      `json:"farm_id" gorm:"type:uuid;index;not null"`
	Code              string         `json:"code" gorm:"not null;size:50;index"`
	Name              string         `json:"name" gorm:"not null;size:100"`
	Category          string         `json:"category" gorm:"size:50"`
	RequiresQuantity  bool           `json:"requires_quantity" gorm:"default:false"`
	RequiresTimeRange bool           `json:"requires_time_range" gorm:"default:false"`
	RequiresInputs    bool           `json:"requires_inputs" gorm:"default:false"`
	RequiresPhotos    bool           `json:"requires_photos" gorm:"default:false"`
	AllowedUnits      pq.StringArray `json:"allowed_units" gorm:"type:text[]"`
	Schema            JSONB          `json:"schema" gorm:"type:jsonb"`
	IsActive          bool           `json:"is_active" gorm:"default:true"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// Daily log states
const (
	LogStatusDraft     = "DRAFT"
	LogStatusSubmitted = "SUBMITTED"
)

// DailyLog holds one day's activities for a production cycle.
// At most one log exists per (cycle, date).
type DailyLog struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	FarmID            uuid.UUID  `json:"farm_id" gorm:"type:uuid;index;not null"`
	SiteID            uuid.UUID  `json:"site_id" gorm:"type:uuid;not null"`
	GreenhouseID      uuid.UUID  `json:"greenhouse_id" gorm:"type:uuid;index;not null"`
	ProductionCycleID uuid.UUID  `json:"production_cycle_id" gorm:"type:uuid;index;not null;uniqueIndex:idx_daily_logs_cycle_date"`
	LogDate           time.Time  `json:"log_date" gorm:"not null;uniqueIndex:idx_daily_logs_cycle_date"`
	Status            string     `json:"status" gorm:"size:20;not null;default:'DRAFT'"`
	IssuesNotes       string     `json:"issues_notes"`
	CreatedBy         uuid.UUID  `json:"created_by" gorm:"type:uuid"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	SubmittedBy       *uuid.UUID `json:"submitted_by" gorm:"type:uuid"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Relations
	ProductionCycle *ProductionCycle `json:"production_cycle,omitempty" gorm:"foreignKey:ProductionCycleID"`
	Items           []DailyLogItem   `json:"items,omitempty" gorm:"foreignKey:DailyLogID"`
}

// DailyLogItem is one performed activity on a daily log
type DailyLogItem struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	FarmID         uuid.UUID  `json:"farm_id" gorm:"type:uuid;index;not null"`
	DailyLogID     uuid.UUID  `json:"daily_log_id" gorm:"type:uuid;index;not null"`
	ActivityTypeID uuid.UUID  `json:"activity_type_id" gorm:"type:uuid;not null"`
	PerformedBy    *uuid.UUID `json:"performed_by" gorm:"type:uuid"`
	StartedAt      *time.Time `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	Quantity       *float64   `json:"quantity"`
	Unit           string     `json:"unit" gorm:"size:50"`
	Notes          string     `json:"notes"`
	Meta           JSONB      `json:"meta" gorm:"type:jsonb"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relations
	ActivityType *ActivityType       `json:"activity_type,omitempty" gorm:"foreignKey:ActivityTypeID"`
	Inputs       []DailyLogItemInput `json:"inputs,omitempty" gorm:"foreignKey:DailyLogItemID"`
	Photos       []DailyLogItemPhoto `json:"photos,omitempty" gorm:"foreignKey:DailyLogItemID"`
}

// DailyLogItemInput is one consumed input (fertilizer, chemical, ...)
type DailyLogItemInput struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID         uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	DailyLogItemID uuid.UUID `json:"daily_log_item_id" gorm:"type:uuid;index;not null"`
	InputName      string    `json:"input_name" gorm:"size:255"`
	Quantity       float64   `json:"quantity" gorm:"not null"`
	Unit           string    `json:"unit" gorm:"not null;size:50"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// DailyLogItemPhoto is a photo evidence reference. The file itself lives
// in external storage; only the path is recorded here.
type DailyLogItemPhoto struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID         uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	DailyLogItemID uuid.UUID `json:"daily_log_item_id" gorm:"type:uuid;index;not null"`
	FilePath       string    `json:"file_path" gorm:"not null;size:500"`
	UploadedBy     uuid.UUID `json:"uploaded_by" gorm:"type:uuid"`
	UploadedAt     time.Time `json:"uploaded_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProductionCycleAlert is raised at most once per (cycle, date, type)
type ProductionCycleAlert struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FarmID            uuid.UUID `json:"farm_id" gorm:"type:uuid;index;not null"`
	ProductionCycleID uuid.UUID `json:"production_cycle_id" gorm:"type:uuid;index;not null;uniqueIndex:idx_cycle_alerts_dedupe"`
	LogDate           time.Time `json:"log_date" gorm:"not null;uniqueIndex:idx_cycle_alerts_dedupe"`
	AlertType         string    `json:"alert_type" gorm:"size:50;not null;uniqueIndex:idx_cycle_alerts_dedupe"`
	Message           string    `json:"message"`
	Severity          string    `json:"severity" gorm:"size:20;default:'MEDIUM'"`
	IsResolved        bool      `json:"is_resolved" gorm:"default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Harvest record states
const (
	HarvestStatusDraft     = "DRAFT"
	HarvestStatusSubmitted = "SUBMITTED"
	HarvestStatusApproved  = "APPROVED"
)

// Crate quality grades eligible for aggregation
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
)

// HarvestRecord holds one day's harvest for a cycle. All total_* and
// crate_count_* columns are derived from the crates collection and are
// rewritten by the aggregator on every crate mutation; they are never
// accepted from a caller.
type HarvestRecord struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	FarmID            uuid.UUID  `json:"farm_id" gorm:"type:uuid;index;not null"`
	SiteID            uuid.UUID  `json:"site_id" gorm:"type:uuid;not null"`
	GreenhouseID      uuid.UUID  `json:"greenhouse_id" gorm:"type:uuid;index;not null"`
	ProductionCycleID uuid.UUID  `json:"production_cycle_id" gorm:"type:uuid;index;not null;uniqueIndex:idx_harvest_records_cycle_date"`
	HarvestDate       time.Time  `json:"harvest_date" gorm:"not null;uniqueIndex:idx_harvest_records_cycle_date"`
	Status            string     `json:"status" gorm:"size:20;not null;default:'DRAFT'"`
	RecordedBy        uuid.UUID  `json:"recorded_by" gorm:"type:uuid"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	ApprovedBy        *uuid.UUID `json:"approved_by" gorm:"type:uuid"`
	ApprovedAt        *time.Time `json:"approved_at"`

	TotalWeightKgA     float64 `json:"total_weight_kg_a" gorm:"default:0"`
	TotalWeightKgB     float64 `json:"total_weight_kg_b" gorm:"default:0"`
	TotalWeightKgC     float64 `json:"total_weight_kg_c" gorm:"default:0"`
	TotalWeightKgTotal float64 `json:"total_weight_kg_total" gorm:"default:0"`
	CrateCountA        int     `json:"crate_count_a" gorm:"default:0"`
	CrateCountB        int     `json:"crate_count_b" gorm:"default:0"`
	CrateCountC        int     `json:"crate_count_c" gorm:"default:0"`
	CrateCountTotal    int     `json:"crate_count_total" gorm:"default:0"`

	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	ProductionCycle *ProductionCycle `json:"production_cycle,omitempty" gorm:"foreignKey:ProductionCycleID"`
	Crates          []HarvestCrate   `json:"crates,omitempty" gorm:"foreignKey:HarvestRecordID"`
}

// HarvestCrate is a single weighed container, numbered sequentially
// within its harvest record
type HarvestCrate struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	FarmID          uuid.UUID  `json:"farm_id" gorm:"type:uuid;index;not null"`
	HarvestRecordID uuid.UUID  `json:"harvest_record_id" gorm:"type:uuid;index;not null"`
	Grade           string     `json:"grade" gorm:"size:5;not null"`
	CrateNumber     int        `json:"crate_number" gorm:"not null"`
	WeightKg        float64    `json:"weight_kg" gorm:"not null"`
	WeighedAt       time.Time  `json:"weighed_at"`
	WeighedBy       uuid.UUID  `json:"weighed_by" gorm:"type:uuid"`
	LabelCode       string     `json:"label_code" gorm:"size:100"`
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relations
	HarvestRecord *HarvestRecord `json:"harvest_record,omitempty" gorm:"foreignKey:HarvestRecordID"`
}

// =============================================================================
// HOOKS
// =============================================================================

func (m *ProductionCycle) BeforeCreate(tx *gorm.DB) error      { ensureID(&m.ID); return nil }
func (m *ActivityType) BeforeCreate(tx *gorm.DB) error         { ensureID(&m.ID); return nil }
func (m *DailyLog) BeforeCreate(tx *gorm.DB) error             { ensureID(&m.ID); return nil }
func (m *DailyLogItem) BeforeCreate(tx *gorm.DB) error         { ensureID(&m.ID); return nil }
func (m *DailyLogItemInput) BeforeCreate(tx *gorm.DB) error    { ensureID(&m.ID); return nil }
func (m *DailyLogItemPhoto) BeforeCreate(tx *gorm.DB) error    { ensureID(&m.ID); return nil }
func (m *ProductionCycleAlert) BeforeCreate(tx *gorm.DB) error { ensureID(&m.ID); return nil }
func (m *HarvestRecord) BeforeCreate(tx *gorm.DB) error        { ensureID(&m.ID); return nil }
func (m *HarvestCrate) BeforeCreate(tx *gorm.DB) error         { ensureID(&m.ID); return nil }
