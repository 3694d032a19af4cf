// Package cycle manages the production cycle lifecycle.
//
// A cycle moves PLANNED -> ACTIVE -> HARVESTING -> COMPLETED, with
// ABANDONED reachable from any state before COMPLETED. A greenhouse
// carries at most one running (ACTIVE or HARVESTING) cycle at a time.
package cycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/codegen"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// Establishment method values
const (
	MethodDirectSeeding = "DIRECT_SEEDING"
	MethodTransplanting = "TRANSPLANTING"
)

// Service drives cycle creation and state transitions
type Service struct {
	db    *gorm.DB
	codes *codegen.Allocator
}

func NewService(db *gorm.DB, codes *codegen.Allocator) *Service {
	return &Service{db: db, codes: codes}
}

// CreateInput carries everything a caller may supply when opening a
// cycle. FarmID and SiteID are optional; when present they are checked
// against the values derived from the greenhouse and rejected on
// mismatch. The cycle code is never caller-settable.
type CreateInput struct {
	GreenhouseID uuid.UUID  `json:"greenhouse_id"`
	FarmID       *uuid.UUID `json:"farm_id"`
	SiteID       *uuid.UUID `json:"site_id"`

	Crop         string    `json:"crop"`
	Variety      string    `json:"variety"`
	SupervisorID uuid.UUID `json:"supervisor_id"`
	Notes        string    `json:"notes"`

	PlantingDate        time.Time  `json:"planting_date"`
	EstablishmentMethod string     `json:"establishment_method"`
	SeedSupplierName    string     `json:"seed_supplier_name"`
	SeedBatchNumber     string     `json:"seed_batch_number"`
	NurseryStartDate    *time.Time `json:"nursery_start_date"`
	TransplantDate      *time.Time `json:"transplant_date"`
	PlantSpacingCm      float64    `json:"plant_spacing_cm"`
	RowSpacingCm        float64    `json:"row_spacing_cm"`
	PlantDensityPerSqm  *float64   `json:"plant_density_per_sqm"`
	InitialPlantCount   int        `json:"initial_plant_count"`

	CroppingSystem string `json:"cropping_system"`
	MediumType     string `json:"medium_type"`
	BedCount       int    `json:"bed_count"`
	BenchCount     *int   `json:"bench_count"`
	MulchingUsed   bool   `json:"mulching_used"`
	SupportSystem  string `json:"support_system"`

	TargetDayTemperatureC   float64  `json:"target_day_temperature_c"`
	TargetNightTemperatureC float64  `json:"target_night_temperature_c"`
	TargetHumidityPercent   float64  `json:"target_humidity_percent"`
	TargetLightHours        float64  `json:"target_light_hours"`
	VentilationStrategy     string   `json:"ventilation_strategy"`
	ShadeNetPercentage      *float64 `json:"shade_net_percentage"`
}

// validate accumulates every field failure before anything persists.
// The establishment, medium and environment groups are all-or-nothing:
// a cycle cannot be opened with a partial setup record.
func (in *CreateInput) validate() []errors.FieldError {
	var fields []errors.FieldError
	require := func(ok bool, field, msg string) {
		if !ok {
			fields = append(fields, errors.FieldError{Field: field, Message: msg})
		}
	}

	require(in.GreenhouseID != uuid.Nil, "greenhouse_id", "greenhouse is required")
	require(in.Crop != "", "crop", "crop is required")
	require(in.SupervisorID != uuid.Nil, "supervisor_id", "supervisor is required")

	// Planting & establishment
	require(!in.PlantingDate.IsZero(), "planting_date", "planting date is required")
	require(in.SeedSupplierName != "", "seed_supplier_name", "seed supplier is required")
	require(in.SeedBatchNumber != "", "seed_batch_number", "seed batch number is required")
	require(in.PlantSpacingCm > 0, "plant_spacing_cm", "plant spacing must be positive")
	require(in.RowSpacingCm > 0, "row_spacing_cm", "row spacing must be positive")
	require(in.InitialPlantCount > 0, "initial_plant_count", "initial plant count must be positive")
	switch in.EstablishmentMethod {
	case MethodDirectSeeding:
	case MethodTransplanting:
		require(in.NurseryStartDate != nil, "nursery_start_date", "nursery start date is required when transplanting")
		require(in.TransplantDate != nil, "transplant_date", "transplant date is required when transplanting")
	default:
		fields = append(fields, errors.FieldError{
			Field:   "establishment_method",
			Message: fmt.Sprintf("must be %s or %s", MethodDirectSeeding, MethodTransplanting),
		})
	}

	// Growing medium & setup
	require(in.CroppingSystem != "", "cropping_system", "cropping system is required")
	require(in.MediumType != "", "medium_type", "medium type is required")
	require(in.BedCount > 0, "bed_count", "bed count must be positive")
	require(in.SupportSystem != "", "support_system", "support system is required")

	// Environmental targets
	require(in.TargetDayTemperatureC != 0, "target_day_temperature_c", "day temperature target is required")
	require(in.TargetNightTemperatureC != 0, "target_night_temperature_c", "night temperature target is required")
	require(in.TargetHumidityPercent > 0, "target_humidity_percent", "humidity target is required")
	require(in.TargetLightHours > 0, "target_light_hours", "light hours target is required")
	require(in.VentilationStrategy != "", "ventilation_strategy", "ventilation strategy is required")

	return fields
}

// Create opens a new PLANNED cycle in the greenhouse. Farm and site are
// derived from the greenhouse; caller-supplied values that disagree are
// rejected rather than silently corrected.
func (s *Service) Create(in CreateInput, actor auth.Actor) (*models.ProductionCycle, error) {
	fields := in.validate()
	if len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}

	var greenhouse models.Greenhouse
	if err := s.db.First(&greenhouse, "id = ?", in.GreenhouseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("greenhouse")
		}
		return nil, errors.NewInternalError(err)
	}

	if in.FarmID != nil && *in.FarmID != greenhouse.FarmID {
		fields = append(fields, errors.FieldError{Field: "farm_id", Message: "does not match the greenhouse's farm"})
	}
	if in.SiteID != nil && *in.SiteID != greenhouse.SiteID {
		fields = append(fields, errors.FieldError{Field: "site_id", Message: "does not match the greenhouse's site"})
	}
	if len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}

	scope, err := codegen.CycleScope(s.db, greenhouse.ID)
	if err != nil {
		return nil, err
	}
	code, err := s.codes.Allocate(scope)
	if err != nil {
		return nil, err
	}

	cycle := &models.ProductionCycle{
		FarmID:       greenhouse.FarmID,
		SiteID:       greenhouse.SiteID,
		GreenhouseID: greenhouse.ID,
		CycleCode:    code,
		Crop:         in.Crop,
		Variety:      in.Variety,
		Status:       models.CycleStatusPlanned,

		PlantingDate:        in.PlantingDate,
		EstablishmentMethod: in.EstablishmentMethod,
		SeedSupplierName:    in.SeedSupplierName,
		SeedBatchNumber:     in.SeedBatchNumber,
		NurseryStartDate:    in.NurseryStartDate,
		TransplantDate:      in.TransplantDate,
		PlantSpacingCm:      in.PlantSpacingCm,
		RowSpacingCm:        in.RowSpacingCm,
		PlantDensityPerSqm:  in.PlantDensityPerSqm,
		InitialPlantCount:   in.InitialPlantCount,

		CroppingSystem: in.CroppingSystem,
		MediumType:     in.MediumType,
		BedCount:       in.BedCount,
		BenchCount:     in.BenchCount,
		MulchingUsed:   in.MulchingUsed,
		SupportSystem:  in.SupportSystem,

		TargetDayTemperatureC:   in.TargetDayTemperatureC,
		TargetNightTemperatureC: in.TargetNightTemperatureC,
		TargetHumidityPercent:   in.TargetHumidityPercent,
		TargetLightHours:        in.TargetLightHours,
		VentilationStrategy:     in.VentilationStrategy,
		ShadeNetPercentage:      in.ShadeNetPercentage,

		SupervisorID: in.SupervisorID,
		CreatedBy:    actor.UserID,
		Notes:        in.Notes,
	}

	if err := s.db.Create(cycle).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cycle, nil
}

// Get loads a cycle by id
func (s *Service) Get(id uuid.UUID) (*models.ProductionCycle, error) {
	var cycle models.ProductionCycle
	if err := s.db.First(&cycle, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("production cycle")
		}
		return nil, errors.NewInternalError(err)
	}
	return &cycle, nil
}

// Start activates a PLANNED cycle. It fails with a ConflictError when
// the greenhouse already has a running cycle.
func (s *Service) Start(id uuid.UUID, now time.Time) (*models.ProductionCycle, error) {
	cycle, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleStatusPlanned {
		return nil, errors.NewStateError("production cycle", cycle.Status, "start")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var running int64
		if err := tx.Model(&models.ProductionCycle{}).
			Where("greenhouse_id = ? AND id <> ? AND status IN ?",
				cycle.GreenhouseID, cycle.ID,
				[]string{models.CycleStatusActive, models.CycleStatusHarvesting}).
			Count(&running).Error; err != nil {
			return errors.NewInternalError(err)
		}
		if running > 0 {
			return errors.NewConflictErrorf("greenhouse already has an active production cycle")
		}

		cycle.Status = models.CycleStatusActive
		cycle.StartedAt = &now
		if err := tx.Save(cycle).Error; err != nil {
			return errors.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cycle, nil
}

// BeginHarvesting moves an ACTIVE cycle into HARVESTING
func (s *Service) BeginHarvesting(id uuid.UUID) (*models.ProductionCycle, error) {
	cycle, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleStatusActive {
		return nil, errors.NewStateError("production cycle", cycle.Status, "begin harvesting on")
	}
	cycle.Status = models.CycleStatusHarvesting
	if err := s.db.Save(cycle).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cycle, nil
}

// Complete closes a HARVESTING cycle. Completion from any other state
// is a StateError; a cycle that never harvested must be abandoned
// instead.
func (s *Service) Complete(id uuid.UUID, now time.Time) (*models.ProductionCycle, error) {
	cycle, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleStatusHarvesting {
		return nil, errors.NewStateError("production cycle", cycle.Status, "complete")
	}
	cycle.Status = models.CycleStatusCompleted
	cycle.EndedAt = &now
	if err := s.db.Save(cycle).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cycle, nil
}

// Abandon terminates a cycle early. Allowed from every state except
// COMPLETED and ABANDONED.
func (s *Service) Abandon(id uuid.UUID, now time.Time, reason string) (*models.ProductionCycle, error) {
	cycle, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if cycle.Status == models.CycleStatusCompleted || cycle.Status == models.CycleStatusAbandoned {
		return nil, errors.NewStateError("production cycle", cycle.Status, "abandon")
	}
	cycle.Status = models.CycleStatusAbandoned
	cycle.EndedAt = &now
	if reason != "" {
		if cycle.Notes != "" {
			cycle.Notes += "\n"
		}
		cycle.Notes += "Abandoned: " + reason
	}
	if err := s.db.Save(cycle).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cycle, nil
}

// ListForGreenhouse returns the greenhouse's cycles, newest first
func (s *Service) ListForGreenhouse(greenhouseID uuid.UUID) ([]models.ProductionCycle, error) {
	var cycles []models.ProductionCycle
	err := s.db.Where("greenhouse_id = ?", greenhouseID).
		Order("created_at DESC").
		Find(&cycles).Error
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cycles, nil
}
