// Package harvest records daily harvests as weighed crates and keeps
// the per-grade aggregates on the parent record consistent.
//
// The record's total_* and crate_count_* columns are derived state:
// every crate create, update or delete recomputes them inside the same
// transaction, so a reader never observes totals that disagree with
// the crates.
package harvest

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

// GradePolicy decides what happens to crates whose grade is not A, B
// or C.
type GradePolicy int

const (
	// GradeReject refuses to store a crate with an unknown grade
	GradeReject GradePolicy = iota
	// GradeIgnore stores the crate but excludes it from aggregation
	GradeIgnore
)

// Service manages harvest records and crates
type Service struct {
	db     *gorm.DB
	policy GradePolicy
}

func NewService(db *gorm.DB, policy GradePolicy) *Service {
	return &Service{db: db, policy: policy}
}

// CrateInput is one weighed crate in a payload
type CrateInput struct {
	Grade     string  `json:"grade"`
	WeightKg  float64 `json:"weight_kg"`
	LabelCode string  `json:"label_code"`
	Notes     string  `json:"notes"`
}

func knownGrade(g string) bool {
	return g == models.GradeA || g == models.GradeB || g == models.GradeC
}

// CreateRecord opens the harvest record for (cycle, date). Farm, site
// and greenhouse are derived from the cycle. Only one record may exist
// per cycle and day.
func (s *Service) CreateRecord(cycleID uuid.UUID, date time.Time, actor auth.Actor) (*models.HarvestRecord, error) {
	var cycle models.ProductionCycle
	if err := s.db.First(&cycle, "id = ?", cycleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("production cycle")
		}
		return nil, errors.NewInternalError(err)
	}
	if cycle.Status != models.CycleStatusHarvesting {
		return nil, errors.NewStateError("production cycle", cycle.Status, "record a harvest on")
	}

	day := dateOnly(date)
	var existing int64
	if err := s.db.Model(&models.HarvestRecord{}).
		Where("production_cycle_id = ? AND harvest_date = ?", cycle.ID, day).
		Count(&existing).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	if existing > 0 {
		return nil, errors.NewConflictErrorf("a harvest record already exists for this cycle and date")
	}

	record := &models.HarvestRecord{
		FarmID:            cycle.FarmID,
		SiteID:            cycle.SiteID,
		GreenhouseID:      cycle.GreenhouseID,
		ProductionCycleID: cycle.ID,
		HarvestDate:       day,
		Status:            models.HarvestStatusDraft,
		RecordedBy:        actor.UserID,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return record, nil
}

// Get loads a record with its crates
func (s *Service) Get(id uuid.UUID) (*models.HarvestRecord, error) {
	var record models.HarvestRecord
	err := s.db.Preload("Crates").First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("harvest record")
		}
		return nil, errors.NewInternalError(err)
	}
	return &record, nil
}

// AddCrates appends weighed crates to a record. Crate numbers continue
// from the highest existing number in the record. The record's
// aggregates are recomputed in the same transaction.
func (s *Service) AddCrates(recordID uuid.UUID, crates []CrateInput, now time.Time, actor auth.Actor) (*models.HarvestRecord, error) {
	if len(crates) == 0 {
		return nil, errors.NewValidationError("crates", "at least one crate is required")
	}

	var fields []errors.FieldError
	for i, c := range crates {
		if c.WeightKg <= 0 {
			fields = append(fields, errors.FieldError{Field: fieldAt("crates", i, "weight_kg"), Message: "weight must be positive"})
		}
		if c.Grade == "" {
			fields = append(fields, errors.FieldError{Field: fieldAt("crates", i, "grade"), Message: "grade is required"})
		} else if s.policy == GradeReject && !knownGrade(c.Grade) {
			fields = append(fields, errors.FieldError{Field: fieldAt("crates", i, "grade"), Message: "unknown grade"})
		}
	}
	if len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		record, err := s.getRecord(tx, recordID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(tx, record, actor); err != nil {
			return err
		}

		var maxNumber int
		row := tx.Model(&models.HarvestCrate{}).
			Where("harvest_record_id = ?", record.ID).
			Select("COALESCE(MAX(crate_number), 0)").
			Row()
		if err := row.Scan(&maxNumber); err != nil {
			return errors.NewInternalError(err)
		}

		for i, c := range crates {
			crate := models.HarvestCrate{
				FarmID:          record.FarmID,
				HarvestRecordID: record.ID,
				Grade:           c.Grade,
				CrateNumber:     maxNumber + i + 1,
				WeightKg:        c.WeightKg,
				WeighedAt:       now,
				WeighedBy:       actor.UserID,
				LabelCode:       c.LabelCode,
				Notes:           c.Notes,
			}
			if err := tx.Create(&crate).Error; err != nil {
				return errors.NewInternalError(err)
			}
		}
		return s.recalculate(tx, record)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(recordID)
}

// UpdateCrate replaces a crate's mutable fields wholesale, then
// recomputes the record's aggregates. An empty label or notes clears
// the stored value.
func (s *Service) UpdateCrate(crateID uuid.UUID, in CrateInput, actor auth.Actor) (*models.HarvestRecord, error) {
	if in.WeightKg <= 0 {
		return nil, errors.NewValidationError("weight_kg", "weight must be positive")
	}
	if in.Grade == "" {
		return nil, errors.NewValidationError("grade", "grade is required")
	}
	if s.policy == GradeReject && !knownGrade(in.Grade) {
		return nil, errors.NewValidationError("grade", "unknown grade")
	}

	var recordID uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var crate models.HarvestCrate
		if err := tx.First(&crate, "id = ?", crateID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("harvest crate")
			}
			return errors.NewInternalError(err)
		}
		record, err := s.getRecord(tx, crate.HarvestRecordID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(tx, record, actor); err != nil {
			return err
		}

		crate.Grade = in.Grade
		crate.WeightKg = in.WeightKg
		crate.LabelCode = in.LabelCode
		crate.Notes = in.Notes
		if err := tx.Save(&crate).Error; err != nil {
			return errors.NewInternalError(err)
		}
		recordID = record.ID
		return s.recalculate(tx, record)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(recordID)
}

// DeleteCrate removes a crate and recomputes the record's aggregates.
// Like every crate mutation it is blocked once the record has left
// DRAFT, unless the actor holds the status override.
func (s *Service) DeleteCrate(crateID uuid.UUID, actor auth.Actor) (*models.HarvestRecord, error) {
	var recordID uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var crate models.HarvestCrate
		if err := tx.First(&crate, "id = ?", crateID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NewNotFoundError("harvest crate")
			}
			return errors.NewInternalError(err)
		}
		record, err := s.getRecord(tx, crate.HarvestRecordID)
		if err != nil {
			return err
		}
		if err := s.requireEditable(tx, record, actor); err != nil {
			return err
		}
		if err := tx.Delete(&crate).Error; err != nil {
			return errors.NewInternalError(err)
		}
		recordID = record.ID
		return s.recalculate(tx, record)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(recordID)
}

// Submit finalizes a DRAFT record. A record with no crates cannot be
// submitted.
func (s *Service) Submit(recordID uuid.UUID, now time.Time, actor auth.Actor) (*models.HarvestRecord, error) {
	record, err := s.Get(recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.HarvestStatusDraft {
		return nil, errors.NewStateError("harvest record", record.Status, "submit")
	}
	if len(record.Crates) == 0 {
		return nil, errors.NewValidationError("crates", "cannot submit a harvest record with no crates")
	}

	record.Status = models.HarvestStatusSubmitted
	record.SubmittedAt = &now
	if err := s.db.Save(record).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return record, nil
}

// Approve marks a SUBMITTED record as approved, stamping the approver
func (s *Service) Approve(recordID uuid.UUID, now time.Time, actor auth.Actor) (*models.HarvestRecord, error) {
	if !actor.Can(auth.PermHarvestApprove) {
		return nil, errors.NewPermissionDeniedError("approve", "harvest record")
	}
	record, err := s.Get(recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.HarvestStatusSubmitted {
		return nil, errors.NewStateError("harvest record", record.Status, "approve")
	}

	record.Status = models.HarvestStatusApproved
	record.ApprovedBy = &actor.UserID
	record.ApprovedAt = &now
	if err := s.db.Save(record).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return record, nil
}

func (s *Service) getRecord(tx *gorm.DB, id uuid.UUID) (*models.HarvestRecord, error) {
	var record models.HarvestRecord
	if err := tx.First(&record, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("harvest record")
		}
		return nil, errors.NewInternalError(err)
	}
	return &record, nil
}

// requireEditable enforces the DRAFT-only rule for crate mutations.
// Actors with the status override may edit SUBMITTED records; the
// refusal for everyone else names the record status so the caller can
// tell it apart from a plain missing permission.
func (s *Service) requireEditable(tx *gorm.DB, record *models.HarvestRecord, actor auth.Actor) error {
	if record.Status == models.HarvestStatusDraft {
		return nil
	}
	if actor.Can(auth.PermHarvestOverrideStatus) {
		return nil
	}
	return errors.NewPermissionDeniedReason("edit", "harvest record",
		"crates can only be changed while the record is in DRAFT")
}

// recalculate rebuilds every derived column on the record from its
// crates. Weights are rounded to 2 decimal places. The grand totals
// are the sum of the A/B/C buckets, so crates with grades outside
// A/B/C (possible under the ignore policy) never enter the aggregates.
func (s *Service) recalculate(tx *gorm.DB, record *models.HarvestRecord) error {
	var crates []models.HarvestCrate
	if err := tx.Where("harvest_record_id = ?", record.ID).Find(&crates).Error; err != nil {
		return errors.NewInternalError(err)
	}

	var weightA, weightB, weightC float64
	var countA, countB, countC int
	for _, c := range crates {
		switch c.Grade {
		case models.GradeA:
			weightA += c.WeightKg
			countA++
		case models.GradeB:
			weightB += c.WeightKg
			countB++
		case models.GradeC:
			weightC += c.WeightKg
			countC++
		}
	}

	record.TotalWeightKgA = round2(weightA)
	record.TotalWeightKgB = round2(weightB)
	record.TotalWeightKgC = round2(weightC)
	record.TotalWeightKgTotal = round2(weightA + weightB + weightC)
	record.CrateCountA = countA
	record.CrateCountB = countB
	record.CrateCountC = countC
	record.CrateCountTotal = countA + countB + countC

	if err := tx.Save(record).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dateOnly keeps the calendar day the caller named, regardless of the
// timestamp's zone, and stores it as a UTC midnight.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fieldAt(prefix string, i int, name string) string {
	return fmt.Sprintf("%s.%d.%s", prefix, i, name)
}
