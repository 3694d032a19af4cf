package dailylog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// Service validates and persists daily logs
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LogInput is the full payload for creating or replacing a day's log
type LogInput struct {
	ProductionCycleID uuid.UUID   `json:"production_cycle_id"`
	LogDate           time.Time   `json:"log_date"`
	IssuesNotes       string      `json:"issues_notes"`
	Items             []ItemInput `json:"items"`
}

// CreateOrUpdate upserts the log for (cycle, date). An existing DRAFT
// log has its items replaced wholesale; a SUBMITTED log is immutable.
// Every item is validated against its activity type's rules before
// anything is written, so a payload with any bad item persists nothing.
func (s *Service) CreateOrUpdate(in LogInput, actor auth.Actor) (*models.DailyLog, error) {
	var cycle models.ProductionCycle
	if err := s.db.First(&cycle, "id = ?", in.ProductionCycleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("production cycle")
		}
		return nil, errors.NewInternalError(err)
	}
	if !cycle.IsRunning() {
		return nil, errors.NewStateError("production cycle", cycle.Status, "log activities on")
	}

	if len(in.Items) == 0 {
		return nil, errors.NewValidationError("items", "at least one activity item is required")
	}

	fields, err := s.validateItems(cycle.FarmID, in.Items)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, errors.NewValidationErrors(fields)
	}

	logDate := dateOnly(in.LogDate)
	var log models.DailyLog

	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("production_cycle_id = ? AND log_date = ?", cycle.ID, logDate).
			First(&log).Error
		switch err {
		case nil:
			if log.Status != models.LogStatusDraft {
				return errors.NewStateError("daily log", log.Status, "edit")
			}
			log.IssuesNotes = in.IssuesNotes
			if err := tx.Save(&log).Error; err != nil {
				return errors.NewInternalError(err)
			}
			if err := s.deleteItems(tx, log.ID); err != nil {
				return err
			}
		case gorm.ErrRecordNotFound:
			log = models.DailyLog{
				FarmID:            cycle.FarmID,
				SiteID:            cycle.SiteID,
				GreenhouseID:      cycle.GreenhouseID,
				ProductionCycleID: cycle.ID,
				LogDate:           logDate,
				Status:            models.LogStatusDraft,
				IssuesNotes:       in.IssuesNotes,
				CreatedBy:         actor.UserID,
			}
			if err := tx.Create(&log).Error; err != nil {
				return errors.NewInternalError(err)
			}
		default:
			return errors.NewInternalError(err)
		}

		return s.createItems(tx, &log, in.Items)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(log.ID)
}

// validateItems runs every item through its activity type's rules and
// accumulates all failures. An activity type belonging to another farm
// is reported as a field error on the item, not a bare NotFound.
func (s *Service) validateItems(farmID uuid.UUID, items []ItemInput) ([]errors.FieldError, error) {
	var fields []errors.FieldError
	for i, item := range items {
		path := fmt.Sprintf("items.%d", i)

		if item.ActivityTypeID == uuid.Nil {
			fields = append(fields, errors.FieldError{Field: path + ".activity_type_id", Message: "activity type is required"})
			continue
		}

		var at models.ActivityType
		err := s.db.First(&at, "id = ?", item.ActivityTypeID).Error
		if err == gorm.ErrRecordNotFound {
			fields = append(fields, errors.FieldError{Field: path + ".activity_type_id", Message: "activity type not found"})
			continue
		}
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		if at.FarmID != farmID {
			fields = append(fields, errors.FieldError{Field: path + ".activity_type_id", Message: "activity type belongs to another farm"})
			continue
		}
		if !at.IsActive {
			fields = append(fields, errors.FieldError{Field: path + ".activity_type_id", Message: "activity type is inactive"})
			continue
		}

		for _, rule := range RulesFor(&at) {
			fields = append(fields, rule.Check(item, path)...)
		}
	}
	return fields, nil
}

func (s *Service) deleteItems(tx *gorm.DB, logID uuid.UUID) error {
	var itemIDs []uuid.UUID
	if err := tx.Model(&models.DailyLogItem{}).
		Where("daily_log_id = ?", logID).
		Pluck("id", &itemIDs).Error; err != nil {
		return errors.NewInternalError(err)
	}
	if len(itemIDs) == 0 {
		return nil
	}
	if err := tx.Where("daily_log_item_id IN ?", itemIDs).Delete(&models.DailyLogItemInput{}).Error; err != nil {
		return errors.NewInternalError(err)
	}
	if err := tx.Where("daily_log_item_id IN ?", itemIDs).Delete(&models.DailyLogItemPhoto{}).Error; err != nil {
		return errors.NewInternalError(err)
	}
	if err := tx.Where("daily_log_id = ?", logID).Delete(&models.DailyLogItem{}).Error; err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func (s *Service) createItems(tx *gorm.DB, log *models.DailyLog, items []ItemInput) error {
	now := time.Now()
	for _, in := range items {
		item := models.DailyLogItem{
			FarmID:         log.FarmID,
			DailyLogID:     log.ID,
			ActivityTypeID: in.ActivityTypeID,
			PerformedBy:    in.PerformedBy,
			StartedAt:      in.StartedAt,
			EndedAt:        in.EndedAt,
			Quantity:       in.Quantity,
			Unit:           in.Unit,
			Notes:          in.Notes,
			Meta:           models.JSONB(in.Meta),
		}
		if err := tx.Create(&item).Error; err != nil {
			return errors.NewInternalError(err)
		}
		for _, inp := range in.Inputs {
			entry := models.DailyLogItemInput{
				FarmID:         log.FarmID,
				DailyLogItemID: item.ID,
				InputName:      inp.Name,
				Quantity:       inp.Quantity,
				Unit:           inp.Unit,
				Notes:          inp.Notes,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return errors.NewInternalError(err)
			}
		}
		for _, path := range in.Photos {
			photo := models.DailyLogItemPhoto{
				FarmID:         log.FarmID,
				DailyLogItemID: item.ID,
				FilePath:       path,
				UploadedAt:     now,
			}
			if err := tx.Create(&photo).Error; err != nil {
				return errors.NewInternalError(err)
			}
		}
	}
	return nil
}

// Get loads a log with its items, inputs and photos
func (s *Service) Get(id uuid.UUID) (*models.DailyLog, error) {
	var log models.DailyLog
	err := s.db.Preload("Items.Inputs").Preload("Items.Photos").
		First(&log, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("daily log")
		}
		return nil, errors.NewInternalError(err)
	}
	return &log, nil
}

// Submit finalizes a DRAFT log. Submissions after the farm's cutoff
// time, evaluated in the farm's timezone, fail with a DeadlineError
// unless the actor may override the cutoff.
func (s *Service) Submit(id uuid.UUID, now time.Time, actor auth.Actor) (*models.DailyLog, error) {
	var log models.DailyLog
	if err := s.db.First(&log, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("daily log")
		}
		return nil, errors.NewInternalError(err)
	}
	if log.Status != models.LogStatusDraft {
		return nil, errors.NewStateError("daily log", log.Status, "submit")
	}

	var count int64
	if err := s.db.Model(&models.DailyLogItem{}).
		Where("daily_log_id = ?", log.ID).Count(&count).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	if count == 0 {
		return nil, errors.NewValidationError("items", "cannot submit a log with no activity items")
	}

	var farm models.Farm
	if err := s.db.First(&farm, "id = ?", log.FarmID).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}

	cutoff, err := CutoffFor(&farm, log.LogDate)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if now.After(cutoff) && !actor.Can(auth.PermOverrideCutoff) {
		return nil, errors.NewDeadlineError("daily log submission", cutoff)
	}

	log.Status = models.LogStatusSubmitted
	log.SubmittedAt = &now
	log.SubmittedBy = &actor.UserID
	if err := s.db.Save(&log).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return &log, nil
}

// FarmLocation resolves the farm's timezone, defaulting to UTC
func FarmLocation(farm *models.Farm) (*time.Location, error) {
	tz := farm.DefaultTimezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("farm timezone %q: %w", tz, err)
	}
	return loc, nil
}

// CutoffFor resolves the farm's daily-log cutoff for a log date as an
// absolute instant in the farm's timezone. Log dates are stored as UTC
// midnights, so the calendar day is read from the UTC value; converting
// the instant into the farm's zone first would shift UTC-negative farms
// onto the previous day.
func CutoffFor(farm *models.Farm, date time.Time) (time.Time, error) {
	loc, err := FarmLocation(farm)
	if err != nil {
		return time.Time{}, err
	}

	cutoffStr := farm.DailyLogCutoffTime
	if cutoffStr == "" {
		cutoffStr = "18:00:00"
	}
	t, err := time.Parse("15:04:05", cutoffStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("farm cutoff time %q: %w", cutoffStr, err)
	}

	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

// dateOnly keeps the calendar day the caller named, regardless of the
// timestamp's zone, and stores it as a UTC midnight.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
