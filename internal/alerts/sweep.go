// Package alerts raises operational alerts on production cycles.
package alerts

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aethra/farmops/internal/dailylog"
	"github.com/aethra/farmops/internal/models"
)

// AlertTypeMissingDailyLog flags a running cycle with no submitted log
// for the day
const AlertTypeMissingDailyLog = "MISSING_DAILY_LOG"

// Sweeper scans farms for cycles missing their daily log
type Sweeper struct {
	db *gorm.DB
}

func NewSweeper(db *gorm.DB) *Sweeper {
	return &Sweeper{db: db}
}

// Run checks every active farm. For a farm whose local time is past its
// daily-log cutoff, each running cycle without a SUBMITTED log for
// today (farm-local) gets a MISSING_DAILY_LOG alert. The unique index
// on (cycle, date, type) makes the sweep idempotent, so concurrent or
// repeated runs never duplicate alerts. Returns the number of alerts
// created.
func (s *Sweeper) Run(now time.Time) (int, error) {
	var farms []models.Farm
	if err := s.db.Where("status = ?", "ACTIVE").Find(&farms).Error; err != nil {
		return 0, err
	}

	created := 0
	for i := range farms {
		n, err := s.sweepFarm(&farms[i], now)
		if err != nil {
			log.Printf("alert sweep: farm %s: %v", farms[i].FarmCode, err)
			continue
		}
		created += n
	}
	return created, nil
}

func (s *Sweeper) sweepFarm(farm *models.Farm, now time.Time) (int, error) {
	loc, err := dailylog.FarmLocation(farm)
	if err != nil {
		return 0, err
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	cutoff, err := dailylog.CutoffFor(farm, today)
	if err != nil {
		return 0, err
	}
	if !now.After(cutoff) {
		return 0, nil
	}

	var cycles []models.ProductionCycle
	err = s.db.Where("farm_id = ? AND status IN ?", farm.ID,
		[]string{models.CycleStatusActive, models.CycleStatusHarvesting}).
		Find(&cycles).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, cycle := range cycles {
		var submitted int64
		err := s.db.Model(&models.DailyLog{}).
			Where("production_cycle_id = ? AND log_date = ? AND status = ?",
				cycle.ID, today, models.LogStatusSubmitted).
			Count(&submitted).Error
		if err != nil {
			return created, err
		}
		if submitted > 0 {
			continue
		}

		alert := models.ProductionCycleAlert{
			FarmID:            farm.ID,
			ProductionCycleID: cycle.ID,
			LogDate:           today,
			AlertType:         AlertTypeMissingDailyLog,
			Message:           fmt.Sprintf("No daily log submitted for cycle %s on %s", cycle.CycleCode, today.Format("2006-01-02")),
			Severity:          "MEDIUM",
		}
		result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&alert)
		if result.Error != nil {
			return created, result.Error
		}
		if result.RowsAffected > 0 {
			created++
		}
	}
	return created, nil
}

// Unresolved lists open alerts for a farm, newest first
func (s *Sweeper) Unresolved(farmID uuid.UUID) ([]models.ProductionCycleAlert, error) {
	var out []models.ProductionCycleAlert
	err := s.db.Where("farm_id = ? AND is_resolved = ?", farmID, false).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
