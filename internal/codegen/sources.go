package codegen

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// Suffix widths per entity family
const (
	boreholeWidth = 3
	cycleWidth    = 3
	assetWidth    = 5
	farmWidth     = 3
)

// BoreholeScope builds the allocation scope for boreholes of a site.
// The scan covers both the current borehole_code column and the legacy
// code column, soft-deleted rows included, so renumbering never reuses
// a code that ever existed.
func BoreholeScope(db *gorm.DB, siteID uuid.UUID) (Scope, error) {
	var site models.Site
	if err := db.First(&site, "id = ?", siteID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Scope{}, errors.NewNotFoundError("site")
		}
		return Scope{}, errors.NewInternalError(err)
	}

	return Scope{
		Key:   "borehole:" + siteID.String(),
		Seed:  site.Name,
		Width: boreholeWidth,
		Existing: func() ([]string, error) {
			var current, legacy []string
			if err := db.Unscoped().Model(&models.Borehole{}).
				Where("site_id = ?", siteID).
				Pluck("borehole_code", &current).Error; err != nil {
				return nil, err
			}
			if err := db.Unscoped().Model(&models.Borehole{}).
				Where("site_id = ?", siteID).
				Pluck("code", &legacy).Error; err != nil {
				return nil, err
			}
			return append(current, legacy...), nil
		},
		Exists: func(code string) (bool, error) {
			var n int64
			err := db.Unscoped().Model(&models.Borehole{}).
				Where("site_id = ? AND (borehole_code = ? OR code = ?)", siteID, code, code).
				Count(&n).Error
			return n > 0, err
		},
	}, nil
}

// CycleScope builds the allocation scope for production cycles. Cycle
// codes are site-wide (PC-<SITE3>-NNN) even though cycles belong to a
// greenhouse, so two greenhouses on one site share a sequence.
func CycleScope(db *gorm.DB, greenhouseID uuid.UUID) (Scope, error) {
	var greenhouse models.Greenhouse
	if err := db.Preload("Site").First(&greenhouse, "id = ?", greenhouseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Scope{}, errors.NewNotFoundError("greenhouse")
		}
		return Scope{}, errors.NewInternalError(err)
	}
	if greenhouse.Site == nil {
		return Scope{}, errors.NewNotFoundError("site")
	}

	prefix := "PC-" + BuildPrefix(greenhouse.Site.Name)
	siteID := greenhouse.SiteID
	return Scope{
		Key:    "cycle:" + siteID.String(),
		Prefix: prefix,
		Width:  cycleWidth,
		Existing: func() ([]string, error) {
			var codes []string
			err := db.Unscoped().Model(&models.ProductionCycle{}).
				Where("site_id = ?", siteID).
				Pluck("cycle_code", &codes).Error
			return codes, err
		},
		Exists: func(code string) (bool, error) {
			var n int64
			err := db.Unscoped().Model(&models.ProductionCycle{}).
				Where("cycle_code = ?", code).
				Count(&n).Error
			return n > 0, err
		},
	}, nil
}

// AssetScope builds the allocation scope for assets of a farm within a
// category. The category code seeds the prefix.
func AssetScope(db *gorm.DB, farmID, categoryID uuid.UUID) (Scope, error) {
	var category models.AssetCategory
	if err := db.First(&category, "id = ?", categoryID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Scope{}, errors.NewNotFoundError("asset category")
		}
		return Scope{}, errors.NewInternalError(err)
	}

	return Scope{
		Key:   fmt.Sprintf("asset:%s:%s", farmID, categoryID),
		Seed:  category.Code,
		Width: assetWidth,
		Existing: func() ([]string, error) {
			var codes []string
			err := db.Unscoped().Model(&models.Asset{}).
				Where("farm_id = ? AND category_id = ?", farmID, categoryID).
				Pluck("asset_code", &codes).Error
			return codes, err
		},
		Exists: func(code string) (bool, error) {
			var n int64
			err := db.Unscoped().Model(&models.Asset{}).
				Where("farm_id = ? AND category_id = ? AND asset_code = ?", farmID, categoryID, code).
				Count(&n).Error
			return n > 0, err
		},
	}, nil
}

// FarmScope builds the allocation scope for farm codes, seeded from the
// farm's own name. Farm codes are global.
func FarmScope(db *gorm.DB, name string) Scope {
	return Scope{
		Key:   "farm",
		Seed:  name,
		Width: farmWidth,
		Existing: func() ([]string, error) {
			var codes []string
			err := db.Unscoped().Model(&models.Farm{}).
				Pluck("farm_code", &codes).Error
			return codes, err
		},
		Exists: func(code string) (bool, error) {
			var n int64
			err := db.Unscoped().Model(&models.Farm{}).
				Where("farm_code = ?", code).
				Count(&n).Error
			return n > 0, err
		},
	}
}
