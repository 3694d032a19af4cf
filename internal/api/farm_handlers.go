package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aethra/farmops/internal/codegen"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// ListFarms returns the farms the caller is a member of
func (h *Handler) ListFarms(c *gin.Context) {
	actor := actorFrom(c)
	var farms []models.Farm
	err := h.db.Joins("JOIN farm_memberships ON farm_memberships.farm_id = farms.id").
		Where("farm_memberships.user_id = ?", actor.UserID).
		Find(&farms).Error
	if err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"farms": farms})
}

type createFarmRequest struct {
	Name               string `json:"name" binding:"required"`
	LegalName          string `json:"legal_name"`
	Country            string `json:"country"`
	DefaultCurrency    string `json:"default_currency"`
	DefaultTimezone    string `json:"default_timezone"`
	DailyLogCutoffTime string `json:"daily_log_cutoff_time"`
}

// CreateFarm registers a new farm with an allocated farm code and
// makes the caller its first member
func (h *Handler) CreateFarm(c *gin.Context) {
	actor := actorFrom(c)
	var req createFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	code, err := h.codes.Allocate(codegen.FarmScope(h.db, req.Name))
	if err != nil {
		respondErr(c, err)
		return
	}

	farm := models.Farm{
		FarmCode:           code,
		Name:               req.Name,
		LegalName:          req.LegalName,
		Country:            req.Country,
		DefaultCurrency:    orDefault(req.DefaultCurrency, h.cfg.Farm.DefaultCurrency),
		DefaultTimezone:    orDefault(req.DefaultTimezone, h.cfg.Farm.DefaultTimezone),
		DailyLogCutoffTime: orDefault(req.DailyLogCutoffTime, h.cfg.Farm.DailyLogCutoffTime),
		Status:             "ACTIVE",
		CreatedBy:          &actor.UserID,
	}
	if err := h.db.Create(&farm).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}

	membership := models.FarmMembership{FarmID: farm.ID, UserID: actor.UserID, FarmRole: "OWNER"}
	if err := h.db.Create(&membership).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"farm": farm})
}

// GetFarm returns one farm with its sites
func (h *Handler) GetFarm(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	var farm models.Farm
	if err := h.db.Preload("Sites").First(&farm, "id = ?", id).Error; err != nil {
		respondErr(c, errors.NewNotFoundError("farm"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"farm": farm})
}

// ListSites returns the sites of the caller's farm
func (h *Handler) ListSites(c *gin.Context) {
	actor := actorFrom(c)
	var sites []models.Site
	if err := h.db.Where("farm_id = ?", actor.FarmID).Find(&sites).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

type createSiteRequest struct {
	Name     string `json:"name" binding:"required"`
	SiteType string `json:"site_type"`
	Country  string `json:"country"`
	Region   string `json:"region"`
}

func (h *Handler) CreateSite(c *gin.Context) {
	actor := actorFrom(c)
	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	site := models.Site{
		FarmID:   actor.FarmID,
		Name:     req.Name,
		SiteType: orDefault(req.SiteType, "FARM"),
		Country:  req.Country,
		Region:   req.Region,
		IsActive: true,
	}
	if err := h.db.Create(&site).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"site": site})
}

// ListGreenhouses returns greenhouses, optionally filtered by site
func (h *Handler) ListGreenhouses(c *gin.Context) {
	actor := actorFrom(c)
	q := h.db.Where("farm_id = ?", actor.FarmID)
	if siteID := c.Query("site_id"); siteID != "" {
		q = q.Where("site_id = ?", siteID)
	}
	var greenhouses []models.Greenhouse
	if err := q.Find(&greenhouses).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"greenhouses": greenhouses})
}

type createGreenhouseRequest struct {
	SiteID    uuid.UUID `json:"site_id" binding:"required"`
	Name      string    `json:"name" binding:"required"`
	Code      string    `json:"code"`
	SizeSqm   *float64  `json:"size_sqm"`
	Structure string    `json:"structure"`
}

// CreateGreenhouse registers a greenhouse under a site. The farm
// reference comes from the site, never from the caller.
func (h *Handler) CreateGreenhouse(c *gin.Context) {
	var req createGreenhouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	var site models.Site
	if err := h.db.First(&site, "id = ?", req.SiteID).Error; err != nil {
		respondErr(c, errors.NewNotFoundError("site"))
		return
	}
	greenhouse := models.Greenhouse{
		FarmID:    site.FarmID,
		SiteID:    site.ID,
		Code:      req.Code,
		Name:      req.Name,
		SizeSqm:   req.SizeSqm,
		Structure: req.Structure,
		IsActive:  true,
	}
	if err := h.db.Create(&greenhouse).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"greenhouse": greenhouse})
}

// ListBoreholes returns boreholes for a site
func (h *Handler) ListBoreholes(c *gin.Context) {
	actor := actorFrom(c)
	q := h.db.Where("farm_id = ?", actor.FarmID)
	if siteID := c.Query("site_id"); siteID != "" {
		q = q.Where("site_id = ?", siteID)
	}
	var boreholes []models.Borehole
	if err := q.Find(&boreholes).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"boreholes": boreholes})
}

type createBoreholeRequest struct {
	SiteID   uuid.UUID `json:"site_id" binding:"required"`
	Name     string    `json:"name"`
	DepthM   *float64  `json:"depth_m"`
	YieldLph *float64  `json:"yield_lph"`
}

// CreateBorehole registers a borehole with a sequentially allocated
// site-scoped code
func (h *Handler) CreateBorehole(c *gin.Context) {
	var req createBoreholeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	var site models.Site
	if err := h.db.First(&site, "id = ?", req.SiteID).Error; err != nil {
		respondErr(c, errors.NewNotFoundError("site"))
		return
	}

	scope, err := codegen.BoreholeScope(h.db, site.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	code, err := h.codes.Allocate(scope)
	if err != nil {
		respondErr(c, err)
		return
	}

	borehole := models.Borehole{
		FarmID:       site.FarmID,
		SiteID:       site.ID,
		BoreholeCode: code,
		Name:         req.Name,
		DepthM:       req.DepthM,
		YieldLph:     req.YieldLph,
		Status:       "OPERATIONAL",
	}
	if err := h.db.Create(&borehole).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"borehole": borehole})
}

type createAssetRequest struct {
	CategoryID uuid.UUID `json:"category_id" binding:"required"`
	Name       string    `json:"name" binding:"required"`
}

// CreateAsset registers equipment with a (farm, category)-scoped code
func (h *Handler) CreateAsset(c *gin.Context) {
	actor := actorFrom(c)
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	scope, err := codegen.AssetScope(h.db, actor.FarmID, req.CategoryID)
	if err != nil {
		respondErr(c, err)
		return
	}
	code, err := h.codes.Allocate(scope)
	if err != nil {
		respondErr(c, err)
		return
	}

	asset := models.Asset{
		FarmID:     actor.FarmID,
		CategoryID: &req.CategoryID,
		AssetCode:  code,
		Name:       req.Name,
		Status:     "IN_SERVICE",
	}
	if err := h.db.Create(&asset).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
