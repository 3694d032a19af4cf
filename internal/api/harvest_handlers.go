package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/harvest"
)

type createHarvestRecordRequest struct {
	HarvestDate time.Time `json:"harvest_date" binding:"required"`
}

// CreateHarvestRecord opens the day's harvest record for a cycle
func (h *Handler) CreateHarvestRecord(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermHarvestWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "harvest record"))
		return
	}
	cycleID, ok := pathUUID(c)
	if !ok {
		return
	}
	var req createHarvestRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	record, err := h.harvests.CreateRecord(cycleID, req.HarvestDate, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"harvest_record": record})
}

// GetHarvestRecord returns a record with its crates
func (h *Handler) GetHarvestRecord(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	record, err := h.harvests.Get(id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harvest_record": record})
}

type addCratesRequest struct {
	Crates []harvest.CrateInput `json:"crates" binding:"required"`
}

// AddCrates appends weighed crates to a record
func (h *Handler) AddCrates(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermHarvestWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "harvest record"))
		return
	}
	recordID, ok := pathUUID(c)
	if !ok {
		return
	}
	var req addCratesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	record, err := h.harvests.AddCrates(recordID, req.Crates, time.Now(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harvest_record": record})
}

// UpdateCrate rewrites one crate
func (h *Handler) UpdateCrate(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermHarvestWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "harvest record"))
		return
	}
	crateID, ok := pathUUID(c)
	if !ok {
		return
	}
	var in harvest.CrateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}
	record, err := h.harvests.UpdateCrate(crateID, in, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harvest_record": record})
}

// DeleteCrate removes one crate
func (h *Handler) DeleteCrate(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermHarvestWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "harvest record"))
		return
	}
	crateID, ok := pathUUID(c)
	if !ok {
		return
	}
	record, err := h.harvests.DeleteCrate(crateID, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harvest_record": record})
}

// SubmitHarvestRecord finalizes a draft record
func (h *Handler) SubmitHarvestRecord(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermHarvestSubmit) {
		respondErr(c, errors.NewPermissionDeniedError("submit", "harvest record"))
		return
	}
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	record, err := h.harvests.Submit(id, time.Now(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harvest_record": record})
}

// ApproveHarvestRecord approves a submitted record
func (h *Handler) ApproveHarvestRecord(c *gin.Context) {
	actor := actorFrom(c)
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	record, err := h.harvests.Approve(id, time.Now(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"harvest_record": record})
}
